package controller

import (
	"github.com/shopspring/decimal"
	"github.com/zonemap/zonemap/pkg/types"
)

// ComputeStats returns the min, max and mean price of a series rounded to two
// decimals, or nil for an empty series.
func ComputeStats(series []types.PricePoint) *types.Stats {
	if len(series) == 0 {
		return nil
	}

	minPrice := series[0].Price
	maxPrice := series[0].Price
	sum := decimal.Zero
	for _, p := range series {
		if p.Price < minPrice {
			minPrice = p.Price
		}
		if p.Price > maxPrice {
			maxPrice = p.Price
		}
		sum = sum.Add(decimal.NewFromFloat(p.Price))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(series))))

	return &types.Stats{
		Min: round2(decimal.NewFromFloat(minPrice)),
		Max: round2(decimal.NewFromFloat(maxPrice)),
		Avg: round2(avg),
	}
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
