package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/zonemap/zonemap/pkg/types"
)

// ErrNotEnoughPoints is returned when a series is too short to draw.
var ErrNotEnoughPoints = errors.New("at least two points are required to draw a chart")

const (
	chartWidth  = 720
	chartHeight = 320
)

// RenderChart draws the price series of a zone as an SVG line chart.
func RenderChart(w io.Writer, zone, date string, series []types.PricePoint) error {
	if len(series) < 2 {
		return ErrNotEnoughPoints
	}

	ys := make([]float64, len(series))
	minY, maxY := series[0].Price, series[0].Price
	for i, p := range series {
		ys[i] = p.Price
		minY = min(minY, p.Price)
		maxY = max(maxY, p.Price)
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s %s", zone, date),
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		YAxis: chart.YAxis{
			Name: series[0].Unit,
		},
	}
	// a flat series has no y delta to scale by
	if minY == maxY {
		graph.YAxis.Range = &chart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
	}

	style := chart.Style{
		StrokeColor: chart.ColorBlue,
		StrokeWidth: 2,
	}
	if xs, ok := parseTimes(series); ok {
		graph.XAxis = chart.XAxis{ValueFormatter: chart.TimeHourValueFormatter}
		graph.Series = []chart.Series{chart.TimeSeries{Name: zone, XValues: xs, YValues: ys, Style: style}}
	} else {
		xs := make([]float64, len(series))
		for i := range xs {
			xs[i] = float64(i)
		}
		graph.Series = []chart.Series{chart.ContinuousSeries{Name: zone, XValues: xs, YValues: ys, Style: style}}
	}

	if err := graph.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// parseTimes returns the RFC3339 timestamps of a series if every point has
// one and they are not all the same instant.
func parseTimes(series []types.PricePoint) ([]time.Time, bool) {
	xs := make([]time.Time, len(series))
	for i, p := range series {
		t, err := time.Parse(time.RFC3339, p.Time)
		if err != nil {
			return nil, false
		}
		xs[i] = t
	}
	if xs[0].Equal(xs[len(xs)-1]) {
		return nil, false
	}
	return xs, true
}
