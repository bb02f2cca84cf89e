package types

// PricePoint is one entry of a day-ahead price series.
type PricePoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
	Unit  string  `json:"unit"`
}

// Stats summarizes a price series. Values are rounded to two decimals.
type Stats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// CarbonIntensity is the latest carbon intensity snapshot for a zone in
// gCO2eq/kWh.
type CarbonIntensity struct {
	Zone            string  `json:"zone"`
	CarbonIntensity float64 `json:"carbonIntensity"`
	Datetime        string  `json:"datetime"`
}

// PowerBreakdown is the latest consumption per production source in MW.
type PowerBreakdown struct {
	Zone                      string             `json:"zone"`
	Datetime                  string             `json:"datetime"`
	PowerConsumptionBreakdown map[string]float64 `json:"powerConsumptionBreakdown"`
}

// CountryEmission is one row of a yearly CO2 dataset.
type CountryEmission struct {
	ISO     string  `json:"iso"`
	Country string  `json:"Country/Region,omitempty"`
	Data    float64 `json:"Data"`
	Unit    string  `json:"unit"`
}
