package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoFeatureValidate(t *testing.T) {
	tests := []struct {
		name    string
		feature GeoFeature
		wantErr bool
	}{
		{
			name:    "complete",
			feature: GeoFeature{CountryName: "Germany", CountryKey: "DE", ZoneName: "DE-LU"},
		},
		{
			name:    "missing zone",
			feature: GeoFeature{CountryName: "Germany", CountryKey: "DE"},
			wantErr: true,
		},
		{
			name:    "missing country key",
			feature: GeoFeature{CountryName: "Germany", ZoneName: "DE-LU"},
			wantErr: true,
		},
		{
			name:    "empty",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.feature.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTariffQueryValidate(t *testing.T) {
	assert.NoError(t, TariffQuery{Country: "Germany", Zipcode: "10115", KWTotal: "3.5"}.Validate())
	assert.Error(t, TariffQuery{Country: "Germany", Zipcode: "10115", KWTotal: "lots"}.Validate())
	assert.Error(t, TariffQuery{Country: "Germany", KWTotal: "3.5"}.Validate())
}

func TestCountryEmissionJSON(t *testing.T) {
	var rows []CountryEmission
	err := json.Unmarshal([]byte(`[{"iso":"DE","Country/Region":"Germany","Data":674.75,"unit":"Mt"}]`), &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "DE", rows[0].ISO)
	assert.Equal(t, "Germany", rows[0].Country)
	assert.Equal(t, 674.75, rows[0].Data)
	assert.Equal(t, "Mt", rows[0].Unit)
}

func TestBoundsIsZero(t *testing.T) {
	assert.True(t, Bounds{}.IsZero())
	assert.False(t, Bounds{MinLon: 1}.IsZero())
}
