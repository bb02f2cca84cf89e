package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/levenlabs/go-lflag"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/types"
)

// Dataset holds the static zone boundaries shown on the map, one feature per
// bidding zone.
type Dataset struct {
	features []types.GeoFeature
	byZone   map[string]int
}

// Configured loads the dataset from the path given by flags.
func Configured() *Dataset {
	path := lflag.String("geo-dataset", "public/world.geojson", "Path to the zone boundary GeoJSON")

	d := &Dataset{byZone: map[string]int{}}

	lflag.Do(func() {
		loaded, err := LoadFile(context.Background(), *path)
		if err != nil {
			panic(fmt.Sprintf("geo dataset load failed: %v", err))
		}
		*d = *loaded
	})

	return d
}

// LoadFile reads a GeoJSON FeatureCollection from disk.
func LoadFile(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Load(ctx, f)
}

// Load parses a GeoJSON FeatureCollection. Features without countryName,
// countryKey or zoneName are skipped. Polygons sharing a zone are merged and
// their bounds unioned.
func Load(ctx context.Context, r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}

	d := &Dataset{byZone: make(map[string]int, len(fc.Features))}
	var skipped int
	for _, f := range fc.Features {
		feature := types.GeoFeature{
			CountryName: stringProp(f.Properties, "countryName"),
			CountryKey:  stringProp(f.Properties, "countryKey"),
			ZoneName:    stringProp(f.Properties, "zoneName"),
		}
		if err := feature.Validate(); err != nil {
			skipped++
			log.Ctx(ctx).DebugContext(ctx, "skipping geo feature", slog.Any("error", err))
			continue
		}

		var bound orb.Bound
		hasBound := f.Geometry != nil
		if hasBound {
			bound = f.Geometry.Bound()
		}

		if i, ok := d.byZone[feature.ZoneName]; ok {
			if hasBound {
				existing := d.features[i].Bounds
				if existing.IsZero() {
					d.features[i].Bounds = toBounds(bound)
				} else {
					d.features[i].Bounds = toBounds(fromBounds(existing).Union(bound))
				}
			}
			continue
		}
		if hasBound {
			feature.Bounds = toBounds(bound)
		}
		d.byZone[feature.ZoneName] = len(d.features)
		d.features = append(d.features, feature)
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"loaded geo dataset",
		slog.Int("zones", len(d.features)),
		slog.Int("skipped", skipped),
	)
	return d, nil
}

// Lookup returns the feature of a zone.
func (d *Dataset) Lookup(zone string) (types.GeoFeature, bool) {
	i, ok := d.byZone[zone]
	if !ok {
		return types.GeoFeature{}, false
	}
	return d.features[i], true
}

// Features returns all zones in dataset order.
func (d *Dataset) Features() []types.GeoFeature {
	out := make([]types.GeoFeature, len(d.features))
	copy(out, d.features)
	return out
}

func stringProp(props geojson.Properties, key string) string {
	s, _ := props[key].(string)
	return s
}

func toBounds(b orb.Bound) types.Bounds {
	return types.Bounds{
		MinLon: b.Min.Lon(),
		MinLat: b.Min.Lat(),
		MaxLon: b.Max.Lon(),
		MaxLat: b.Max.Lat(),
	}
}

func fromBounds(b types.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}
