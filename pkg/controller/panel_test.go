package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/types"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

// gatedFetcher answers from canned data. A held key blocks its fetch until
// released, which lets tests control the order responses arrive in.
type gatedFetcher struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	fail   map[string]bool
	calls  map[string]int
	prices map[string][]types.PricePoint
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		gates:  map[string]chan struct{}{},
		fail:   map[string]bool{},
		calls:  map[string]int{},
		prices: map[string][]types.PricePoint{},
	}
}

func (f *gatedFetcher) hold(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[key] = make(chan struct{})
}

func (f *gatedFetcher) release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.gates[key])
}

func (f *gatedFetcher) enter(key string) error {
	f.mu.Lock()
	f.calls[key]++
	gate := f.gates[key]
	fail := f.fail[key]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail {
		return errors.New("boom")
	}
	return nil
}

func (f *gatedFetcher) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *gatedFetcher) FetchPriceSeries(ctx context.Context, zone, date string) ([]types.PricePoint, error) {
	key := "price:" + zone + ":" + date
	if err := f.enter(key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prices[zone+":"+date]; ok {
		return p, nil
	}
	return []types.PricePoint{{Time: date + "T00:00:00Z", Price: 10, Unit: zone}}, nil
}

func (f *gatedFetcher) FetchCarbonIntensity(ctx context.Context, zone string) (types.CarbonIntensity, error) {
	if err := f.enter("carbon:" + zone); err != nil {
		return types.CarbonIntensity{}, err
	}
	return types.CarbonIntensity{Zone: zone, CarbonIntensity: float64(len(zone))}, nil
}

func (f *gatedFetcher) FetchPowerBreakdown(ctx context.Context, zone string) (types.PowerBreakdown, error) {
	if err := f.enter("power:" + zone); err != nil {
		return types.PowerBreakdown{}, err
	}
	return types.PowerBreakdown{Zone: zone, PowerConsumptionBreakdown: map[string]float64{"wind": 100}}, nil
}

var (
	zoneA = types.GeoFeature{CountryName: "Germany", CountryKey: "DE", ZoneName: "DE-LU"}
	zoneB = types.GeoFeature{CountryName: "France", CountryKey: "FR", ZoneName: "FR"}
)

const today = "2024-05-01"

func newTestPanel(f Fetcher) *Panel {
	p := NewPanel(f)
	p.now = func() time.Time {
		return time.Date(2024, 5, 1, 15, 30, 0, 0, time.Local)
	}
	return p
}

func TestPanelOpen(t *testing.T) {
	f := newGatedFetcher()
	f.prices["DE-LU:"+today] = []types.PricePoint{
		{Time: "T1", Price: 10.5, Unit: "EUR/MWh"},
		{Time: "T2", Price: 20.25, Unit: "EUR/MWh"},
	}
	p := newTestPanel(f)
	ctx := context.Background()

	assert.Equal(t, PanelState{}, p.Snapshot(), "new panel should be closed")

	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	assert.True(t, s.Open)
	require.NotNil(t, s.Feature)
	assert.Equal(t, "DE-LU", s.Feature.ZoneName)
	assert.Equal(t, today, s.Date)
	assert.Equal(t, FieldReady, s.PricesStatus)
	assert.Len(t, s.Prices, 2)
	require.NotNil(t, s.Stats)
	assert.Equal(t, types.Stats{Min: 10.5, Max: 20.25, Avg: 15.38}, *s.Stats)
	require.NotNil(t, s.Carbon)
	assert.Equal(t, "DE-LU", s.Carbon.Zone)
	assert.Equal(t, FieldReady, s.CarbonStatus)
	require.NotNil(t, s.Power)
	assert.Equal(t, 100.0, s.Power.PowerConsumptionBreakdown["wind"])
	assert.Equal(t, FieldReady, s.PowerStatus)
}

func TestPanelOpenRejectsIncompleteFeature(t *testing.T) {
	p := newTestPanel(newGatedFetcher())
	err := p.Open(context.Background(), types.GeoFeature{CountryName: "Nowhere"})
	assert.Error(t, err)
	assert.False(t, p.Snapshot().Open)
}

func TestPanelPendingWhileInFlight(t *testing.T) {
	f := newGatedFetcher()
	f.hold("price:DE-LU:" + today)
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	assert.Eventually(t, func() bool {
		s := p.Snapshot()
		return s.CarbonStatus == FieldReady && s.PowerStatus == FieldReady
	}, time.Second, 5*time.Millisecond)

	s := p.Snapshot()
	assert.Equal(t, FieldPending, s.PricesStatus)
	assert.Nil(t, s.Stats)

	f.release("price:DE-LU:" + today)
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, FieldReady, p.Snapshot().PricesStatus)
}

func TestPanelStaleZoneDiscarded(t *testing.T) {
	f := newGatedFetcher()
	for _, k := range []string{"price:DE-LU:" + today, "carbon:DE-LU", "power:DE-LU"} {
		f.hold(k)
	}
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.Open(ctx, zoneB))

	assert.Eventually(t, func() bool {
		s := p.Snapshot()
		return s.PricesStatus == FieldReady && s.CarbonStatus == FieldReady && s.PowerStatus == FieldReady
	}, time.Second, 5*time.Millisecond)

	// zone A answers after zone B
	for _, k := range []string{"price:DE-LU:" + today, "carbon:DE-LU", "power:DE-LU"} {
		f.release(k)
	}
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	require.NotNil(t, s.Feature)
	assert.Equal(t, "FR", s.Feature.ZoneName)
	require.Len(t, s.Prices, 1)
	assert.Equal(t, "FR", s.Prices[0].Unit)
	assert.Equal(t, "FR", s.Carbon.Zone)
	assert.Equal(t, "FR", s.Power.Zone)
}

func TestPanelCloseBeforeResolve(t *testing.T) {
	f := newGatedFetcher()
	for _, k := range []string{"price:DE-LU:" + today, "carbon:DE-LU", "power:DE-LU"} {
		f.hold(k)
	}
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	p.Close()

	for _, k := range []string{"price:DE-LU:" + today, "carbon:DE-LU", "power:DE-LU"} {
		f.release(k)
	}
	require.NoError(t, p.Wait(ctx))

	assert.Equal(t, PanelState{}, p.Snapshot())
}

func TestPanelReopenSameZoneDropsOldResponses(t *testing.T) {
	f := newGatedFetcher()
	f.hold("carbon:DE-LU")
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	p.Close()
	require.NoError(t, p.Open(ctx, zoneA))

	f.release("carbon:DE-LU")
	require.NoError(t, p.Wait(ctx))

	// both opens are answered by the released gate; only the second applies
	assert.Equal(t, 2, f.callCount("carbon:DE-LU"))
	assert.Equal(t, FieldReady, p.Snapshot().CarbonStatus)
}

func TestPanelChangeDate(t *testing.T) {
	f := newGatedFetcher()
	f.prices["DE-LU:2024-04-30"] = []types.PricePoint{{Time: "Y1", Price: 1, Unit: "EUR/MWh"}}
	f.hold("price:DE-LU:" + today)
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.ChangeDate(ctx, "2024-04-30"))

	assert.Eventually(t, func() bool {
		return p.Snapshot().PricesStatus == FieldReady
	}, time.Second, 5*time.Millisecond)

	// the slow answer for today must not overwrite the new date
	f.release("price:DE-LU:" + today)
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	assert.Equal(t, "2024-04-30", s.Date)
	require.Len(t, s.Prices, 1)
	assert.Equal(t, "Y1", s.Prices[0].Time)
	assert.Equal(t, 1, f.callCount("carbon:DE-LU"), "carbon intensity must not be refetched")
	assert.Equal(t, 1, f.callCount("power:DE-LU"), "power breakdown must not be refetched")
	assert.Equal(t, FieldReady, s.CarbonStatus)
	assert.Equal(t, FieldReady, s.PowerStatus)
}

func TestPanelChangeDateSameDateIsNoop(t *testing.T) {
	f := newGatedFetcher()
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.ChangeDate(ctx, today))
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, 1, f.callCount("price:DE-LU:"+today))
}

func TestPanelChangeDateErrors(t *testing.T) {
	p := newTestPanel(newGatedFetcher())
	ctx := context.Background()

	assert.ErrorIs(t, p.ChangeDate(ctx, "2024-04-30"), ErrPanelClosed)

	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.Wait(ctx))
	assert.Error(t, p.ChangeDate(ctx, "30/04/2024"))
	assert.Equal(t, today, p.Snapshot().Date)
}

func TestPanelFailuresStayEmpty(t *testing.T) {
	f := newGatedFetcher()
	f.fail["price:DE-LU:"+today] = true
	f.fail["carbon:DE-LU"] = true
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	assert.True(t, s.Open)
	assert.Nil(t, s.Prices)
	assert.Nil(t, s.Stats)
	assert.Equal(t, FieldFailed, s.PricesStatus)
	assert.Nil(t, s.Carbon)
	assert.Equal(t, FieldFailed, s.CarbonStatus)
	require.NotNil(t, s.Power)
	assert.Equal(t, FieldReady, s.PowerStatus)
}

func TestPanelEmptySeries(t *testing.T) {
	f := newGatedFetcher()
	f.prices["DE-LU:"+today] = []types.PricePoint{}
	p := newTestPanel(f)
	ctx := context.Background()

	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	assert.Equal(t, FieldReady, s.PricesStatus)
	assert.Empty(t, s.Prices)
	assert.Nil(t, s.Stats)
}

func TestPanelSnapshotIsACopy(t *testing.T) {
	p := newTestPanel(newGatedFetcher())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx, zoneA))
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	s.Prices[0].Price = 999
	s.Power.PowerConsumptionBreakdown["wind"] = 0
	s.Feature.ZoneName = "mutated"

	again := p.Snapshot()
	assert.Equal(t, 10.0, again.Prices[0].Price)
	assert.Equal(t, 100.0, again.Power.PowerConsumptionBreakdown["wind"])
	assert.Equal(t, "DE-LU", again.Feature.ZoneName)
}

func TestPanelManyClicks(t *testing.T) {
	f := newGatedFetcher()
	p := newTestPanel(f)
	ctx := context.Background()

	var last types.GeoFeature
	for i := 0; i < 20; i++ {
		last = types.GeoFeature{CountryName: "C", CountryKey: "CC", ZoneName: fmt.Sprintf("Z%d", i)}
		require.NoError(t, p.Open(ctx, last))
	}
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	assert.Equal(t, last.ZoneName, s.Feature.ZoneName)
	assert.Equal(t, last.ZoneName, s.Carbon.Zone)
	assert.Equal(t, last.ZoneName, s.Prices[0].Unit)
}

func TestPanelConcurrentOpenAndWait(t *testing.T) {
	p := newTestPanel(newGatedFetcher())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Open(ctx, zoneA))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Wait(ctx))
		}()
	}
	wg.Wait()
	require.NoError(t, p.Wait(ctx))

	s := p.Snapshot()
	assert.Equal(t, FieldReady, s.PricesStatus)
	assert.Equal(t, FieldReady, s.CarbonStatus)
	assert.Equal(t, FieldReady, s.PowerStatus)
}

func TestPanelWaitHonorsContext(t *testing.T) {
	f := newGatedFetcher()
	f.hold("carbon:DE-LU")
	p := newTestPanel(f)
	require.NoError(t, p.Open(context.Background(), zoneA))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, FieldPending, p.Snapshot().CarbonStatus)

	f.release("carbon:DE-LU")
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, FieldReady, p.Snapshot().CarbonStatus)
}

func TestPanelWaitWhenIdle(t *testing.T) {
	p := newTestPanel(newGatedFetcher())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Wait(ctx), "nothing in flight should not block or fail")
}
