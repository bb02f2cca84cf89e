package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/types"
	"golang.org/x/sync/errgroup"
)

// DateLayout is the calendar date format used for price queries.
const DateLayout = "2006-01-02"

// ErrPanelClosed is returned by operations that need an open panel.
var ErrPanelClosed = errors.New("panel is closed")

// Fetcher retrieves the data shown in the panel.
type Fetcher interface {
	FetchPriceSeries(ctx context.Context, zone, date string) ([]types.PricePoint, error)
	FetchCarbonIntensity(ctx context.Context, zone string) (types.CarbonIntensity, error)
	FetchPowerBreakdown(ctx context.Context, zone string) (types.PowerBreakdown, error)
}

// FieldStatus is the load state of one panel field.
type FieldStatus string

const (
	FieldPending FieldStatus = "pending"
	FieldReady   FieldStatus = "ready"
	FieldFailed  FieldStatus = "failed"
)

// PanelState is a snapshot of the side panel. The zero value is the closed
// panel.
type PanelState struct {
	Open    bool              `json:"open"`
	Feature *types.GeoFeature `json:"feature,omitempty"`
	Date    string            `json:"date,omitempty"`

	Prices       []types.PricePoint `json:"prices"`
	PricesStatus FieldStatus        `json:"pricesStatus,omitempty"`
	Stats        *types.Stats       `json:"stats"`

	Carbon       *types.CarbonIntensity `json:"carbonIntensity"`
	CarbonStatus FieldStatus            `json:"carbonIntensityStatus,omitempty"`

	Power       *types.PowerBreakdown `json:"powerBreakdown"`
	PowerStatus FieldStatus           `json:"powerBreakdownStatus,omitempty"`
}

// requestKey identifies the selection a fetch was issued for.
type requestKey struct {
	gen  uint64
	zone string
	date string
}

// Panel owns the side panel lifecycle. Fetches run in the background and a
// result is only applied if the selection it was issued for is still current.
type Panel struct {
	fetcher Fetcher
	now     func() time.Time

	mu    sync.Mutex
	state PanelState
	// gen changes on every open and close; priceGen also changes on every
	// date change
	gen      uint64
	priceGen uint64

	// inflight counts fetches not yet settled; idle is closed when it drops
	// back to zero
	inflight int
	idle     chan struct{}
}

// NewPanel returns a closed Panel.
func NewPanel(f Fetcher) *Panel {
	return &Panel{
		fetcher: f,
		now:     time.Now,
	}
}

// Open shows the panel for feature, resets the date to today and starts the
// price, carbon intensity and power breakdown fetches. Any previous panel is
// replaced and its outstanding responses will be dropped.
func (p *Panel) Open(ctx context.Context, feature types.GeoFeature) error {
	if err := feature.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.gen++
	p.priceGen++
	date := p.now().Format(DateLayout)
	p.state = PanelState{
		Open:         true,
		Feature:      &feature,
		Date:         date,
		PricesStatus: FieldPending,
		CarbonStatus: FieldPending,
		PowerStatus:  FieldPending,
	}
	gridKey := requestKey{gen: p.gen, zone: feature.ZoneName}
	priceKey := requestKey{gen: p.priceGen, zone: feature.ZoneName, date: date}
	p.trackLocked()
	p.mu.Unlock()

	log.Ctx(ctx).DebugContext(
		ctx,
		"opening panel",
		slog.String("zone", feature.ZoneName),
		slog.String("date", date),
	)

	ctx = context.WithoutCancel(ctx)
	p.dispatch(func() {
		var g errgroup.Group
		g.Go(func() error {
			p.loadPrices(ctx, priceKey)
			return nil
		})
		g.Go(func() error {
			p.loadCarbon(ctx, gridKey)
			return nil
		})
		g.Go(func() error {
			p.loadPower(ctx, gridKey)
			return nil
		})
		// errors are absorbed per field
		_ = g.Wait()
	})
	return nil
}

// ChangeDate refetches the price series for date (YYYY-MM-DD). Carbon
// intensity and power breakdown are left untouched.
func (p *Panel) ChangeDate(ctx context.Context, date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}

	p.mu.Lock()
	if !p.state.Open {
		p.mu.Unlock()
		return ErrPanelClosed
	}
	if p.state.Date == date {
		p.mu.Unlock()
		return nil
	}
	p.priceGen++
	p.state.Date = date
	p.state.Prices = nil
	p.state.PricesStatus = FieldPending
	key := requestKey{gen: p.priceGen, zone: p.state.Feature.ZoneName, date: date}
	p.trackLocked()
	p.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	p.dispatch(func() {
		p.loadPrices(ctx, key)
	})
	return nil
}

// Close hides the panel and drops all fetched data. Responses still in
// flight are discarded when they arrive.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.priceGen++
	p.state = PanelState{}
}

// Snapshot returns a copy of the current state with stats computed from the
// price series.
func (p *Panel) Snapshot() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	if s.Feature != nil {
		f := *s.Feature
		s.Feature = &f
	}
	if s.Prices != nil {
		s.Prices = append([]types.PricePoint(nil), s.Prices...)
	}
	if s.Carbon != nil {
		c := *s.Carbon
		s.Carbon = &c
	}
	if s.Power != nil {
		pb := *s.Power
		pb.PowerConsumptionBreakdown = make(map[string]float64, len(s.Power.PowerConsumptionBreakdown))
		for k, v := range s.Power.PowerConsumptionBreakdown {
			pb.PowerConsumptionBreakdown[k] = v
		}
		s.Power = &pb
	}
	s.Stats = ComputeStats(s.Prices)
	return s
}

// Wait blocks until every fetch issued so far has settled or ctx is done.
func (p *Panel) Wait(ctx context.Context) error {
	p.mu.Lock()
	if p.inflight == 0 {
		p.mu.Unlock()
		return nil
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackLocked registers a fetch that is about to be dispatched. It must be
// called with mu held, in the same critical section that marks the field
// pending.
func (p *Panel) trackLocked() {
	if p.inflight == 0 {
		p.idle = make(chan struct{})
	}
	p.inflight++
}

func (p *Panel) untrack() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if p.inflight == 0 {
		close(p.idle)
	}
}

// dispatch runs fn in the background. The fetch must already be tracked.
func (p *Panel) dispatch(fn func()) {
	go func() {
		defer p.untrack()
		fn()
	}()
}

func (p *Panel) loadPrices(ctx context.Context, key requestKey) {
	series, err := p.fetcher.FetchPriceSeries(ctx, key.zone, key.date)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Open || key.gen != p.priceGen || key.zone != p.state.Feature.ZoneName || key.date != p.state.Date {
		log.Ctx(ctx).DebugContext(
			ctx,
			"discarding stale price series",
			slog.String("zone", key.zone),
			slog.String("date", key.date),
		)
		return
	}
	if err != nil {
		log.Ctx(ctx).WarnContext(
			ctx,
			"failed to fetch price series",
			slog.String("zone", key.zone),
			slog.String("date", key.date),
			slog.Any("error", err),
		)
		p.state.Prices = nil
		p.state.PricesStatus = FieldFailed
		return
	}
	p.state.Prices = series
	p.state.PricesStatus = FieldReady
}

func (p *Panel) loadCarbon(ctx context.Context, key requestKey) {
	ci, err := p.fetcher.FetchCarbonIntensity(ctx, key.zone)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.currentGrid(key) {
		log.Ctx(ctx).DebugContext(ctx, "discarding stale carbon intensity", slog.String("zone", key.zone))
		return
	}
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch carbon intensity", slog.String("zone", key.zone), slog.Any("error", err))
		p.state.CarbonStatus = FieldFailed
		return
	}
	p.state.Carbon = &ci
	p.state.CarbonStatus = FieldReady
}

func (p *Panel) loadPower(ctx context.Context, key requestKey) {
	pb, err := p.fetcher.FetchPowerBreakdown(ctx, key.zone)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.currentGrid(key) {
		log.Ctx(ctx).DebugContext(ctx, "discarding stale power breakdown", slog.String("zone", key.zone))
		return
	}
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch power breakdown", slog.String("zone", key.zone), slog.Any("error", err))
		p.state.PowerStatus = FieldFailed
		return
	}
	p.state.Power = &pb
	p.state.PowerStatus = FieldReady
}

// currentGrid must be called with mu held.
func (p *Panel) currentGrid(key requestKey) bool {
	return p.state.Open && key.gen == p.gen && key.zone == p.state.Feature.ZoneName
}
