package session

import (
	"context"
	"sync"

	"github.com/zonemap/zonemap/pkg/controller"
	"github.com/zonemap/zonemap/pkg/search"
	"github.com/zonemap/zonemap/pkg/selection"
	"github.com/zonemap/zonemap/pkg/types"
)

// Fetcher is everything a session needs from the remote client.
type Fetcher interface {
	controller.Fetcher
	search.TariffFetcher
}

// View is the map-side state the browser renders.
type View struct {
	Hover     *types.HoverSelection `json:"hover"`
	Highlight selection.Filter      `json:"highlightFilter"`
	Panel     controller.PanelState `json:"panel"`
}

// Session is the view state of one browser session. It is only changed
// through its methods; the panel is open exactly when a feature is clicked.
type Session struct {
	ID string

	mu        sync.Mutex
	selection *selection.State
	panel     *controller.Panel
	search    *search.Search
}

// New returns an empty session.
func New(id string, f Fetcher, maxZoom float64) *Session {
	return &Session{
		ID:        id,
		selection: selection.New(maxZoom),
		panel:     controller.NewPanel(f),
		search:    search.New(f),
	}
}

// Hover updates the hovered feature; nil clears it.
func (s *Session) Hover(feature *types.GeoFeature, pointer types.Point) (selection.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selection.OnPointerMove(feature, pointer); err != nil {
		return selection.Filter{}, err
	}
	return s.selection.HighlightFilter(), nil
}

// Click selects feature, opens its panel and returns the viewport command.
func (s *Session) Click(ctx context.Context, feature types.GeoFeature) (types.Viewport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp, err := s.selection.OnClick(feature)
	if err != nil {
		return types.Viewport{}, err
	}
	if err := s.panel.Open(ctx, feature); err != nil {
		s.selection.OnClose()
		return types.Viewport{}, err
	}
	return vp, nil
}

// Close clears the click selection and the panel.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.OnClose()
	s.panel.Close()
}

// ChangeDate refetches the panel's price series for date.
func (s *Session) ChangeDate(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel.ChangeDate(ctx, date)
}

// Panel returns a snapshot of the panel.
func (s *Session) Panel() controller.PanelState {
	return s.panel.Snapshot()
}

// WaitPanel blocks until the panel's in-flight fetches settle or ctx is done.
func (s *Session) WaitPanel(ctx context.Context) error {
	return s.panel.Wait(ctx)
}

// View returns the map-side state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Highlight: s.selection.HighlightFilter(),
		Panel:     s.panel.Snapshot(),
	}
	if h, ok := s.selection.Hover(); ok {
		v.Hover = &h
	}
	return v
}

// Search runs a tariff search.
func (s *Session) Search(ctx context.Context, q types.TariffQuery) search.Results {
	return s.search.Run(ctx, q)
}

// SetSearchPage moves the tariff table to page.
func (s *Session) SetSearchPage(page int) search.Results {
	return s.search.SetPage(page)
}

// SearchResults returns the tariff table.
func (s *Session) SearchResults() search.Results {
	return s.search.Results()
}
