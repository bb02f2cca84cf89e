package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/remote"
	"github.com/zonemap/zonemap/pkg/types"
)

// RowsPerPage is the size of a result table page.
const RowsPerPage = 5

const genericError = "An error occurred. Please try again."

// TariffFetcher runs the remote tariff search.
type TariffFetcher interface {
	FetchTariffs(ctx context.Context, country, zipcode, kwTotal string) ([]types.TariffRecord, error)
}

// Results is what the search view renders.
type Results struct {
	Query     types.TariffQuery    `json:"query"`
	Loading   bool                 `json:"loading"`
	Error     string               `json:"error,omitempty"`
	Page      int                  `json:"page"`
	PageCount int                  `json:"pageCount"`
	Total     int                  `json:"total"`
	Rows      []types.TariffRecord `json:"rows"`
}

// Search is the residential tariff search view state.
type Search struct {
	fetcher TariffFetcher

	mu      sync.Mutex
	seq     uint64
	query   types.TariffQuery
	loading bool
	errMsg  string
	pager   *Pager[types.TariffRecord]
}

// New returns an empty Search.
func New(f TariffFetcher) *Search {
	return &Search{
		fetcher: f,
		pager:   NewPager[types.TariffRecord](RowsPerPage),
	}
}

// Run executes q and returns the resulting view. Failures never escape: an
// HTTP failure shows the server's message, anything else a generic one, and
// the table is emptied. A result that arrives after a newer search started is
// dropped.
func (s *Search) Run(ctx context.Context, q types.TariffQuery) Results {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.query = q
	s.loading = true
	s.errMsg = ""
	s.pager.SetPage(1)
	s.mu.Unlock()

	records, err := s.fetcher.FetchTariffs(ctx, q.Country, q.Zipcode, q.KWTotal)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		log.Ctx(ctx).DebugContext(ctx, "discarding stale tariff search", slog.String("zipcode", q.Zipcode))
		return s.resultsLocked()
	}
	s.loading = false
	if err != nil {
		s.errMsg = errorMessage(err)
		s.pager.SetRecords(nil)
		log.Ctx(ctx).InfoContext(
			ctx,
			"tariff search failed",
			slog.String("country", q.Country),
			slog.String("zipcode", q.Zipcode),
			slog.Any("error", err),
		)
		return s.resultsLocked()
	}
	s.pager.SetRecords(records)
	return s.resultsLocked()
}

// SetPage moves the result table to page.
func (s *Search) SetPage(page int) Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.SetPage(page)
	return s.resultsLocked()
}

// Results returns the current view.
func (s *Search) Results() Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsLocked()
}

func (s *Search) resultsLocked() Results {
	items := s.pager.Items()
	rows := make([]types.TariffRecord, len(items))
	for i, r := range items {
		r.Description = CleanDescription(r.Description)
		rows[i] = r
	}
	return Results{
		Query:     s.query,
		Loading:   s.loading,
		Error:     s.errMsg,
		Page:      s.pager.Page(),
		PageCount: s.pager.PageCount(),
		Total:     s.pager.Len(),
		Rows:      rows,
	}
}

func errorMessage(err error) string {
	if rerr, ok := remote.AsError(err); ok && rerr.Kind == remote.KindHTTP && rerr.ServerMessage != "" {
		return rerr.ServerMessage
	}
	return genericError
}

// CleanDescription strips the provider's boilerplate marker and turns line
// breaks into <br /> for the description cell.
func CleanDescription(desc string) string {
	desc = strings.Replace(desc, "Abschlag \n Tarifdetails", "", 1)
	desc = strings.ReplaceAll(desc, "\n", "<br />")
	desc = strings.ReplaceAll(desc, "\r", "<br />")
	return desc
}
