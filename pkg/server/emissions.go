package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/remote"
)

func (s *Server) handleEmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1750 || year > 9999 {
		writeJSONError(w, "invalid year", http.StatusBadRequest)
		return
	}

	rows, err := s.emissions.FetchYearlyEmissions(ctx, year)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch emissions", slog.Int("year", year), slog.Any("error", err))
		if rerr, ok := remote.AsError(err); ok && rerr.Kind == remote.KindHTTP && rerr.Status == http.StatusNotFound {
			writeJSONError(w, "no data for year", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to fetch emissions", http.StatusBadGateway)
		return
	}

	// the datasets are static per year
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, rows)
}
