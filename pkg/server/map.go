package server

import (
	"log/slog"
	"net/http"

	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/selection"
	"github.com/zonemap/zonemap/pkg/session"
	"github.com/zonemap/zonemap/pkg/types"
)

type hoverRequest struct {
	// Feature is null when the pointer left every zone.
	Feature *types.GeoFeature `json:"feature"`
	X       float64           `json:"x"`
	Y       float64           `json:"y"`
}

type hoverResponse struct {
	Hover     *types.HoverSelection `json:"hover"`
	Highlight selection.Filter      `json:"highlightFilter"`
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(r)

	var req hoverRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Feature != nil {
		// prefer our copy so the bounds are ours, not the browser's
		if f, ok := s.zones.Lookup(req.Feature.ZoneName); ok {
			req.Feature = &f
		}
	}

	filter, err := sess.Hover(req.Feature, types.Point{X: req.X, Y: req.Y})
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, hoverResponse{
		Hover:     sess.View().Hover,
		Highlight: filter,
	})
}

type clickRequest struct {
	ZoneName string `json:"zoneName" validate:"required"`
}

type clickResponse struct {
	Viewport types.Viewport `json:"viewport"`
	View     session.View   `json:"view"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.getSession(r)

	var req clickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	feature, ok := s.zones.Lookup(req.ZoneName)
	if !ok {
		writeJSONError(w, "unknown zone", http.StatusNotFound)
		return
	}

	vp, err := sess.Click(ctx, feature)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to open panel", slog.String("zone", req.ZoneName), slog.Any("error", err))
		writeJSONError(w, "failed to open panel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, clickResponse{
		Viewport: vp,
		View:     sess.View(),
	})
}
