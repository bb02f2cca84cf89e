package server

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zonemap/zonemap/pkg/controller"
	"github.com/zonemap/zonemap/pkg/export"
	"github.com/zonemap/zonemap/pkg/log"
)

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.getSession(r)
	if r.URL.Query().Get("wait") != "" {
		if err := sess.WaitPanel(ctx); err != nil {
			// the client went away, nobody is reading the answer
			log.Ctx(ctx).DebugContext(ctx, "stopped waiting for panel", slog.Any("error", err))
			return
		}
	}
	writeJSON(w, sess.View())
}

func (s *Server) handleClosePanel(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(r)
	sess.Close()
	writeJSON(w, sess.View())
}

type dateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (s *Server) handleChangeDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.getSession(r)

	var req dateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := sess.ChangeDate(ctx, req.Date); err != nil {
		if errors.Is(err, controller.ErrPanelClosed) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, sess.View())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	panel := s.getSession(r).Panel()
	if !panel.Open {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, ok := export.ToDelimitedText(panel.Prices)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	name := export.FileName(panel.Feature.ZoneName, panel.Date)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(body); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	panel := s.getSession(r).Panel()
	if !panel.Open {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := export.RenderChart(&buf, panel.Feature.ZoneName, panel.Date, panel.Prices); err != nil {
		if errors.Is(err, export.ErrNotEnoughPoints) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to render chart", slog.String("zone", panel.Feature.ZoneName), slog.Any("error", err))
		writeJSONError(w, "failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		panic(http.ErrAbortHandler)
	}
}
