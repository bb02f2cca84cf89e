package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-playground/validator/v10"
	"github.com/levenlabs/go-lflag"
	"github.com/zonemap/zonemap/pkg/common"
	"github.com/zonemap/zonemap/pkg/geo"
	"github.com/zonemap/zonemap/pkg/log"
	"github.com/zonemap/zonemap/pkg/session"
	"github.com/zonemap/zonemap/pkg/types"
)

const sessionCookie = "zonemap_session"

type contextKey string

const sessionContextKey contextKey = "session"

var validate = validator.New()

// EmissionsFetcher loads the yearly CO2 datasets.
type EmissionsFetcher interface {
	FetchYearlyEmissions(ctx context.Context, year int) ([]types.CountryEmission, error)
}

// Server is the HTTP shell of the dashboard. It serves the static map assets
// and exposes the per-session view operations as a JSON API.
type Server struct {
	emissions EmissionsFetcher
	zones     *geo.Dataset
	sessions  *session.Store
	static    fs.FS

	listenAddr       string
	serverName       string
	webCacheDuration time.Duration
	secureCookie     bool
	httpServer       *http.Server
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(e EmissionsFetcher, zones *geo.Dataset, sessions *session.Store) *Server {
	srv := &Server{
		emissions:  e,
		zones:      zones,
		sessions:   sessions,
		serverName: "zonemap/" + common.Version(),
	}

	// get the port from PORT when running in a container
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	staticDir := lflag.String("static-dir", "public", "Directory with the web app, world.geojson and co2_data/")
	webCacheDuration := lflag.Duration("web-cache-duration", 0, "Duration to cache web files (e.g. 1h, 5m). 0 means no cache.")
	secureCookie := lflag.Bool("secure-cookie", false, "Mark the session cookie as Secure")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.static = os.DirFS(*staticDir)
		srv.webCacheDuration = *webCacheDuration
		srv.secureCookie = *secureCookie
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/map/hover", s.handleHover)
	apiMux.HandleFunc("POST /api/map/click", s.handleClick)
	apiMux.HandleFunc("GET /api/panel", s.handlePanel)
	apiMux.HandleFunc("POST /api/panel/close", s.handleClosePanel)
	apiMux.HandleFunc("POST /api/panel/date", s.handleChangeDate)
	apiMux.HandleFunc("GET /api/panel/export", s.handleExport)
	apiMux.HandleFunc("GET /api/panel/chart.svg", s.handleChart)
	apiMux.HandleFunc("POST /api/search", s.handleSearch)
	apiMux.HandleFunc("GET /api/search", s.handleSearchPage)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.sessionMiddleware(apiMux))
	mux.HandleFunc("GET /api/emissions/{year}", s.handleEmissions)
	if s.static != nil {
		mux.Handle("/", s.webHandler(s.static, http.FileServer(http.FS(s.static))))
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

func (s *Server) getSession(r *http.Request) *session.Session {
	if sess, ok := r.Context().Value(sessionContextKey).(*session.Session); ok {
		return sess
	}
	// we want to have a stack trace when this happens
	panic("no session in context")
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// decodeBody decodes and validates a JSON request body, writing a 400 on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) webHandler(dir fs.FS, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Default to serving index.html for unknown paths (SPA)
		if r.URL.Path != "/" {
			f, err := dir.Open(strings.TrimPrefix(r.URL.Path, "/"))
			if err == nil {
				f.Close()
			} else if errors.Is(err, fs.ErrNotExist) {
				// data files must 404 so the map can tell a missing year apart
				if strings.HasPrefix(r.URL.Path, "/co2_data/") || strings.HasSuffix(r.URL.Path, ".geojson") {
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				r.URL.Path = "/"
			} else {
				log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to open file", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		if s.webCacheDuration > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.webCacheDuration.Seconds())))
		}

		h.ServeHTTP(w, r)
	}
}
