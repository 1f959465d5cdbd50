// Package server exposes the HTTP surface: the metadata document at the
// root route and vector tiles at /tiles/{z}/{x}/{y}.pbf.
//
// Both the tile fetcher and the metadata document are injected at
// construction; the metadata document is serialized once and served
// byte-identical to every caller.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tilecraft/postserve/internal/errs"
	"github.com/tilecraft/postserve/internal/logger"
	"github.com/tilecraft/postserve/internal/metadata"
	"github.com/tilecraft/postserve/internal/metrics"
)

// TileFetcher executes the shared tile query for one coordinate.
type TileFetcher interface {
	// FetchTile returns the binary tile payload for (zoom, x, y).
	// A nil payload with a nil error means an empty tile.
	FetchTile(ctx context.Context, zoom, x, y int) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	Addr     string
	Tiles    TileFetcher
	Metadata *metadata.Document
	Logger   *logger.Logger

	// Metrics is optional; when nil the /metrics route is not registered
	// and no samples are recorded.
	Metrics *metrics.Provider
}

// Server serves tiles and metadata over HTTP.
type Server struct {
	addr    string
	tiles   TileFetcher
	doc     []byte
	log     *logger.Logger
	metrics *metrics.Provider
	router  http.Handler
}

// New builds a Server. The metadata document is marshaled here, exactly
// once; requests only ever see the cached bytes.
func New(opts Options) (*Server, error) {
	doc, err := json.Marshal(opts.Metadata)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStartupFailed, "failed to encode metadata document", err)
	}

	s := &Server{
		addr:    opts.Addr,
		tiles:   opts.Tiles,
		doc:     doc,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}

	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(RequestLogger(s.log))
	r.Use(CORS())

	r.Get("/", s.handleMetadata)
	r.Get("/tiles/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}.pbf", s.handleTile)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	s.router = r

	return s, nil
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: a tile fetch has no deadline of its own, and a
		// hung query holds its pool lease until the client goes away.
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("postserve listening on %s", s.addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleMetadata serves the precomputed metadata document. No computation
// happens at request time.
func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.doc)
}

// handleTile fetches one tile and writes the binary payload. An empty or
// missing tile is a valid 200 response with a zero-length body.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	z, x, y, err := coordinates(r)
	if err != nil {
		http.Error(w, "malformed tile coordinate", http.StatusBadRequest)
		return
	}

	start := time.Now()
	tile, err := s.tiles.FetchTile(r.Context(), z, x, y)
	elapsed := time.Since(start)

	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveTile(http.StatusInternalServerError, elapsed, 0)
		}
		s.log.ErrorWith("tile fetch failed", err, map[string]interface{}{
			"z": z, "x": x, "y": y,
		})
		http.Error(w, "tile fetch failed", http.StatusInternalServerError)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveTile(http.StatusOK, elapsed, len(tile))
	}

	h := w.Header()
	h.Set("Content-Type", "application/x-protobuf")
	h.Set("Content-Disposition", "attachment")
	// Duplicates the CORS middleware's default on purpose.
	h.Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(tile)
}

// coordinates parses the three path parameters. The route pattern already
// restricts them to digit runs; parsing can still fail on overflow.
func coordinates(r *http.Request) (z, x, y int, err error) {
	if z, err = strconv.Atoi(chi.URLParam(r, "z")); err != nil {
		return 0, 0, 0, err
	}
	if x, err = strconv.Atoi(chi.URLParam(r, "x")); err != nil {
		return 0, 0, 0, err
	}
	if y, err = strconv.Atoi(chi.URLParam(r, "y")); err != nil {
		return 0, 0, 0, err
	}
	return z, x, y, nil
}
