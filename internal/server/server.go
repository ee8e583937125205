// Package server exposes the summarizer over HTTP: the message endpoint
// used by the listing page, the settings endpoints, and the annotated
// listing itself.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	digest "github.com/porticus-lab/tdnet-digest"
	"github.com/porticus-lab/tdnet-digest/internal/tdnet"
	"github.com/porticus-lab/tdnet-digest/settings"
)

// Summarizer answers summarize requests. *digest.Pipeline implements it.
type Summarizer interface {
	Handle(ctx context.Context, req digest.SummarizeRequest) digest.SummaryResult
}

// Options wires a Server.
type Options struct {
	Summarizer Summarizer
	Store      settings.Store
	State      *tdnet.State
	Loader     tdnet.Loader
	ListingURL string
	// AllowedOrigins may call the API cross-origin, in addition to the
	// server itself. Defaults to the TDnet origin; "*" allows any.
	AllowedOrigins []string
	Logger         *logrus.Logger
}

// Server is the HTTP surface.
type Server struct {
	opts   Options
	log    *logrus.Logger
	router chi.Router
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.State == nil {
		opts.State = tdnet.NewState(true)
	}
	if opts.Loader == nil {
		opts.Loader = tdnet.HTTPLoader{}
	}
	if opts.ListingURL == "" {
		opts.ListingURL = tdnet.DefaultListingURL
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{tdnet.SiteOrigin}
	}
	s := &Server{opts: opts, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: opts.Logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.healthz)
	r.Get("/listing", s.listing)
	r.Route("/api", func(api chi.Router) {
		api.Use(s.checkOrigin)
		api.Post("/message", s.message)
		api.Get("/settings", s.getSettings)
		api.Put("/settings", s.putSettings)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// checkOrigin refuses state-changing requests sent by a page on an origin
// that is neither this server nor allowed.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		origin := r.Header.Get("Origin")
		if origin == "" || s.originAllowed(origin, r) {
			next.ServeHTTP(w, r)
			return
		}
		s.log.WithFields(logrus.Fields{"origin": origin, "path": r.URL.Path}).Warn("cross-origin request refused")
		writeJSON(w, http.StatusForbidden, errorReply{Error: "origin not allowed"})
	})
}

func (s *Server) originAllowed(origin string, r *http.Request) bool {
	if strings.EqualFold(origin, baseURL(r)) {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
