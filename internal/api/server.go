// Package api serves the portfolio views, commands and the live activity
// stream over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"alpha_portfolios/internal/apperrors"
	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/manager"
	"alpha_portfolios/internal/research"
)

// Subscriber hands out live event channels.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// Journal looks up persisted activity.
type Journal interface {
	Recent(ctx context.Context, portfolio string, limit int) ([]events.Event, error)
}

// Options configures the server. Events, Journal and History are optional;
// their endpoints answer 503 when unset.
type Options struct {
	Addr    string
	Manager *manager.Manager
	Symbols []string
	Events  Subscriber
	Journal Journal
	History research.HistorySource
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Server is the HTTP front end of the manager.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	mgr     *manager.Manager
	symbols []string
	events  Subscriber
	journal Journal
	history research.HistorySource
	timeout time.Duration
	log     zerolog.Logger
}

// New creates the server and registers its routes.
func New(opts Options) *Server {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Server{
		router:  chi.NewRouter(),
		mgr:     opts.Manager,
		symbols: opts.Symbols,
		events:  opts.Events,
		journal: opts.Journal,
		history: opts.History,
		timeout: timeout,
		log:     opts.Logger.With().Str("component", "api").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	// No write timeout: cycles and the websocket stream outlive any fixed bound.
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", s.handleListPortfolios)
			r.Post("/", s.handleAddPortfolio)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetPortfolio)
				r.Delete("/", s.handleRemovePortfolio)
				r.Put("/config", s.handleUpdateConfig)
				r.Get("/trade_history", s.handleTradeHistory)
				r.Get("/activity", s.handleActivity)
				r.Get("/pnl", s.handlePnL)
				r.Get("/export", s.handleExport)
				r.Get("/journal", s.handleJournal)
			})
		})
		r.Route("/trades/{id}", func(r chi.Router) {
			r.Get("/notes", s.handleGetNotes)
			r.Post("/notes", s.handleSetNotes)
			r.Get("/tags", s.handleGetTags)
			r.Post("/tags", s.handleSetTags)
			r.Get("/price_history", s.handlePriceHistory)
		})
		r.Get("/benchmark", s.handleBenchmark)
		r.Post("/step", s.handleStep)
		r.Post("/scan", s.handleScan)
		r.Get("/events/ws", s.handleEventsWS)
	})
}

// Start serves until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrPortfolioNotFound), errors.Is(err, apperrors.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicateName), errors.Is(err, apperrors.ErrDuplicateCredentials):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrInvalidName),
		errors.Is(err, apperrors.ErrInvalidPromptTemplate),
		errors.Is(err, apperrors.ErrInvalidThreshold),
		errors.Is(err, apperrors.ErrInvalidQuantity),
		errors.Is(err, apperrors.ErrUnknownPeriod),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrPriceUnavailable), errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadRequest  = errors.New("bad request")
	errUnavailable = errors.New("not configured")
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"portfolios": s.mgr.Len(),
	})
}
