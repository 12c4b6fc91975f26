package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bibliotheque/apiserver/config"
	"github.com/bibliotheque/apiserver/internal/db"
	"github.com/bibliotheque/apiserver/internal/handlers"
	"github.com/bibliotheque/apiserver/internal/metrics"
	"github.com/bibliotheque/apiserver/internal/mq"
	"github.com/bibliotheque/apiserver/internal/services"
	"github.com/bibliotheque/apiserver/internal/store"
	"github.com/bibliotheque/apiserver/internal/store/memstore"
)

const shutdownTimeout = 10 * time.Second

// LoanStore is the loan persistence needed by the HTTP surface.
type LoanStore interface {
	services.LoanRepository
	services.OpenLoanCounter
}

// Repositories bundles one Entity Store implementation.
type Repositories struct {
	Users services.UserRepository
	Books services.BookRepository
	Loans LoanStore
}

// Deps is everything NewRouter needs.
type Deps struct {
	Repos    Repositories
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Events   services.EventPublisher
	Channel  string
	Origins  []string
	Clock    func() time.Time
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	closers    []io.Closer
}

// New opens the configured store and broker and builds the HTTP server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger}

	repos, err := s.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var events services.EventPublisher
	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		logger.Info("loan events disabled")
	case err != nil:
		s.close()
		return nil, err
	default:
		s.closers = append(s.closers, queue)
		events = queue
		logger.Info("loan events enabled", slog.String("backend", queue.Name()), slog.String("channel", cfg.MQ.LoanEventsChannel))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := NewRouter(Deps{
		Repos:    repos,
		Logger:   logger,
		Registry: registry,
		Events:   events,
		Channel:  cfg.MQ.LoanEventsChannel,
		Origins:  cfg.CORSOrigins,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// NewRouter mounts middleware and every route on a chi router.
func NewRouter(deps Deps) *chi.Mux {
	lendingMetrics := metrics.NewLending(deps.Registry)
	httpMetrics := metrics.NewHTTP(deps.Registry)

	opts := []services.Option{
		services.WithLogger(deps.Logger),
		services.WithClock(deps.Clock),
		services.WithMetrics(lendingMetrics),
	}
	if deps.Events != nil {
		opts = append(opts, services.WithEvents(deps.Events, deps.Channel))
	}

	repos := deps.Repos
	userService := services.NewUserService(repos.Users, opts...)
	bookService := services.NewBookService(repos.Books, repos.Loans, opts...)
	loanService := services.NewLoanService(repos.Loans, opts...)
	statsService := services.NewStatsService(repos.Users, repos.Books, repos.Loans, repos.Loans, opts...)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		httpMetrics.Middleware,
	)
	if len(deps.Origins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.Origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, loanService, deps.Logger)
	})
	router.Route("/books", func(r chi.Router) {
		handlers.BookRouter(r, bookService, deps.Logger)
	})
	router.Route("/emprunts", func(r chi.Router) {
		handlers.LoanRouter(r, loanService, deps.Logger)
	})
	router.Get("/stats", handlers.NewStatsHandler(statsService, deps.Logger).Dashboard)
	return router
}

func (s *Server) openRepositories(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch cfg.Store {
	case config.StoreBackendMemory:
		s.logger.Warn("using in-memory store; data is lost on restart")
		st := memstore.New()
		return Repositories{Users: st.Users(), Books: st.Books(), Loans: st.Loans()}, nil
	case "", config.StoreBackendPostgres:
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, fmt.Errorf("open database: %w", err)
		}
		s.closers = append(s.closers, dbConn)
		return Repositories{
			Users: store.NewUserRepository(dbConn),
			Books: store.NewBookRepository(dbConn),
			Loans: store.NewLoanRepository(dbConn),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and releases the store and broker.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn("close resource", slog.Any("error", err))
		}
	}
	s.closers = nil
}
