package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jjudge-oj/palette/config"
	"github.com/jjudge-oj/palette/internal/db"
	"github.com/jjudge-oj/palette/internal/handlers"
	"github.com/jjudge-oj/palette/internal/mq"
	"github.com/jjudge-oj/palette/internal/services"
	"github.com/jjudge-oj/palette/internal/storage"
	"github.com/jjudge-oj/palette/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	objects    *storage.Storage
	log        *slog.Logger
}

// Dependencies are the collaborators the router needs.
type Dependencies struct {
	Auth        *services.AuthService
	Palette     *services.PaletteService
	DB          handlers.Pinger
	Limiter     *handlers.AuthLimiter
	CORSOrigins []string
	Log         *slog.Logger
}

// New opens the database, object storage and broker described by cfg and
// builds a Server around them.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	tokens, err := services.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = objects.Close()
		return nil, fmt.Errorf("ensure bucket %q: %w", objects.Bucket(), err)
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		_ = objects.Close()
		return nil, err
	}

	mqClient, err := mq.Connect(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		_ = objects.Close()
		return nil, fmt.Errorf("connect mq: %w", err)
	}
	var publisher services.EventPublisher
	if mqClient != nil {
		publisher = mqClient
	}

	userRepo := store.NewUserRepository(dbConn)
	paletteRepo := store.NewPaletteRepository(dbConn)

	router := NewRouter(Dependencies{
		Auth:        services.NewAuthService(userRepo, tokens, log),
		Palette:     services.NewPaletteService(paletteRepo, objects, publisher, cfg.MQ.Channel, log),
		DB:          dbConn,
		Limiter:     handlers.NewAuthLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst),
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server configured",
		slog.Int("port", port),
		slog.String("storage", cfg.Storage.Backend),
		slog.Bool("events", mqClient != nil),
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         mqClient,
		objects:    objects,
		log:        log,
	}, nil
}

// NewRouter builds the chi router with middleware and all API routes.
func NewRouter(deps Dependencies) *chi.Mux {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}),
	)

	router.Get("/healthz", handlers.Healthz(deps.DB))
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Auth, deps.Limiter, log)
		})
		r.Route("/palette", func(r chi.Router) {
			handlers.PaletteRouter(r, deps.Palette, handlers.RequireAuth(deps.Auth), log)
		})
	})
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadsRouter(r, deps.Palette, log)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases the broker, storage and database clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if mqErr := s.mq.Close(); mqErr != nil {
			s.log.Warn("close mq", slog.Any("error", mqErr))
		}
	}
	if s.objects != nil {
		if stErr := s.objects.Close(); stErr != nil {
			s.log.Warn("close storage", slog.Any("error", stErr))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
