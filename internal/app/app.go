package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"student-fee-service/internal/auth"
	"student-fee-service/internal/config"
	"student-fee-service/internal/db"
	"student-fee-service/internal/events"
	"student-fee-service/internal/health"
	"student-fee-service/internal/logger"
	"student-fee-service/internal/metrics"
	"student-fee-service/internal/middleware"
	"student-fee-service/internal/student"
	"student-fee-service/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type App struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	logger        *slog.Logger
	db            *bun.DB
	publisher     events.Publisher
	meterProvider *sdkmetric.MeterProvider
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version, logger.Options{})
	slogLogger.Info("initializing application", "commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogLogger = logger.NewWithServiceContext(ServiceName, Version, logger.Options{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
	})
	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)
	slogLogger.Info("config loaded", "env", cfg.Env, "log_level", cfg.Log.Level)

	ctx := context.Background()

	meterProvider, err := telemetry.InitMeterProvider(ctx, cfg.Telemetry, ServiceName, Version, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize OTel metrics", "error", err)
	}

	appMetrics, err := metrics.New(ServiceName)
	if err != nil {
		log.Fatalf("failed to create metrics: %v", err)
	}

	database, err := db.New(ctx, cfg.Database, slogLogger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := appMetrics.Database.RegisterDB(database.DB, otel.Meter(ServiceName)); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	if err := db.RunMigrations(ctx, database, student.Models()...); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	publisher, err := events.New(cfg.Events, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize event publisher, events disabled", "driver", cfg.Events.Driver, "error", err)
		publisher = events.Nop{}
	}
	publisher = events.Instrument(publisher, appMetrics.Events)

	studentRepo := student.NewRepository(database, appMetrics)
	studentService := student.NewService(studentRepo, publisher, slogLogger)

	var authService *auth.Service
	if cfg.Auth.Enabled {
		authService = auth.NewService(cfg.Auth)
		slogLogger.Info("admin authentication enabled", "username", cfg.Auth.AdminUsername)
	}

	app := &App{
		config:        cfg,
		logger:        slogLogger,
		db:            database,
		publisher:     publisher,
		meterProvider: meterProvider,
	}
	app.router = NewRouter(Deps{
		Config:         cfg,
		Logger:         slogLogger,
		Metrics:        appMetrics,
		DB:             database,
		StudentService: studentService,
		AuthService:    authService,
	})

	slogLogger.Info("application initialized successfully")

	return app
}

// Deps are the collaborators NewRouter mounts. A nil AuthService leaves the
// API open.
type Deps struct {
	Config         *config.Config
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	DB             health.Pinger
	StudentService student.Service
	AuthService    *auth.Service
}

func NewRouter(d Deps) chi.Router {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(middleware.CORS(d.Config.Server.CORSOrigins))

	// Health endpoints (no auth required)
	health.NewHandler(d.DB, d.Logger).RegisterRoutes(router)

	if d.AuthService != nil {
		auth.NewHandler(d.AuthService, d.Logger).RegisterRoutes(router)
	}

	studentHandler := student.NewHandler(d.StudentService, d.Logger, d.Metrics)

	router.Route("/api", func(r chi.Router) {
		if d.AuthService != nil {
			r.Use(auth.Middleware(d.AuthService, d.Logger))
		}
		studentHandler.RegisterRoutes(r)
	})

	return router
}

func (a *App) Run() error {
	s := a.config.Server
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(s.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", s.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, then releases the publisher, the database
// pool and the meter provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	db.Close(a.db)
	errs = append(errs, telemetry.Shutdown(ctx, a.meterProvider, a.logger))

	return errors.Join(errs...)
}
