package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/nzlopez07/Florens/internal/config"
	"github.com/nzlopez07/Florens/internal/domain/appointment"
	"github.com/nzlopez07/Florens/internal/domain/insurer"
	"github.com/nzlopez07/Florens/internal/domain/locality"
	"github.com/nzlopez07/Florens/internal/domain/odontogram"
	"github.com/nzlopez07/Florens/internal/domain/patient"
	"github.com/nzlopez07/Florens/internal/domain/practice"
	"github.com/nzlopez07/Florens/internal/domain/procedure"
	"github.com/nzlopez07/Florens/internal/platform/auth"
	"github.com/nzlopez07/Florens/internal/platform/db"
	"github.com/nzlopez07/Florens/internal/platform/events"
	"github.com/nzlopez07/Florens/internal/platform/middleware"
	"github.com/nzlopez07/Florens/internal/platform/openapi"
	"github.com/nzlopez07/Florens/internal/platform/telemetry"
	"github.com/nzlopez07/Florens/internal/platform/validate"
)

// server bundles the echo instance with the services that outlive a request.
type server struct {
	echo         *echo.Echo
	appointments *appointment.Service
}

// newServer wires every route. pool may be nil when the server is only built
// to enumerate routes.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, publisher events.Publisher, tracer trace.Tracer) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Tracing(tracer))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(authMiddleware(cfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	openapi.NewGenerator(version, fmt.Sprintf("http://localhost:%s", cfg.Port)).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Catalogs
	localitySvc := locality.NewService(locality.NewRepoPG(pool))
	locality.NewHandler(localitySvc).RegisterRoutes(apiV1)
	insurerSvc := insurer.NewService(insurer.NewRepoPG(pool))
	insurer.NewHandler(insurerSvc).RegisterRoutes(apiV1)
	practiceSvc := practice.NewService(practice.NewRepoPG(pool), insurerSvc)
	practice.NewHandler(practiceSvc).RegisterRoutes(apiV1)

	// Patients
	patientSvc := patient.NewService(patient.NewRepoPG(pool),
		patient.WithLocalities(localitySvc),
		patient.WithInsurers(insurerSvc),
	)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	// Procedures
	procedureSvc := procedure.NewService(procedure.NewRepoPG(pool), patientSvc,
		procedure.WithPractices(practiceSvc),
	)
	procedure.NewHandler(procedureSvc).RegisterRoutes(apiV1)

	// Appointments
	appointmentSvc := appointment.NewService(appointment.NewStorePG(pool), patientSvc,
		appointment.WithPublisher(publisher),
		appointment.WithLogger(logger),
		appointment.WithTracer(tracer),
	)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)

	// Odontogram
	chart := odontogram.NewManager(odontogram.NewUnitOfWorkPG(pool),
		odontogram.WithRetention(cfg.OdontogramRetention),
		odontogram.WithPublisher(publisher),
		odontogram.WithLogger(logger),
		odontogram.WithTracer(tracer),
	)
	odontogram.NewHandler(chart).RegisterRoutes(apiV1)

	return &server{echo: e, appointments: appointmentSvc}
}

// authMiddleware accepts anonymous requests as admin in development; bearer
// tokens are still verified when a signing key is configured.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	var jwtMW echo.MiddlewareFunc
	if cfg.AuthSigningKey != "" || !cfg.IsDev() {
		jwtMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		})
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(auth.AuthSkipper, jwtMW)
	}
	return jwtMW
}

// newPublisher returns a Redis publisher when REDIS_URL is set. Without Redis,
// or when it is unreachable, events are dropped.
func newPublisher(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (events.Publisher, func()) {
	if cfg.RedisURL == "" {
		return events.Nop{}, func() {}
	}
	client, err := events.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, events disabled")
		return events.Nop{}, func() {}
	}
	return events.NewRedisPublisher(client, "florens:", logger), func() { _ = client.Close() }
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTELEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	publisher, closePublisher := newPublisher(ctx, cfg, logger)
	defer closePublisher()

	srv := newServer(cfg, logger, pool, publisher, tp.Tracer(telemetry.InstrumentationName))

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if cfg.SweepInterval > 0 {
		go srv.appointments.RunSweeper(sweepCtx, cfg.SweepInterval)
		logger.Info().Dur("interval", cfg.SweepInterval).Msg("overdue appointment sweeper started")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
