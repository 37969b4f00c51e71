package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medsched/scheduler/internal/config"
	"github.com/medsched/scheduler/internal/domain/appointment"
	"github.com/medsched/scheduler/internal/domain/booking"
	"github.com/medsched/scheduler/internal/domain/directory"
	"github.com/medsched/scheduler/internal/platform/auth"
	"github.com/medsched/scheduler/internal/platform/middleware"
	"github.com/medsched/scheduler/internal/platform/notification"
	"github.com/medsched/scheduler/internal/platform/websocket"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

// app holds the wired services behind one HTTP server.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	store      *store
	dir        *directory.Directory
	hub        *websocket.Hub
	notifier   *notification.Manager
	dispatcher *notification.Dispatcher
	ctrl       *appointment.Controller
	query      *appointment.QueryService
	booking    *booking.Workflow
}

func newApp(cfg *config.Config, logger zerolog.Logger, st *store, dir *directory.Directory) *app {
	a := &app{cfg: cfg, logger: logger, store: st, dir: dir}

	a.hub = websocket.NewHub(logger)
	a.notifier = notification.NewManager(
		notification.LogEmailSender{Logger: logger},
		notification.LogSMSSender{Logger: logger},
		notification.NewTemplateEngine(),
	)
	a.dispatcher = notification.NewDispatcher(a.notifier, cfg.NotifyQueueSize, logger)

	a.ctrl = appointment.NewController(st.repo, dir,
		appointment.WithBookingHorizon(cfg.BookingHorizon()),
		appointment.WithGraceWindow(cfg.GraceWindow),
		appointment.WithLogger(logger),
		appointment.WithEventSink(hubSink(a.hub, logger)),
		appointment.WithEventSink(notifySink(a.dispatcher, dir, logger)),
	)
	a.query = appointment.NewQueryService(st.repo, dir)
	a.booking = booking.NewWorkflow(a.ctrl, dir, logger)
	return a
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:     a.cfg.AuthIssuer,
		Audience:   a.cfg.AuthAudience,
		JWKSURL:    a.cfg.AuthJWKSURL,
		SigningKey: []byte(a.cfg.AuthSigningKey),
	}
	if a.cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		a.logger.Warn().Msg("development auth: requests without a token run as admin")
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// routes builds the Echo server. /health is public; everything else needs an
// identity.
func (a *app) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	e.GET("/health", a.store.health)

	authMW := a.authMiddleware()

	api := e.Group("/api/v1", authMW, middleware.Audit(a.logger))
	appointment.NewHandler(a.ctrl, a.query).RegisterRoutes(api)
	booking.NewHandler(a.booking).RegisterRoutes(api)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	notification.NewHandler(a.notifier).RegisterRoutes(admin)

	websocket.NewHandler(a.hub, topicPolicy, a.cfg.CORSOrigins).RegisterRoutes(e, authMW)

	return e
}

func runServer(cfg *config.Config, migrate bool) error {
	logger := newLogger(cfg)
	ctx := context.Background()

	if migrate {
		n, err := migratePostgres(ctx, cfg)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	dir, err := directory.Load(cfg.ClinicFile)
	if err != nil {
		return err
	}
	logger.Info().Str("file", cfg.ClinicFile).Msg("clinic directory loaded")

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	logger.Info().Str("store", st.driver).Msg("appointment store ready")

	a := newApp(cfg, logger, st, dir)
	a.dispatcher.Start(ctx)
	defer a.dispatcher.Close()

	e := a.routes()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
