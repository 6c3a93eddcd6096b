package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/services"
	httphandlers "reelhub/internal/handlers/http"
	"reelhub/internal/infrastructure/middleware"
	"reelhub/internal/infrastructure/monitoring"
	"reelhub/internal/infrastructure/repositories"
	presence "reelhub/internal/infrastructure/signal"
	"reelhub/pkg/config"
	"reelhub/pkg/logger"
	"reelhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	startTime := time.Now()

	configPath := pflag.String("config", "configs/config.yaml", "path to the YAML config file")
	addr := pflag.String("addr", "", "listen address, overrides server.address")
	logLevel := pflag.String("log-level", "", "log level, overrides logging.level")
	devToken := pflag.String("dev-token", "", "print a signed token for <user>:<role> and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	authService := services.NewAuthService(cfg.Auth.JWTSecret)
	if *devToken != "" {
		return printDevToken(authService, *devToken)
	}

	zapLogger := logger.NewWithOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repoFactory, err := repositories.NewRepositoryFactory(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	profileService := services.NewProfileService(
		repoFactory.DocumentStore(),
		repoFactory.Codec(),
		services.NewAuthorizationGate(cfg.Authz.AdminOverride),
		log.Named("profiles"),
		services.WithProfileMetrics(collector),
	)

	registry := services.NewPresenceRegistry(collector)
	broadcaster := services.NewPresenceBroadcaster(registry, cfg.Presence.BroadcastWorkers, collector, log.Named("presence"))
	broadcasterCtx, stopBroadcaster := context.WithCancel(context.Background())
	broadcasterDone := make(chan struct{})
	go func() {
		defer close(broadcasterDone)
		broadcaster.Run(broadcasterCtx)
	}()

	presenceServer := presence.NewPresenceServer(registry, authService, presence.Options{
		PingInterval:   cfg.Presence.PingInterval,
		PongTimeout:    cfg.Presence.PongTimeout,
		WriteTimeout:   cfg.Presence.WriteTimeout,
		SendBuffer:     cfg.Presence.SendBuffer,
		MaxMessageSize: cfg.Presence.MaxMessageSizeBytes,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log.Named("presence"))

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddStoreCheck("store", repoFactory.DocumentStore(), cfg.Monitoring.HealthCheckTimeout)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	api := router.Group("/api/v1", middleware.AuthMiddleware(authService))
	httphandlers.NewProfileHandler(profileService).SetupRoutes(api)

	router.GET(cfg.Presence.Path, gin.WrapF(presenceServer.HandleWebSocket))

	router.GET("/health", func(c *gin.Context) {
		onlineUsers, sessions := registry.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"timestamp":    time.Now(),
			"uptime":       time.Since(startTime).String(),
			"version":      version,
			"store":        repoFactory.Driver(),
			"online_users": onlineUsers,
			"sessions":     sessions,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting reelhub server", "address", cfg.Server.Address, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Errorw("Server failed", "error", runErr)
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	shutdown(log, "http server", func() error {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return err
		}
		return nil
	})
	shutdown(log, "presence sessions", func() error { return presenceServer.Shutdown(shutdownCtx) })

	stopBroadcaster()
	<-broadcasterDone

	shutdown(log, "document store", repoFactory.Close)
	shutdown(log, "tracer provider", func() error { return tp.Shutdown(shutdownCtx) })

	log.Info("reelhub server stopped")
	return runErr
}

func shutdown(log *zap.SugaredLogger, name string, fn func() error) {
	if err := fn(); err != nil {
		log.Errorw("Error during shutdown", "component", name, "error", err)
	}
}

func printDevToken(auth services.AuthService, spec string) error {
	user, role, ok := strings.Cut(spec, ":")
	if !ok || user == "" {
		return fmt.Errorf("--dev-token expects <user>:<role>, got %q", spec)
	}
	token, err := auth.GenerateToken(domain.UserID(user), domain.UserRole(role), 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
