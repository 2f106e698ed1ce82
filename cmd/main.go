package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"savepantry/api/handler"
	apiMiddleware "savepantry/api/middleware"
	"savepantry/api/routes"
	"savepantry/config"
	"savepantry/internal/repository"
	"savepantry/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	validate := validator.New()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	db := config.ConnectDB(cfg.DatabaseURL)
	redisClient := config.NewRedisClient()
	if redisClient == nil {
		logger.Info("redis unavailable, premium cache disabled")
	}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	verificationRepo := repository.NewVerificationTokenRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)

	authConfig := service.AuthConfig{
		SessionTTL:       cfg.SessionTTL,
		RenewWindow:      cfg.RenewWindow,
		EvictionGrace:    cfg.EvictionGrace,
		RevokedRetention: cfg.RevokedRetention,
	}
	codec := service.BcryptTokenCodec{}
	clock := service.RealClock{}
	sleeper := service.RealSleeper{}

	sessionManager := service.NewSessionManager(sessionRepo, codec, clock, authConfig)
	mailer := service.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, cfg.AppBaseURL)
	authService := service.NewAuthService(
		userRepo,
		verificationRepo,
		securityRepo,
		sessionManager,
		mailer,
		service.BcryptPasswordHasher{},
		clock,
		authConfig,
	)

	billing := service.NewRevenueCatClient(cfg.BillingBaseURL, cfg.BillingAPIKey, cfg.BillingProduct, cfg.OracleTimeout)
	reconciler := service.NewPremiumReconciler(userRepo, billing, redisClient, logger, clock, sleeper, service.PremiumConfig{
		CacheTTL:      cfg.PremiumCacheTTL,
		RetryAttempts: cfg.SyncRetries,
		RetryDelay:    cfg.SyncRetryDelay,
	})
	sweeper := service.NewPremiumSweeper(
		userRepo, verificationRepo, sessionManager, billing, logger, clock, sleeper,
		cfg.SweepInterval, cfg.SweepPause,
	)
	sweeper.Start()
	defer sweeper.Stop()

	authHandler := handler.NewAuthHandler(authService, sessionManager, reconciler, validate)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	gate := apiMiddleware.AuthGate{
		Sessions: sessionRepo,
		Users:    userRepo,
		Logs:     securityRepo,
		Codec:    codec,
		Manager:  sessionManager,
		Clock:    clock,
		Logger:   logger,
	}
	router := routes.NewRouter(app, authHandler, gate)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
}
