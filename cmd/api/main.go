package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/partaj/referral-api/config"
	"github.com/partaj/referral-api/internal/email"
	activityHandler "github.com/partaj/referral-api/internal/handler/activity"
	authHandler "github.com/partaj/referral-api/internal/handler/auth"
	healthHandler "github.com/partaj/referral-api/internal/handler/health"
	notificationHandler "github.com/partaj/referral-api/internal/handler/notification"
	referralHandler "github.com/partaj/referral-api/internal/handler/referral"
	reportHandler "github.com/partaj/referral-api/internal/handler/report"
	"github.com/partaj/referral-api/internal/middleware"
	"github.com/partaj/referral-api/internal/repository/postgres"
	"github.com/partaj/referral-api/internal/router"
	"github.com/partaj/referral-api/internal/scanner"
	activityService "github.com/partaj/referral-api/internal/service/activity"
	authService "github.com/partaj/referral-api/internal/service/auth"
	indexerService "github.com/partaj/referral-api/internal/service/indexer"
	notificationService "github.com/partaj/referral-api/internal/service/notification"
	permissionService "github.com/partaj/referral-api/internal/service/permission"
	referralService "github.com/partaj/referral-api/internal/service/referral"
	reportService "github.com/partaj/referral-api/internal/service/report"
	validationService "github.com/partaj/referral-api/internal/service/validation"
	"github.com/partaj/referral-api/pkg/auth"
	"github.com/partaj/referral-api/pkg/metrics"
	"github.com/partaj/referral-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("partaj", "api")

	repos := postgres.NewRepos(db)
	uow := postgres.NewUnitOfWork(db)

	jwtSvc := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshExpiryHours)*time.Hour,
	)
	hasher := security.NewBcryptHasher(0)
	emailer := email.NewSMTPService(cfg.SMTP, m, log.Logger)
	scanClient := scanner.NewClient(cfg.Scanner, log.Logger)

	authSvc := authService.NewService(repos.Users, jwtSvc, hasher)
	permSvc := permissionService.NewService(repos.Units, cfg.Permission.AmbiguousRolePolicy, cfg.Permission.CacheTTL, log.Logger)
	treeSvc := validationService.NewService(repos.Units, permSvc)
	activitySvc := activityService.NewService(repos.Activities, log.Logger)
	indexerSvc := indexerService.NewService(log.Logger)
	notifierSvc := notificationService.NewService(repos.Notifications, emailer, m, log.Logger)
	referralSvc := referralService.NewService(uow, repos, permSvc, notifierSvc, activitySvc, indexerSvc, m, log.Logger)
	reportSvc := reportService.NewService(uow, repos, permSvc, treeSvc, notifierSvc, activitySvc, scanClient, m, log.Logger)

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Security.AllowedOrigins
	}

	metricsPath := ""
	if cfg.Monitoring.PrometheusEnabled {
		metricsPath = cfg.Monitoring.MetricsPath
	}

	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(authSvc),
		healthHandler.NewHandler(db),
		referralHandler.NewHandler(referralSvc),
		reportHandler.NewHandler(reportSvc),
		notificationHandler.NewHandler(notifierSvc),
		activityHandler.NewHandler(activitySvc),
		router.Config{
			RateLimit:   rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:   cfg.RateLimit.Burst,
			CORSConfig:  corsConfig,
			MetricsPath: metricsPath,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
