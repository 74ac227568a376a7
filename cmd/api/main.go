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

	"github.com/nutriplan/nutriplan-api/internal/config"
	"github.com/nutriplan/nutriplan-api/internal/email"
	"github.com/nutriplan/nutriplan-api/internal/handler"
	dietHandler "github.com/nutriplan/nutriplan-api/internal/handler/diet"
	patientHandler "github.com/nutriplan/nutriplan-api/internal/handler/patient"
	progressHandler "github.com/nutriplan/nutriplan-api/internal/handler/progress"
	provisionHandler "github.com/nutriplan/nutriplan-api/internal/handler/provision"
	uploadHandler "github.com/nutriplan/nutriplan-api/internal/handler/upload"
	"github.com/nutriplan/nutriplan-api/internal/identity"
	"github.com/nutriplan/nutriplan-api/internal/middleware"
	"github.com/nutriplan/nutriplan-api/internal/repository/postgres"
	"github.com/nutriplan/nutriplan-api/internal/router"
	dietService "github.com/nutriplan/nutriplan-api/internal/service/diet"
	patientService "github.com/nutriplan/nutriplan-api/internal/service/patient"
	progressService "github.com/nutriplan/nutriplan-api/internal/service/progress"
	provisionService "github.com/nutriplan/nutriplan-api/internal/service/provision"
	uploadService "github.com/nutriplan/nutriplan-api/internal/service/upload"
	"github.com/nutriplan/nutriplan-api/internal/storage"
	"github.com/nutriplan/nutriplan-api/pkg/auth"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
	"github.com/nutriplan/nutriplan-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	m := metrics.NewMetrics("nutriplan", "api")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories.
	patientRepo := postgres.NewPatientRepository(db)
	dietRepo := postgres.NewDietRepository(db)
	progressRepo := postgres.NewProgressRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// External dependencies.
	provisioner := identity.NewHTTPProvisioner(cfg.Identity)
	fileStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	inviter := buildInviter(cfg, provisioner)

	// Services.
	provisionSvc := provisionService.NewService(provisioner, patientRepo, inviter, outboxRepo, appLogger)
	patientSvc := patientService.NewService(patientRepo, outboxRepo, appLogger)
	dietSvc := dietService.NewService(dietRepo, patientRepo, outboxRepo, appLogger)
	progressSvc := progressService.NewService(progressRepo, patientRepo, outboxRepo, appLogger)
	uploadSvc := uploadService.NewService(fileStorage, dietRepo, progressRepo, patientRepo, appLogger)

	// Handlers.
	h := handler.NewHandler()
	provisionH := provisionHandler.NewHandler(provisionSvc, m)
	patientH := patientHandler.NewHandler(patientSvc)
	dietH := dietHandler.NewHandler(dietSvc, patientSvc)
	progressH := progressHandler.NewHandler(progressSvc, patientSvc)
	uploadH := uploadHandler.NewHandler(uploadSvc)

	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWT.Secret))

	r := router.NewRouter(
		authMiddleware,
		provisionH,
		patientH,
		dietH,
		progressH,
		uploadH,
		h,
		router.Config{
			RateLimit:     rate.Limit(cfg.RateLimit.RPS),
			RateBurst:     cfg.RateLimit.Burst,
			CacheTTL:      30 * time.Second,
			MetricsPrefix: "nutriplan_http",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("starting http server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
}

// buildInviter picks the invitation channel: the identity provider's own
// invite email, or our SMTP sender.
func buildInviter(cfg *config.Config, provisioner identity.Provisioner) provisionService.Inviter {
	if cfg.Invite.Mode == "smtp" {
		mailer := email.NewSMTPService(cfg.SMTP)
		return provisionService.NewSMTPInviter(mailer, cfg.Invite.RedirectURL)
	}
	return provisionService.NewProviderInviter(provisioner, cfg.Invite.RedirectURL)
}
