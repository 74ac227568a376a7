package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/nutriplan/nutriplan-api/internal/config"
	"github.com/nutriplan/nutriplan-api/internal/email"
	"github.com/nutriplan/nutriplan-api/internal/identity"
	"github.com/nutriplan/nutriplan-api/internal/repository/postgres"
	provisionService "github.com/nutriplan/nutriplan-api/internal/service/provision"
	internalworker "github.com/nutriplan/nutriplan-api/internal/worker"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
	"github.com/nutriplan/nutriplan-api/pkg/messaging/redis"
	"github.com/nutriplan/nutriplan-api/pkg/metrics"
	"github.com/nutriplan/nutriplan-api/pkg/worker"
)

// The worker process runs the outbox processor (drains outbox rows into the
// broker) and the provisioning reconciler (re-sends stuck invites, deletes
// orphaned identity accounts).
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	m := metrics.NewMetrics("nutriplan", "worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	patientRepo := postgres.NewPatientRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	provisioner := identity.NewHTTPProvisioner(cfg.Identity)
	inviter := buildInviter(cfg, provisioner)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, appLogger, m)

	reconciler := internalworker.NewReconciler(
		patientRepo,
		provisioner,
		inviter,
		broker,
		internalworker.ReconcilerConfig{
			PollInterval: cfg.Reconciler.PollInterval,
			InviteAge:    cfg.Reconciler.InviteAge,
			BatchSize:    cfg.Reconciler.BatchSize,
		},
		appLogger,
		m,
	)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Start(ctx); err != nil {
			appLogger.Error(err, "reconciler stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down worker")
	cancel()
	wg.Wait()
}

func buildInviter(cfg *config.Config, provisioner identity.Provisioner) provisionService.Inviter {
	if cfg.Invite.Mode == "smtp" {
		mailer := email.NewSMTPService(cfg.SMTP)
		return provisionService.NewSMTPInviter(mailer, cfg.Invite.RedirectURL)
	}
	return provisionService.NewProviderInviter(provisioner, cfg.Invite.RedirectURL)
}
