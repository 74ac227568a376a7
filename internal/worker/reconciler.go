package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nutriplan/nutriplan-api/internal/identity"
	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/repository"
	"github.com/nutriplan/nutriplan-api/internal/service/provision"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
	"github.com/nutriplan/nutriplan-api/pkg/messaging"
	"github.com/nutriplan/nutriplan-api/pkg/metrics"
)

type ReconcilerConfig struct {
	PollInterval time.Duration
	InviteAge    time.Duration
	BatchSize    int
}

func (c *ReconcilerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.InviteAge <= 0 {
		c.InviteAge = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
}

// Reconciler repairs the partial state the provisioning workflow leaves
// behind on failure. It re-sends invitations for patients stuck at
// pending_invite and deletes identity accounts whose patient row was never
// written, driven by compensation events from the broker.
type Reconciler struct {
	patients    repository.PatientRepository
	provisioner identity.Provisioner
	inviter     provision.Inviter
	broker      messaging.Broker
	config      ReconcilerConfig
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewReconciler(
	patients repository.PatientRepository,
	provisioner identity.Provisioner,
	inviter provision.Inviter,
	broker messaging.Broker,
	config ReconcilerConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Reconciler {
	config.applyDefaults()
	return &Reconciler{
		patients:    patients,
		provisioner: provisioner,
		inviter:     inviter,
		broker:      broker,
		config:      config,
		logger:      logger,
		metrics:     metrics,
	}
}

// Start runs both reconciliation loops until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context) error {
	compensations, err := r.broker.Subscribe(ctx, model.EventCompensateAccount)
	if err != nil {
		return fmt.Errorf("failed to subscribe to compensation events: %w", err)
	}

	r.logger.Info("starting provisioning reconciler")

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down provisioning reconciler")
			return nil
		case msg, ok := <-compensations:
			if !ok {
				return fmt.Errorf("compensation subscription closed")
			}
			r.handleCompensation(ctx, msg)
		case <-ticker.C:
			if err := r.retryPendingInvites(ctx); err != nil {
				r.logger.Error(err, "failed to retry pending invites")
			}
		}
	}
}

// handleCompensation deletes an identity account orphaned by a record-stage
// failure. Deletion is idempotent on the provider side, so a redelivered
// event is harmless.
func (r *Reconciler) handleCompensation(ctx context.Context, msg []byte) {
	var payload model.CompensateAccountPayload
	if err := json.Unmarshal(msg, &payload); err != nil {
		r.logger.Error(err, "failed to decode compensation payload")
		return
	}

	// A patient row referencing the account means provisioning actually
	// succeeded after the event was written; leave the account alone.
	if _, err := r.patients.GetByAuthUser(ctx, payload.AccountID); err == nil {
		r.logger.Warn("skipping compensation, patient row exists", "account_id", payload.AccountID.String())
		return
	}

	if err := r.provisioner.DeleteAccount(ctx, payload.AccountID); err != nil {
		r.logger.Error(err, "failed to delete orphaned account",
			"account_id", payload.AccountID.String(),
			"email", payload.Email)
		return
	}

	if r.metrics != nil {
		r.metrics.AccountsCompensated.Inc()
	}
	r.logger.Info("deleted orphaned identity account", "account_id", payload.AccountID.String())
}

// retryPendingInvites re-sends the invitation for patients whose workflow
// failed at the invite stage, then marks them complete.
func (r *Reconciler) retryPendingInvites(ctx context.Context) error {
	cutoff := time.Now().Add(-r.config.InviteAge)
	patients, err := r.patients.ListPendingInvites(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending invites: %w", err)
	}

	for _, p := range patients {
		if err := r.inviter.SendInvite(ctx, p.Email, p.Name); err != nil {
			r.logger.Error(err, "failed to re-send invitation",
				"patient_id", p.ID.String(),
				"email", p.Email)
			continue
		}

		if r.metrics != nil {
			r.metrics.InvitesRetried.Inc()
		}
		if err := r.patients.UpdateProvisioningStatus(ctx, p.ID, model.ProvisioningComplete); err != nil {
			r.logger.Error(err, "failed to mark patient provisioning complete", "patient_id", p.ID.String())
		}
	}
	return nil
}
