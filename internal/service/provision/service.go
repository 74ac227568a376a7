package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/identity"
	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/repository"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
)

const tempPasswordLength = 16

// Servicer runs the patient provisioning workflow.
type Servicer interface {
	ProvisionPatient(ctx context.Context, req *model.ProvisionPatientRequest) (*model.Patient, error)
	ResendInvite(ctx context.Context, patientID uuid.UUID) error
}

// Service orchestrates the three-step provisioning workflow: identity
// creation, patient record insertion, invitation dispatch. The steps are
// ordered by increasing reversibility cost and run strictly sequentially;
// there is no cross-store transaction. Failures after step 1 leave partial
// state behind synchronously — recorded compensation and retry are the
// reconciler's job.
type Service struct {
	provisioner identity.Provisioner
	patients    repository.PatientRepository
	inviter     Inviter
	outbox      repository.OutboxRepository
	validate    *validator.Validate
	logger      *logger.Logger
}

func NewService(
	provisioner identity.Provisioner,
	patients repository.PatientRepository,
	inviter Inviter,
	outbox repository.OutboxRepository,
	logger *logger.Logger,
) *Service {
	validate := validator.New()
	// Report field names the way the wire format spells them.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		provisioner: provisioner,
		patients:    patients,
		inviter:     inviter,
		outbox:      outbox,
		validate:    validate,
		logger:      logger,
	}
}

// ProvisionPatient creates an identity account, inserts the patient row and
// dispatches the invitation. On success the returned patient is the
// persisted row, provisioning status complete.
func (s *Service) ProvisionPatient(ctx context.Context, req *model.ProvisionPatientRequest) (*model.Patient, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	nutritionistID := uuid.MustParse(req.NutritionistID)

	// Step 1: identity account. Cheap to abandon; the provider rejects
	// duplicate emails, which is the only de-duplication in the workflow.
	tempPassword, err := generateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, &ProvisioningError{Stage: StageAccount, Err: err}
	}

	account, err := s.provisioner.CreateAccount(ctx, identity.CreateAccountParams{
		Email:        req.PatientData.Email,
		Password:     tempPassword,
		Name:         req.PatientData.Name,
		Role:         model.RolePatient,
		EmailConfirm: true,
	})
	if err != nil {
		return nil, &ProvisioningError{Stage: StageAccount, Err: err}
	}

	// Step 2: the durable business fact. Omitted optional fields stay nil
	// and are stored as NULL.
	accountID := account.ID
	patient := &model.Patient{
		AuthUserID:         &accountID,
		NutritionistID:     nutritionistID,
		Name:               req.PatientData.Name,
		Email:              req.PatientData.Email,
		Phone:              req.PatientData.Phone,
		Gender:             req.PatientData.Gender,
		BirthDate:          req.PatientData.BirthDate,
		Height:             req.PatientData.Height,
		InitialWeight:      req.PatientData.InitialWeight,
		Goal:               req.PatientData.Goal,
		BodyFatPercentage:  req.PatientData.BodyFatPercentage,
		BMR:                req.PatientData.BMR,
		ProvisioningStatus: model.ProvisioningPendingInvite,
	}

	created, err := s.patients.Create(ctx, patient)
	if err != nil {
		// The account from step 1 is now an orphan. It is not deleted
		// here; a compensation event hands it to the reconciler.
		s.emitEvent(ctx, model.EventCompensateAccount, model.CompensateAccountPayload{
			AccountID: account.ID,
			Email:     account.Email,
		})
		return nil, &ProvisioningError{Stage: StageRecord, Err: err}
	}

	// Step 3: the only step with an unretractable external side effect, so
	// it goes last. On failure the account and row persist; the reconciler
	// re-sends the invite for rows stuck at pending_invite.
	if err := s.inviter.SendInvite(ctx, created.Email, created.Name); err != nil {
		s.emitEvent(ctx, model.EventInvitePending, map[string]interface{}{
			"patient_id": created.ID,
			"email":      created.Email,
		})
		return nil, &ProvisioningError{Stage: StageInvite, Err: err}
	}

	if err := s.patients.UpdateProvisioningStatus(ctx, created.ID, model.ProvisioningComplete); err != nil {
		s.logger.Error(err, "failed to mark patient provisioning complete", "patient_id", created.ID.String())
	} else {
		created.ProvisioningStatus = model.ProvisioningComplete
	}

	s.emitEvent(ctx, model.EventPatientProvisioned, created)
	return created, nil
}

// ResendInvite re-dispatches the invitation for a patient stuck at
// pending_invite, e.g. after a stage-3 failure.
func (s *Service) ResendInvite(ctx context.Context, patientID uuid.UUID) error {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return fmt.Errorf("failed to get patient: %w", err)
	}

	if err := s.inviter.SendInvite(ctx, patient.Email, patient.Name); err != nil {
		return &ProvisioningError{Stage: StageInvite, Err: err}
	}

	if err := s.patients.UpdateProvisioningStatus(ctx, patient.ID, model.ProvisioningComplete); err != nil {
		return fmt.Errorf("failed to update provisioning status: %w", err)
	}
	return nil
}

// validateRequest checks the whole request in one pass and reports every
// offending field, so the caller fixes the form once.
func (s *Service) validateRequest(req *model.ProvisionPatientRequest) error {
	if req == nil {
		return &ValidationError{Fields: []string{"patientData", "nutritionistId"}}
	}

	if err := s.validate.Struct(req); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return &ValidationError{Fields: []string{err.Error()}}
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

// emitEvent writes an outbox event, best effort: losing an event is logged
// but never fails the workflow.
func (s *Service) emitEvent(ctx context.Context, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(err, "failed to marshal outbox payload", "event_type", eventType)
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   raw,
	}); err != nil {
		s.logger.Error(err, "failed to create outbox event", "event_type", eventType)
	}
}
