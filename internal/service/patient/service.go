package patient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/repository"
	apperrors "github.com/nutriplan/nutriplan-api/pkg/errors"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
)

// Servicer exposes patient profile management for the dashboard. Provisioning
// of new patients is a separate workflow; this service only touches rows that
// already exist.
type Servicer interface {
	Get(ctx context.Context, nutritionistID, patientID uuid.UUID) (*model.Patient, error)
	GetByAuthUser(ctx context.Context, authUserID uuid.UUID) (*model.Patient, error)
	List(ctx context.Context, nutritionistID uuid.UUID) ([]*model.Patient, error)
	Update(ctx context.Context, nutritionistID, patientID uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	Delete(ctx context.Context, nutritionistID, patientID uuid.UUID) error
}

type Service struct {
	repo   repository.PatientRepository
	outbox repository.OutboxRepository
	logger *logger.Logger
}

func NewService(repo repository.PatientRepository, outbox repository.OutboxRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, outbox: outbox, logger: logger}
}

// Get returns a patient owned by the given nutritionist. Ownership by a
// different nutritionist reads as not found so the endpoint does not leak
// which ids exist.
func (s *Service) Get(ctx context.Context, nutritionistID, patientID uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if patient.NutritionistID != nutritionistID {
		return nil, apperrors.NewNotFound("patient", nil)
	}
	return patient, nil
}

// GetByAuthUser resolves the profile of a logged-in patient account.
func (s *Service) GetByAuthUser(ctx context.Context, authUserID uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.GetByAuthUser(ctx, authUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient by auth user: %w", err)
	}
	return patient, nil
}

func (s *Service) List(ctx context.Context, nutritionistID uuid.UUID) ([]*model.Patient, error) {
	patients, err := s.repo.ListByNutritionist(ctx, nutritionistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// Update applies a partial profile update. Nil request fields are left
// untouched; a non-nil field replaces the stored value, including explicit
// clears to empty strings.
func (s *Service) Update(ctx context.Context, nutritionistID, patientID uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.Get(ctx, nutritionistID, patientID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperrors.NewBadRequest("name cannot be empty", nil)
		}
		patient.Name = *req.Name
	}
	if req.Phone != nil {
		patient.Phone = req.Phone
	}
	if req.Gender != nil {
		patient.Gender = req.Gender
	}
	if req.BirthDate != nil {
		patient.BirthDate = req.BirthDate
	}
	if req.Height != nil {
		patient.Height = req.Height
	}
	if req.InitialWeight != nil {
		patient.InitialWeight = req.InitialWeight
	}
	if req.Goal != nil {
		patient.Goal = req.Goal
	}
	if req.BodyFatPercentage != nil {
		patient.BodyFatPercentage = req.BodyFatPercentage
	}
	if req.BMR != nil {
		patient.BMR = req.BMR
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return patient, nil
}

// Delete removes the patient row. Diets and progress records go with it via
// cascade; the identity account is handed to the reconciler for cleanup.
func (s *Service) Delete(ctx context.Context, nutritionistID, patientID uuid.UUID) error {
	patient, err := s.Get(ctx, nutritionistID, patientID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, patient.ID); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	s.emitEvent(ctx, model.EventPatientDeleted, patient)
	if patient.AuthUserID != nil {
		s.emitCompensation(ctx, patient)
	}
	return nil
}

func (s *Service) emitEvent(ctx context.Context, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(err, "failed to marshal outbox payload", "event_type", eventType)
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{EventType: eventType, Payload: raw}); err != nil {
		s.logger.Error(err, "failed to create outbox event", "event_type", eventType)
	}
}

func (s *Service) emitCompensation(ctx context.Context, patient *model.Patient) {
	payload, err := json.Marshal(model.CompensateAccountPayload{
		AccountID: *patient.AuthUserID,
		Email:     patient.Email,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal compensation payload", "patient_id", patient.ID.String())
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: model.EventCompensateAccount,
		Payload:   payload,
	}); err != nil {
		s.logger.Error(err, "failed to create compensation event", "patient_id", patient.ID.String())
	}
}
