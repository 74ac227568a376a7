package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/repository"
	apperrors "github.com/nutriplan/nutriplan-api/pkg/errors"
	"github.com/nutriplan/nutriplan-api/pkg/logger"
)

// Servicer manages patient progress records. Every operation takes the
// calling nutritionist's id; records of another nutritionist's patient read
// as not-found.
type Servicer interface {
	Create(ctx context.Context, nutritionistID, patientID uuid.UUID, req *model.CreateProgressRequest) (*model.ProgressRecord, error)
	Get(ctx context.Context, nutritionistID, recordID uuid.UUID) (*model.ProgressRecord, error)
	ListByPatient(ctx context.Context, nutritionistID, patientID uuid.UUID) ([]*model.ProgressRecord, error)
	Delete(ctx context.Context, nutritionistID, recordID uuid.UUID) error
}

type Service struct {
	repo     repository.ProgressRepository
	patients repository.PatientRepository
	outbox   repository.OutboxRepository
	validate *validator.Validate
	logger   *logger.Logger
}

func NewService(
	repo repository.ProgressRepository,
	patients repository.PatientRepository,
	outbox repository.OutboxRepository,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		outbox:   outbox,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *Service) Create(ctx context.Context, nutritionistID, patientID uuid.UUID, req *model.CreateProgressRequest) (*model.ProgressRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewBadRequest("invalid progress record", err)
	}
	if err := s.checkOwnership(ctx, nutritionistID, patientID); err != nil {
		return nil, err
	}

	record := &model.ProgressRecord{
		PatientID:         patientID,
		RecordDate:        req.RecordDate,
		Weight:            req.Weight,
		BodyFatPercentage: req.BodyFatPercentage,
		Measurements:      req.Measurements,
		CaloriesConsumed:  req.CaloriesConsumed,
		WaterConsumed:     req.WaterConsumed,
		Notes:             req.Notes,
		PhotoKey:          req.PhotoKey,
	}
	if len(req.Measurements) > 0 {
		raw, err := json.Marshal(req.Measurements)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal measurements: %w", err)
		}
		record.MeasurementsJSON = raw
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress record: %w", err)
	}
	created.Measurements = req.Measurements

	s.emitEvent(ctx, model.EventProgressRecorded, created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, nutritionistID, recordID uuid.UUID) (*model.ProgressRecord, error) {
	record, err := s.ownedRecord(ctx, nutritionistID, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.unmarshalMeasurements(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) ListByPatient(ctx context.Context, nutritionistID, patientID uuid.UUID) ([]*model.ProgressRecord, error) {
	if err := s.checkOwnership(ctx, nutritionistID, patientID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}
	for _, record := range records {
		if err := s.unmarshalMeasurements(record); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Service) Delete(ctx context.Context, nutritionistID, recordID uuid.UUID) error {
	if _, err := s.ownedRecord(ctx, nutritionistID, recordID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, recordID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("progress record", err)
		}
		return fmt.Errorf("failed to delete progress record: %w", err)
	}
	return nil
}

// checkOwnership hides patients of other nutritionists behind not-found.
func (s *Service) checkOwnership(ctx context.Context, nutritionistID, patientID uuid.UUID) error {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("patient", err)
		}
		return fmt.Errorf("failed to get patient: %w", err)
	}
	if patient.NutritionistID != nutritionistID {
		return apperrors.NewNotFound("patient", nil)
	}
	return nil
}

func (s *Service) ownedRecord(ctx context.Context, nutritionistID, recordID uuid.UUID) (*model.ProgressRecord, error) {
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("progress record", err)
		}
		return nil, fmt.Errorf("failed to get progress record: %w", err)
	}
	if err := s.checkOwnership(ctx, nutritionistID, record.PatientID); err != nil {
		return nil, apperrors.NewNotFound("progress record", nil)
	}
	return record, nil
}

func (s *Service) unmarshalMeasurements(record *model.ProgressRecord) error {
	if len(record.MeasurementsJSON) == 0 {
		return nil
	}
	measurements := map[string]float64{}
	if err := json.Unmarshal(record.MeasurementsJSON, &measurements); err != nil {
		return fmt.Errorf("failed to unmarshal measurements: %w", err)
	}
	record.Measurements = measurements
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
