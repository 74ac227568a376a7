package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nutriplan/nutriplan-api/internal/model"
	"github.com/nutriplan/nutriplan-api/internal/repository"
)

type progressRepository struct {
	db *sqlx.DB
}

func NewProgressRepository(db *sqlx.DB) repository.ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Create(ctx context.Context, record *model.ProgressRecord) (*model.ProgressRecord, error) {
	query := `
		INSERT INTO patient_progress (
			id, patient_id, record_date, weight, body_fat_percentage,
			measurements, calories_consumed, water_consumed, notes, photo_key,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()

	var created model.ProgressRecord
	err := r.db.GetContext(ctx, &created, query,
		record.ID,
		record.PatientID,
		record.RecordDate,
		record.Weight,
		record.BodyFatPercentage,
		record.MeasurementsJSON,
		record.CaloriesConsumed,
		record.WaterConsumed,
		record.Notes,
		record.PhotoKey,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress record: %w", err)
	}
	return &created, nil
}

func (r *progressRepository) Get(ctx context.Context, id uuid.UUID) (*model.ProgressRecord, error) {
	query := `SELECT * FROM patient_progress WHERE id = $1`
	var record model.ProgressRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("failed to get progress record: %w", err)
	}
	return &record, nil
}

func (r *progressRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ProgressRecord, error) {
	query := `SELECT * FROM patient_progress WHERE patient_id = $1 ORDER BY record_date DESC`
	var records []*model.ProgressRecord
	if err := r.db.SelectContext(ctx, &records, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}
	return records, nil
}

func (r *progressRepository) Update(ctx context.Context, record *model.ProgressRecord) error {
	query := `
		UPDATE patient_progress SET
			record_date = $1, weight = $2, body_fat_percentage = $3,
			measurements = $4, calories_consumed = $5, water_consumed = $6,
			notes = $7, updated_at = $8
		WHERE id = $9
	`
	_, err := r.db.ExecContext(ctx, query,
		record.RecordDate,
		record.Weight,
		record.BodyFatPercentage,
		record.MeasurementsJSON,
		record.CaloriesConsumed,
		record.WaterConsumed,
		record.Notes,
		time.Now(),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress record: %w", err)
	}
	return nil
}

func (r *progressRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM patient_progress WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete progress record: %w", err)
	}
	return nil
}

func (r *progressRepository) SetPhotoKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE patient_progress SET photo_key = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, key, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set photo key: %w", err)
	}
	return nil
}
