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

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	query := `
		INSERT INTO patients (
			id, auth_user_id, nutritionist_id, name, email, phone, gender,
			birth_date, height, initial_weight, goal, body_fat_percentage,
			bmr, provisioning_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		RETURNING *
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now()

	var created model.Patient
	err := r.db.GetContext(ctx, &created, query,
		patient.ID,
		patient.AuthUserID,
		patient.NutritionistID,
		patient.Name,
		patient.Email,
		patient.Phone,
		patient.Gender,
		patient.BirthDate,
		patient.Height,
		patient.InitialWeight,
		patient.Goal,
		patient.BodyFatPercentage,
		patient.BMR,
		patient.ProvisioningStatus,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return &created, nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByAuthUser(ctx context.Context, authUserID uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE auth_user_id = $1`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, authUserID); err != nil {
		return nil, fmt.Errorf("failed to get patient by auth user: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			name = $1, phone = $2, gender = $3, birth_date = $4, height = $5,
			initial_weight = $6, goal = $7, body_fat_percentage = $8, bmr = $9,
			updated_at = $10
		WHERE id = $11
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.Phone,
		patient.Gender,
		patient.BirthDate,
		patient.Height,
		patient.InitialWeight,
		patient.Goal,
		patient.BodyFatPercentage,
		patient.BMR,
		time.Now(),
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Diets, meals, food items and progress records cascade.
	query := `DELETE FROM patients WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return nil
}

func (r *patientRepository) ListByNutritionist(ctx context.Context, nutritionistID uuid.UUID) ([]*model.Patient, error) {
	query := `SELECT * FROM patients WHERE nutritionist_id = $1 ORDER BY created_at DESC`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, nutritionistID); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) UpdateProvisioningStatus(ctx context.Context, id uuid.UUID, status model.ProvisioningStatus) error {
	query := `UPDATE patients SET provisioning_status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update provisioning status: %w", err)
	}
	return nil
}

func (r *patientRepository) ListPendingInvites(ctx context.Context, olderThan time.Time, limit int) ([]*model.Patient, error) {
	query := `
		SELECT * FROM patients
		WHERE provisioning_status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`
	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients, query, model.ProvisioningPendingInvite, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invites: %w", err)
	}
	return patients, nil
}
