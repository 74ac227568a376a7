package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/model"
)

// PatientRepository is the record store for patient profiles. Create returns
// the persisted row, including server-assigned id and timestamps.
type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) (*model.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetByAuthUser(ctx context.Context, authUserID uuid.UUID) (*model.Patient, error)
	Update(ctx context.Context, patient *model.Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByNutritionist(ctx context.Context, nutritionistID uuid.UUID) ([]*model.Patient, error)

	// Provisioning support.
	UpdateProvisioningStatus(ctx context.Context, id uuid.UUID, status model.ProvisioningStatus) error
	ListPendingInvites(ctx context.Context, olderThan time.Time, limit int) ([]*model.Patient, error)
}

type DietRepository interface {
	Create(ctx context.Context, diet *model.Diet) (*model.Diet, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Diet, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Diet, error)
	Update(ctx context.Context, diet *model.Diet) error
	Delete(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, patientID, dietID uuid.UUID) error
	DeactivateOthers(ctx context.Context, patientID, keepID uuid.UUID) error
	SetPDFKey(ctx context.Context, id uuid.UUID, key string) error

	CreateMeal(ctx context.Context, meal *model.Meal) (*model.Meal, error)
	GetMeal(ctx context.Context, id uuid.UUID) (*model.Meal, error)
	ListMeals(ctx context.Context, dietID uuid.UUID) ([]*model.Meal, error)
	UpdateMeal(ctx context.Context, meal *model.Meal) error
	DeleteMeal(ctx context.Context, id uuid.UUID) error

	CreateFoodItem(ctx context.Context, item *model.FoodItem) (*model.FoodItem, error)
	GetFoodItem(ctx context.Context, id uuid.UUID) (*model.FoodItem, error)
	ListFoodItems(ctx context.Context, mealID uuid.UUID) ([]*model.FoodItem, error)
	DeleteFoodItem(ctx context.Context, id uuid.UUID) error
}

type ProgressRepository interface {
	Create(ctx context.Context, record *model.ProgressRecord) (*model.ProgressRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ProgressRecord, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ProgressRecord, error)
	Update(ctx context.Context, record *model.ProgressRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetPhotoKey(ctx context.Context, id uuid.UUID, key string) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
