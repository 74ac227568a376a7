package diet

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

// Servicer manages diet plans, their meals and food items. Every operation
// takes the calling nutritionist's id; data owned by another nutritionist's
// patient reads as not-found.
type Servicer interface {
	Create(ctx context.Context, nutritionistID uuid.UUID, req *model.CreateDietRequest) (*model.Diet, error)
	Get(ctx context.Context, nutritionistID, dietID uuid.UUID) (*model.Diet, error)
	ListByPatient(ctx context.Context, nutritionistID, patientID uuid.UUID) ([]*model.Diet, error)
	Update(ctx context.Context, nutritionistID, dietID uuid.UUID, req *model.UpdateDietRequest) (*model.Diet, error)
	Activate(ctx context.Context, nutritionistID, dietID uuid.UUID) error
	Delete(ctx context.Context, nutritionistID, dietID uuid.UUID) error

	AddMeal(ctx context.Context, nutritionistID, dietID uuid.UUID, req *model.CreateMealRequest) (*model.Meal, error)
	UpdateMeal(ctx context.Context, nutritionistID, mealID uuid.UUID, req *model.UpdateMealRequest) error
	DeleteMeal(ctx context.Context, nutritionistID, mealID uuid.UUID) error
	AddFoodItem(ctx context.Context, nutritionistID, mealID uuid.UUID, req *model.CreateFoodItemRequest) (*model.FoodItem, error)
	DeleteFoodItem(ctx context.Context, nutritionistID, itemID uuid.UUID) error
}

type Service struct {
	repo     repository.DietRepository
	patients repository.PatientRepository
	outbox   repository.OutboxRepository
	validate *validator.Validate
	logger   *logger.Logger
}

func NewService(
	repo repository.DietRepository,
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

// Create stores a new diet for a patient. When the diet is created active,
// every other diet of the same patient is deactivated so at most one plan is
// active at a time.
func (s *Service) Create(ctx context.Context, nutritionistID uuid.UUID, req *model.CreateDietRequest) (*model.Diet, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewBadRequest("invalid diet", err)
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, apperrors.NewBadRequest("end_date must not precede start_date", nil)
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid patient_id", err)
	}
	if _, err := s.ownedPatient(ctx, nutritionistID, patientID); err != nil {
		return nil, err
	}

	diet := &model.Diet{
		PatientID:      patientID,
		NutritionistID: nutritionistID,
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Goals:          req.Goals,
		IsActive:       req.IsActive,
	}
	if req.Goals != nil {
		raw, err := json.Marshal(req.Goals)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal diet goals: %w", err)
		}
		diet.GoalsJSON = raw
	}

	created, err := s.repo.Create(ctx, diet)
	if err != nil {
		return nil, fmt.Errorf("failed to create diet: %w", err)
	}
	created.Goals = req.Goals

	if created.IsActive {
		if err := s.repo.DeactivateOthers(ctx, patientID, created.ID); err != nil {
			s.logger.Error(err, "failed to deactivate other diets", "diet_id", created.ID.String())
		}
	}

	s.emitEvent(ctx, model.EventDietCreated, created)
	return created, nil
}

// Get loads a diet with its meals and food items.
func (s *Service) Get(ctx context.Context, nutritionistID, dietID uuid.UUID) (*model.Diet, error) {
	diet, err := s.ownedDiet(ctx, nutritionistID, dietID)
	if err != nil {
		return nil, err
	}
	if err := s.unmarshalGoals(diet); err != nil {
		return nil, err
	}

	meals, err := s.repo.ListMeals(ctx, dietID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	for _, meal := range meals {
		items, err := s.repo.ListFoodItems(ctx, meal.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list food items: %w", err)
		}
		meal.FoodItems = items
	}
	diet.Meals = meals
	return diet, nil
}

func (s *Service) ListByPatient(ctx context.Context, nutritionistID, patientID uuid.UUID) ([]*model.Diet, error) {
	if _, err := s.ownedPatient(ctx, nutritionistID, patientID); err != nil {
		return nil, err
	}

	diets, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diets: %w", err)
	}
	for _, diet := range diets {
		if err := s.unmarshalGoals(diet); err != nil {
			return nil, err
		}
	}
	return diets, nil
}

// Update applies partial edits to a diet. Nil fields are untouched.
func (s *Service) Update(ctx context.Context, nutritionistID, dietID uuid.UUID, req *model.UpdateDietRequest) (*model.Diet, error) {
	diet, err := s.ownedDiet(ctx, nutritionistID, dietID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperrors.NewBadRequest("name must not be empty", nil)
		}
		diet.Name = *req.Name
	}
	if req.StartDate != nil {
		diet.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		diet.EndDate = req.EndDate
	}
	if req.Goals != nil {
		if err := s.validate.Struct(req.Goals); err != nil {
			return nil, apperrors.NewBadRequest("invalid diet goals", err)
		}
		raw, err := json.Marshal(req.Goals)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal diet goals: %w", err)
		}
		diet.Goals = req.Goals
		diet.GoalsJSON = raw
	}
	if diet.EndDate != nil && diet.EndDate.Before(diet.StartDate) {
		return nil, apperrors.NewBadRequest("end_date must not precede start_date", nil)
	}

	if err := s.repo.Update(ctx, diet); err != nil {
		return nil, fmt.Errorf("failed to update diet: %w", err)
	}
	if err := s.unmarshalGoals(diet); err != nil {
		return nil, err
	}
	return diet, nil
}

// Activate marks a diet active and deactivates the patient's other diets.
func (s *Service) Activate(ctx context.Context, nutritionistID, dietID uuid.UUID) error {
	diet, err := s.ownedDiet(ctx, nutritionistID, dietID)
	if err != nil {
		return err
	}

	if err := s.repo.Activate(ctx, diet.PatientID, diet.ID); err != nil {
		return fmt.Errorf("failed to activate diet: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, nutritionistID, dietID uuid.UUID) error {
	if _, err := s.ownedDiet(ctx, nutritionistID, dietID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, dietID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("diet", err)
		}
		return fmt.Errorf("failed to delete diet: %w", err)
	}
	return nil
}

func (s *Service) AddMeal(ctx context.Context, nutritionistID, dietID uuid.UUID, req *model.CreateMealRequest) (*model.Meal, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewBadRequest("invalid meal", err)
	}
	if _, err := s.ownedDiet(ctx, nutritionistID, dietID); err != nil {
		return nil, err
	}

	meal, err := s.repo.CreateMeal(ctx, &model.Meal{
		DietID:     dietID,
		Name:       req.Name,
		Time:       req.Time,
		OrderIndex: req.OrderIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create meal: %w", err)
	}
	return meal, nil
}

func (s *Service) UpdateMeal(ctx context.Context, nutritionistID, mealID uuid.UUID, req *model.UpdateMealRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperrors.NewBadRequest("invalid meal", err)
	}

	meal, err := s.ownedMeal(ctx, nutritionistID, mealID)
	if err != nil {
		return err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return apperrors.NewBadRequest("name must not be empty", nil)
		}
		meal.Name = *req.Name
	}
	if req.Time != nil {
		meal.Time = req.Time
	}
	if req.OrderIndex != nil {
		meal.OrderIndex = *req.OrderIndex
	}

	if err := s.repo.UpdateMeal(ctx, meal); err != nil {
		return fmt.Errorf("failed to update meal: %w", err)
	}
	return nil
}

func (s *Service) DeleteMeal(ctx context.Context, nutritionistID, mealID uuid.UUID) error {
	if _, err := s.ownedMeal(ctx, nutritionistID, mealID); err != nil {
		return err
	}

	if err := s.repo.DeleteMeal(ctx, mealID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("meal", err)
		}
		return fmt.Errorf("failed to delete meal: %w", err)
	}
	return nil
}

func (s *Service) AddFoodItem(ctx context.Context, nutritionistID, mealID uuid.UUID, req *model.CreateFoodItemRequest) (*model.FoodItem, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewBadRequest("invalid food item", err)
	}
	if _, err := s.ownedMeal(ctx, nutritionistID, mealID); err != nil {
		return nil, err
	}

	item, err := s.repo.CreateFoodItem(ctx, &model.FoodItem{
		MealID:   mealID,
		Name:     req.Name,
		Quantity: req.Quantity,
		Calories: req.Calories,
		Protein:  req.Protein,
		Carbs:    req.Carbs,
		Fat:      req.Fat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create food item: %w", err)
	}
	return item, nil
}

func (s *Service) DeleteFoodItem(ctx context.Context, nutritionistID, itemID uuid.UUID) error {
	item, err := s.repo.GetFoodItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("food item", err)
		}
		return fmt.Errorf("failed to get food item: %w", err)
	}
	if _, err := s.ownedMeal(ctx, nutritionistID, item.MealID); err != nil {
		return err
	}

	if err := s.repo.DeleteFoodItem(ctx, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("food item", err)
		}
		return fmt.Errorf("failed to delete food item: %w", err)
	}
	return nil
}

// ownedPatient loads a patient and hides it from nutritionists who do not own
// the profile.
func (s *Service) ownedPatient(ctx context.Context, nutritionistID, patientID uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, patientID)
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

// ownedDiet loads a diet and checks the caller against the owning patient's
// nutritionist, so diets survive a patient being reassigned.
func (s *Service) ownedDiet(ctx context.Context, nutritionistID, dietID uuid.UUID) (*model.Diet, error) {
	diet, err := s.repo.Get(ctx, dietID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("diet", err)
		}
		return nil, fmt.Errorf("failed to get diet: %w", err)
	}
	if _, err := s.ownedPatient(ctx, nutritionistID, diet.PatientID); err != nil {
		return nil, apperrors.NewNotFound("diet", nil)
	}
	return diet, nil
}

func (s *Service) ownedMeal(ctx context.Context, nutritionistID, mealID uuid.UUID) (*model.Meal, error) {
	meal, err := s.repo.GetMeal(ctx, mealID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("meal", err)
		}
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}
	if _, err := s.ownedDiet(ctx, nutritionistID, meal.DietID); err != nil {
		return nil, apperrors.NewNotFound("meal", nil)
	}
	return meal, nil
}

func (s *Service) unmarshalGoals(diet *model.Diet) error {
	if len(diet.GoalsJSON) == 0 {
		return nil
	}
	goals := &model.DietGoals{}
	if err := json.Unmarshal(diet.GoalsJSON, goals); err != nil {
		return fmt.Errorf("failed to unmarshal diet goals: %w", err)
	}
	diet.Goals = goals
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
