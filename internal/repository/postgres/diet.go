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

type dietRepository struct {
	db *sqlx.DB
	BaseRepository
}

func NewDietRepository(db *sqlx.DB) repository.DietRepository {
	return &dietRepository{db: db, BaseRepository: NewBaseRepository(db)}
}

func (r *dietRepository) Create(ctx context.Context, diet *model.Diet) (*model.Diet, error) {
	query := `
		INSERT INTO diets (
			id, patient_id, nutritionist_id, name, start_date, end_date,
			goals, diet_pdf_key, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *
	`
	if diet.ID == uuid.Nil {
		diet.ID = uuid.New()
	}
	now := time.Now()

	var created model.Diet
	err := r.db.GetContext(ctx, &created, query,
		diet.ID,
		diet.PatientID,
		diet.NutritionistID,
		diet.Name,
		diet.StartDate,
		diet.EndDate,
		diet.GoalsJSON,
		diet.DietPDFKey,
		diet.IsActive,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create diet: %w", err)
	}
	return &created, nil
}

func (r *dietRepository) Get(ctx context.Context, id uuid.UUID) (*model.Diet, error) {
	query := `SELECT * FROM diets WHERE id = $1`
	var diet model.Diet
	if err := r.db.GetContext(ctx, &diet, query, id); err != nil {
		return nil, fmt.Errorf("failed to get diet: %w", err)
	}
	return &diet, nil
}

func (r *dietRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Diet, error) {
	query := `SELECT * FROM diets WHERE patient_id = $1 ORDER BY start_date DESC`
	var diets []*model.Diet
	if err := r.db.SelectContext(ctx, &diets, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list diets: %w", err)
	}
	return diets, nil
}

func (r *dietRepository) Update(ctx context.Context, diet *model.Diet) error {
	query := `
		UPDATE diets SET
			name = $1, start_date = $2, end_date = $3, goals = $4,
			is_active = $5, updated_at = $6
		WHERE id = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		diet.Name,
		diet.StartDate,
		diet.EndDate,
		diet.GoalsJSON,
		diet.IsActive,
		time.Now(),
		diet.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update diet: %w", err)
	}
	return nil
}

func (r *dietRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM diets WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete diet: %w", err)
	}
	return nil
}

// Activate flips the given diet active and deactivates the patient's other
// diets in one transaction, so a reader never sees two active plans.
func (r *dietRepository) Activate(ctx context.Context, patientID, dietID uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE diets SET is_active = true, updated_at = $1 WHERE id = $2`,
			now, dietID,
		); err != nil {
			return fmt.Errorf("failed to activate diet: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE diets SET is_active = false, updated_at = $1 WHERE patient_id = $2 AND id <> $3`,
			now, patientID, dietID,
		); err != nil {
			return fmt.Errorf("failed to deactivate diets: %w", err)
		}
		return nil
	})
}

func (r *dietRepository) DeactivateOthers(ctx context.Context, patientID, keepID uuid.UUID) error {
	query := `UPDATE diets SET is_active = false, updated_at = $1 WHERE patient_id = $2 AND id <> $3`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), patientID, keepID); err != nil {
		return fmt.Errorf("failed to deactivate diets: %w", err)
	}
	return nil
}

func (r *dietRepository) SetPDFKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE diets SET diet_pdf_key = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, key, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set diet pdf key: %w", err)
	}
	return nil
}

func (r *dietRepository) CreateMeal(ctx context.Context, meal *model.Meal) (*model.Meal, error) {
	query := `
		INSERT INTO meals (id, diet_id, name, time, order_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`
	if meal.ID == uuid.Nil {
		meal.ID = uuid.New()
	}
	now := time.Now()

	var created model.Meal
	err := r.db.GetContext(ctx, &created, query,
		meal.ID, meal.DietID, meal.Name, meal.Time, meal.OrderIndex, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create meal: %w", err)
	}
	return &created, nil
}

func (r *dietRepository) GetMeal(ctx context.Context, id uuid.UUID) (*model.Meal, error) {
	query := `SELECT * FROM meals WHERE id = $1`
	var meal model.Meal
	if err := r.db.GetContext(ctx, &meal, query, id); err != nil {
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}
	return &meal, nil
}

func (r *dietRepository) ListMeals(ctx context.Context, dietID uuid.UUID) ([]*model.Meal, error) {
	query := `SELECT * FROM meals WHERE diet_id = $1 ORDER BY order_index ASC`
	var meals []*model.Meal
	if err := r.db.SelectContext(ctx, &meals, query, dietID); err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	return meals, nil
}

func (r *dietRepository) UpdateMeal(ctx context.Context, meal *model.Meal) error {
	query := `UPDATE meals SET name = $1, time = $2, order_index = $3, updated_at = $4 WHERE id = $5`
	_, err := r.db.ExecContext(ctx, query, meal.Name, meal.Time, meal.OrderIndex, time.Now(), meal.ID)
	if err != nil {
		return fmt.Errorf("failed to update meal: %w", err)
	}
	return nil
}

func (r *dietRepository) DeleteMeal(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM meals WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete meal: %w", err)
	}
	return nil
}

func (r *dietRepository) CreateFoodItem(ctx context.Context, item *model.FoodItem) (*model.FoodItem, error) {
	query := `
		INSERT INTO food_items (id, meal_id, name, quantity, calories, protein, carbs, fat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()

	var created model.FoodItem
	err := r.db.GetContext(ctx, &created, query,
		item.ID, item.MealID, item.Name, item.Quantity,
		item.Calories, item.Protein, item.Carbs, item.Fat, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create food item: %w", err)
	}
	return &created, nil
}

func (r *dietRepository) GetFoodItem(ctx context.Context, id uuid.UUID) (*model.FoodItem, error) {
	query := `SELECT * FROM food_items WHERE id = $1`
	var item model.FoodItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, fmt.Errorf("failed to get food item: %w", err)
	}
	return &item, nil
}

func (r *dietRepository) ListFoodItems(ctx context.Context, mealID uuid.UUID) ([]*model.FoodItem, error) {
	query := `SELECT * FROM food_items WHERE meal_id = $1 ORDER BY created_at ASC`
	var items []*model.FoodItem
	if err := r.db.SelectContext(ctx, &items, query, mealID); err != nil {
		return nil, fmt.Errorf("failed to list food items: %w", err)
	}
	return items, nil
}

func (r *dietRepository) DeleteFoodItem(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM food_items WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete food item: %w", err)
	}
	return nil
}
