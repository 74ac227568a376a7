package model

import (
	"time"

	"github.com/google/uuid"
)

// DietGoals are the per-day nutrient targets of a diet. All targets are
// optional and non-negative. Stored as JSONB on the diet row.
type DietGoals struct {
	Calories *float64 `json:"calories,omitempty" validate:"omitempty,gte=0"`
	Protein  *float64 `json:"protein,omitempty" validate:"omitempty,gte=0"`
	Carbs    *float64 `json:"carbs,omitempty" validate:"omitempty,gte=0"`
	Fat      *float64 `json:"fat,omitempty" validate:"omitempty,gte=0"`
	Fiber    *float64 `json:"fiber,omitempty" validate:"omitempty,gte=0"`
	Water    *float64 `json:"water,omitempty" validate:"omitempty,gte=0"`
}

// Diet is a plan owned by one patient and authored by one nutritionist.
type Diet struct {
	Base
	PatientID      uuid.UUID  `json:"patient_id" db:"patient_id"`
	NutritionistID uuid.UUID  `json:"nutritionist_id" db:"nutritionist_id"`
	Name           string     `json:"name" db:"name"`
	StartDate      time.Time  `json:"start_date" db:"start_date"`
	EndDate        *time.Time `json:"end_date" db:"end_date"`
	Goals          *DietGoals `json:"goals" db:"-"`
	GoalsJSON      []byte     `json:"-" db:"goals"`
	DietPDFKey     *string    `json:"diet_pdf_key" db:"diet_pdf_key"`
	IsActive       bool       `json:"is_active" db:"is_active"`

	Meals []*Meal `json:"meals,omitempty" db:"-"`
}

// Meal belongs to one diet. Time is an optional time-of-day label such as
// "08:00"; OrderIndex fixes the display order.
type Meal struct {
	Base
	DietID     uuid.UUID `json:"diet_id" db:"diet_id"`
	Name       string    `json:"name" db:"name"`
	Time       *string   `json:"time" db:"time"`
	OrderIndex int       `json:"order_index" db:"order_index"`

	FoodItems []*FoodItem `json:"food_items,omitempty" db:"-"`
}

// FoodItem belongs to one meal. Quantity is a free-form description
// ("2 slices", "150g").
type FoodItem struct {
	Base
	MealID   uuid.UUID `json:"meal_id" db:"meal_id"`
	Name     string    `json:"name" db:"name"`
	Quantity string    `json:"quantity" db:"quantity"`
	Calories *float64  `json:"calories" db:"calories"`
	Protein  *float64  `json:"protein" db:"protein"`
	Carbs    *float64  `json:"carbs" db:"carbs"`
	Fat      *float64  `json:"fat" db:"fat"`
}

// CreateDietRequest is the inbound payload for creating a diet.
type CreateDietRequest struct {
	PatientID string     `json:"patient_id" validate:"required,uuid"`
	Name      string     `json:"name" validate:"required"`
	StartDate time.Time  `json:"start_date" validate:"required"`
	EndDate   *time.Time `json:"end_date"`
	Goals     *DietGoals `json:"goals"`
	IsActive  bool       `json:"is_active"`
}

// UpdateDietRequest carries partial diet edits; nil fields are left as-is.
type UpdateDietRequest struct {
	Name      *string    `json:"name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Goals     *DietGoals `json:"goals"`
}

type CreateMealRequest struct {
	Name       string  `json:"name" validate:"required"`
	Time       *string `json:"time"`
	OrderIndex int     `json:"order_index" validate:"gte=0"`
}

type UpdateMealRequest struct {
	Name       *string `json:"name"`
	Time       *string `json:"time"`
	OrderIndex *int    `json:"order_index" validate:"omitempty,gte=0"`
}

type CreateFoodItemRequest struct {
	Name     string   `json:"name" validate:"required"`
	Quantity string   `json:"quantity" validate:"required"`
	Calories *float64 `json:"calories" validate:"omitempty,gte=0"`
	Protein  *float64 `json:"protein" validate:"omitempty,gte=0"`
	Carbs    *float64 `json:"carbs" validate:"omitempty,gte=0"`
	Fat      *float64 `json:"fat" validate:"omitempty,gte=0"`
}
