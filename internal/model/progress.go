package model

import (
	"time"

	"github.com/google/uuid"
)

// ProgressRecord captures a point-in-time measurement of a patient.
// Measurements is a free-form key/value map (waist, hips, ...), stored as
// JSONB.
type ProgressRecord struct {
	Base
	PatientID         uuid.UUID          `json:"patient_id" db:"patient_id"`
	RecordDate        time.Time          `json:"record_date" db:"record_date"`
	Weight            *float64           `json:"weight" db:"weight"`
	BodyFatPercentage *float64           `json:"body_fat_percentage" db:"body_fat_percentage"`
	Measurements      map[string]float64 `json:"measurements" db:"-"`
	MeasurementsJSON  []byte             `json:"-" db:"measurements"`
	CaloriesConsumed  *float64           `json:"calories_consumed" db:"calories_consumed"`
	WaterConsumed     *float64           `json:"water_consumed" db:"water_consumed"`
	Notes             *string            `json:"notes" db:"notes"`
	PhotoKey          *string            `json:"photo_key" db:"photo_key"`
}

type CreateProgressRequest struct {
	RecordDate        time.Time          `json:"record_date" validate:"required"`
	Weight            *float64           `json:"weight" validate:"omitempty,gt=0"`
	BodyFatPercentage *float64           `json:"body_fat_percentage" validate:"omitempty,gte=0,lte=100"`
	Measurements      map[string]float64 `json:"measurements"`
	CaloriesConsumed  *float64           `json:"calories_consumed" validate:"omitempty,gte=0"`
	WaterConsumed     *float64           `json:"water_consumed" validate:"omitempty,gte=0"`
	Notes             *string            `json:"notes"`
	PhotoKey          *string            `json:"photo_key"`
}
