package model

import (
	"time"

	"github.com/google/uuid"
)

// ProvisioningStatus tracks how far a patient got through the provisioning
// workflow. A row only exists from the record step onwards, so the persisted
// values start at pending_invite; the earlier stages live in outbox events.
type ProvisioningStatus string

const (
	ProvisioningPendingInvite ProvisioningStatus = "pending_invite"
	ProvisioningComplete      ProvisioningStatus = "complete"
)

// Patient is a profile owned by exactly one nutritionist account.
// Optional profile fields are pointers so that omitted input is stored as
// NULL, never as a zero value.
type Patient struct {
	Base
	AuthUserID         *uuid.UUID         `json:"auth_user_id" db:"auth_user_id"`
	NutritionistID     uuid.UUID          `json:"nutritionist_id" db:"nutritionist_id"`
	Name               string             `json:"name" db:"name"`
	Email              string             `json:"email" db:"email"`
	Phone              *string            `json:"phone" db:"phone"`
	Gender             *string            `json:"gender" db:"gender"`
	BirthDate          *time.Time         `json:"birth_date" db:"birth_date"`
	Height             *float64           `json:"height" db:"height"`
	InitialWeight      *float64           `json:"initial_weight" db:"initial_weight"`
	Goal               *string            `json:"goal" db:"goal"`
	BodyFatPercentage  *float64           `json:"body_fat_percentage" db:"body_fat_percentage"`
	BMR                *float64           `json:"bmr" db:"bmr"`
	ProvisioningStatus ProvisioningStatus `json:"provisioning_status" db:"provisioning_status"`
}

// PatientData is the profile section of a provisioning request. Everything
// except email and name is optional.
type PatientData struct {
	Email             string     `json:"email" validate:"required,email"`
	Name              string     `json:"name" validate:"required"`
	Phone             *string    `json:"phone"`
	Gender            *string    `json:"gender"`
	BirthDate         *time.Time `json:"birth_date"`
	Height            *float64   `json:"height" validate:"omitempty,gt=0"`
	InitialWeight     *float64   `json:"initial_weight" validate:"omitempty,gt=0"`
	Goal              *string    `json:"goal"`
	BodyFatPercentage *float64   `json:"body_fat_percentage" validate:"omitempty,gte=0,lte=100"`
	BMR               *float64   `json:"bmr" validate:"omitempty,gt=0"`
}

// ProvisionPatientRequest is the inbound payload of the provisioning endpoint.
type ProvisionPatientRequest struct {
	PatientData    PatientData `json:"patientData" validate:"required"`
	NutritionistID string      `json:"nutritionistId" validate:"required,uuid"`
}

// UpdatePatientRequest carries partial profile updates; nil fields are left
// untouched.
type UpdatePatientRequest struct {
	Name              *string    `json:"name"`
	Phone             *string    `json:"phone"`
	Gender            *string    `json:"gender"`
	BirthDate         *time.Time `json:"birth_date"`
	Height            *float64   `json:"height"`
	InitialWeight     *float64   `json:"initial_weight"`
	Goal              *string    `json:"goal"`
	BodyFatPercentage *float64   `json:"body_fat_percentage"`
	BMR               *float64   `json:"bmr"`
}
