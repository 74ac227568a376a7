package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Outbox event types emitted by the services.
const (
	EventPatientProvisioned = "patient.provisioned"
	EventCompensateAccount  = "provision.compensate_account"
	EventInvitePending      = "provision.invite_pending"
	EventDietCreated        = "diet.created"
	EventProgressRecorded   = "progress.recorded"
	EventPatientDeleted     = "patient.deleted"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
}

// CompensateAccountPayload is the body of a provision.compensate_account
// event: an identity account that was created but whose patient row never
// made it into the record store.
type CompensateAccountPayload struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
}
