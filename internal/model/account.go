package model

import "github.com/google/uuid"

// Role is the application role carried in an identity account's metadata.
type Role string

const (
	RolePatient      Role = "patient"
	RoleNutritionist Role = "nutritionist"
	RoleAdmin        Role = "admin"
)

// Account is an identity record owned by the external identity provider.
// The credential is write-only: it is set once at creation and rotated by
// the owner through the invitation flow.
type Account struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
	Name  string    `json:"name"`
}
