package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/model"
)

// ErrEmailExists is returned when the provider already holds an account for
// the requested email. Accounts are created once per human and never
// duplicated for the same address.
var ErrEmailExists = errors.New("an account with this email already exists")

// CreateAccountParams describes the account to create. The credential is a
// temporary one; the owner rotates it through the invitation flow.
type CreateAccountParams struct {
	Email        string
	Password     string
	Name         string
	Role         model.Role
	EmailConfirm bool
}

// Provisioner is the admin surface of the external identity provider.
type Provisioner interface {
	// CreateAccount creates a login identity tagged with a role.
	CreateAccount(ctx context.Context, params CreateAccountParams) (*model.Account, error)

	// InviteByEmail asks the provider to send an invitation email carrying
	// a redirect target for credential setup.
	InviteByEmail(ctx context.Context, email, redirectTo string) error

	// DeleteAccount removes an identity. Used by the reconciler to
	// compensate accounts orphaned by failed provisioning attempts.
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}
