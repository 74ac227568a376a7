package email

import (
	"context"
)

// Service sends transactional email.
type Service interface {
	SendInvitation(ctx context.Context, to, name, inviteURL string) error
}
