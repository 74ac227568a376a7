package provision

import (
	"context"

	"github.com/nutriplan/nutriplan-api/internal/email"
	"github.com/nutriplan/nutriplan-api/internal/identity"
)

// Inviter dispatches the invitation that lets a freshly provisioned patient
// set their own credential.
type Inviter interface {
	SendInvite(ctx context.Context, emailAddr, name string) error
}

// providerInviter asks the identity provider to send its own invitation
// email.
type providerInviter struct {
	provisioner identity.Provisioner
	redirectURL string
}

func NewProviderInviter(provisioner identity.Provisioner, redirectURL string) Inviter {
	return &providerInviter{provisioner: provisioner, redirectURL: redirectURL}
}

func (i *providerInviter) SendInvite(ctx context.Context, emailAddr, name string) error {
	return i.provisioner.InviteByEmail(ctx, emailAddr, i.redirectURL)
}

// smtpInviter sends the invitation from our own mailer instead of the
// provider's.
type smtpInviter struct {
	mailer      email.Service
	redirectURL string
}

func NewSMTPInviter(mailer email.Service, redirectURL string) Inviter {
	return &smtpInviter{mailer: mailer, redirectURL: redirectURL}
}

func (i *smtpInviter) SendInvite(ctx context.Context, emailAddr, name string) error {
	return i.mailer.SendInvitation(ctx, emailAddr, name, i.redirectURL)
}
