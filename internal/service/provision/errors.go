package provision

import (
	"fmt"
	"strings"
)

// Stage identifies which remote step of the provisioning workflow failed.
type Stage string

const (
	StageAccount Stage = "account"
	StageRecord  Stage = "record"
	StageInvite  Stage = "invite"
)

// ValidationError reports every missing or invalid input field at once. It is
// raised before any remote call is attempted.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// ProvisioningError wraps a downstream failure, tagged with the stage that
// produced it. The underlying error message is preserved verbatim.
type ProvisioningError struct {
	Stage Stage
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s stage: %v", e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
