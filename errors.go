package zapgate

import "fmt"

// ValidationError indicates a malformed webhook payload. The session store
// is never consulted for these; the provider should fix its payload, not
// retry it.
type ValidationError struct {
	Field  string // which field is invalid
	Reason string // why it's invalid
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid webhook field %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid webhook payload: %s", e.Reason)
}

// Reasons a webhook correlation can fail.
const (
	ReasonSessionNotFound = "session not found"
	ReasonInactiveSession = "inactive session"
)

// CorrelationError indicates a webhook that could not be attributed: the
// payment-link id is unknown, or its link was disabled before the webhook
// arrived. The payment already happened upstream, so this is an anomaly
// worth logging, not a retryable condition.
type CorrelationError struct {
	LinkID string
	Reason string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("cannot correlate payment link %q: %s", e.LinkID, e.Reason)
}

// ProvisionError indicates the upstream payment-link API refused to mint a
// link. Never retried automatically.
type ProvisionError struct {
	Upstream string
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("payment link provisioning failed: %s", e.Upstream)
}
