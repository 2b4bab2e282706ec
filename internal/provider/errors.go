package provider

import (
	"errors"
	"fmt"
)

// ErrQuotaExhausted is returned when the provider itself rejects a call for
// budget reasons. The pipeline folds it into the local quota-exceeded error
// so the orchestrator sees a single taxonomy.
var ErrQuotaExhausted = errors.New("provider_quota_exhausted")

// TransientError wraps network, 5xx, and timeout failures from the provider.
// The source is marked failed and retried implicitly on the next tick.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ValidationError reports a provider response that does not match the
// expected item schema.
type ValidationError struct {
	ItemID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid provider item %q: %s", e.ItemID, e.Reason)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
