package zapper

import "fmt"

// FailureClass partitions pipeline failures by what a caller may do next.
// The boundary that matters is irreversibility: every failure up to and
// including invoice delivery means no funds moved, while a failure once
// payment submission has begun cannot be blindly retried without risking a
// double payment.
type FailureClass int

const (
	// Retryable: no funds moved; the whole emission can be re-run safely.
	Retryable FailureClass = iota
	// Terminal: no funds moved, but a retry is pointless (for example the
	// recipient has no lightning address).
	Terminal
	// Irreversible: payment submission was invoked. The money may have
	// moved; only a caller that can deduplicate per real-world payment may
	// retry.
	Irreversible
)

func (c FailureClass) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	case Irreversible:
		return "irreversible"
	default:
		return fmt.Sprintf("FailureClass(%d)", int(c))
	}
}

// Stage names the pipeline step a failure occurred in.
type Stage string

const (
	StageKeygen    Stage = "keygen"
	StageTarget    Stage = "target"
	StageRecipient Stage = "recipient"
	StageDiscovery Stage = "discovery"
	StageRequest   Stage = "request"
	StageInvoice   Stage = "invoice"
	StagePayment   Stage = "payment"
)

// Error is the failure result of an emission. Stage says where the
// pipeline stopped, Class says whether funds could have moved.
type Error struct {
	Stage Stage
	Class FailureClass
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("zap %s stage (%s): %v", e.Stage, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CanRetry reports whether re-running the emission is safe: true for every
// failure before payment submission began.
func (e *Error) CanRetry() bool { return e.Class != Irreversible }

func fail(stage Stage, class FailureClass, err error) *Error {
	return &Error{Stage: stage, Class: class, Err: err}
}
