package finalize

import "fmt"

// Kind classifies finalization failures.  All kinds except KindUnexpected
// are business failures: the transaction is rolled back, the lock is
// released, a human-readable message is returned and nothing is retried
// automatically.
type Kind int

const (
    // KindNotFound: the reservation or tour does not exist.
    KindNotFound Kind = iota + 1
    // KindPrecondition: the reservation is not finalizable, the tour is
    // closed to registration, or the acting member lacks membership or
    // eligibility.
    KindPrecondition
    // KindFraudMismatch: a participant's claimed type contradicts
    // authoritative membership data.
    KindFraudMismatch
    // KindCapacityExceeded: the window or tour ceiling would be breached.
    KindCapacityExceeded
    // KindConflict: the member already holds an active reservation for
    // this tour.
    KindConflict
    // KindPricingUnresolved: no applicable pricing rule exists for a
    // participant group.
    KindPricingUnresolved
    // KindBillingFailed: the billing collaborator rejected or errored.
    KindBillingFailed
    // KindUnexpected: any other failure; logged with full context and
    // surfaced as a generic failure.
    KindUnexpected
)

// String returns the stable identifier for a failure kind, used in logs
// and API responses.
func (k Kind) String() string {
    switch k {
    case KindNotFound:
        return "NOT_FOUND"
    case KindPrecondition:
        return "PRECONDITION_FAILED"
    case KindFraudMismatch:
        return "FRAUD_MISMATCH"
    case KindCapacityExceeded:
        return "CAPACITY_EXCEEDED"
    case KindConflict:
        return "CONFLICTING_RESERVATION"
    case KindPricingUnresolved:
        return "PRICING_UNRESOLVED"
    case KindBillingFailed:
        return "BILLING_FAILED"
    default:
        return "UNEXPECTED"
    }
}

// Error is the typed failure returned by the engine.  Message is safe to
// show to callers; Err carries the underlying cause, if any.
type Error struct {
    Kind    Kind
    Message string
    Err     error
}

func (e *Error) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
    }
    return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, msg string) *Error {
    return &Error{Kind: kind, Message: msg}
}

func failWith(kind Kind, msg string, err error) *Error {
    return &Error{Kind: kind, Message: msg, Err: err}
}
