package domain

// Status is the canonical payment status vocabulary. FedaPay's native
// vocabulary overlaps with it, so `approved` and `declined` are stored as-is
// and classified as synonyms of `successful` and `failed`.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSuccessful  Status = "successful"
	StatusApproved    Status = "approved"
	StatusFailed      Status = "failed"
	StatusDeclined    Status = "declined"
	StatusCanceled    Status = "canceled"
	StatusInvalid     Status = "invalid"
	StatusRefunded    Status = "refunded"
	StatusTransferred Status = "transferred"
)

// Class collapses status synonyms into the branches the reconciliation
// engine dispatches on.
type Class int

const (
	ClassPending Class = iota
	ClassSuccessful
	ClassFailed
	ClassCanceled
	ClassInvalid
	ClassRefunded
	ClassTransferred
)

// Class returns the dispatch class of a status. Unknown values classify as
// invalid; an unrecognized status must never be treated as a completed payment.
func (s Status) Class() Class {
	switch s {
	case StatusPending:
		return ClassPending
	case StatusSuccessful, StatusApproved:
		return ClassSuccessful
	case StatusFailed, StatusDeclined:
		return ClassFailed
	case StatusCanceled:
		return ClassCanceled
	case StatusRefunded:
		return ClassRefunded
	case StatusTransferred:
		return ClassTransferred
	default:
		return ClassInvalid
	}
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// move. Redelivery of the same literal is always legal; refunded/transferred
// are reachable only from the successful class; failed/canceled and the
// post-settlement states accept no further moves. Invalid is a quarantine
// state, not provider truth, so a later well-formed report may leave it.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s.Class() {
	case ClassPending, ClassInvalid:
		return next.Class() != ClassRefunded && next.Class() != ClassTransferred
	case ClassSuccessful:
		return next.Class() == ClassRefunded || next.Class() == ClassTransferred
	default:
		return false
	}
}

// IsSuccessful reports whether the status is in the successful class.
func (s Status) IsSuccessful() bool {
	return s.Class() == ClassSuccessful
}

// IsTerminal reports whether the status ends a normal payment flow.
// refunded/transferred are post-settlement adjustments of a successful payment.
func (s Status) IsTerminal() bool {
	switch s.Class() {
	case ClassSuccessful, ClassFailed, ClassCanceled, ClassInvalid, ClassRefunded, ClassTransferred:
		return true
	default:
		return false
	}
}

// Provider identifies a payment provider.
type Provider string

const (
	ProviderFedapay Provider = "fedapay"
	ProviderFeexpay Provider = "feexpay"
)

// Valid reports whether the provider name is known.
func (p Provider) Valid() bool {
	return p == ProviderFedapay || p == ProviderFeexpay
}

// NormalizeFeexpayStatus maps FeexPay's native vocabulary to the canonical
// one. Any literal outside the known set maps to invalid. The same fail-safe
// default applies on the webhook and polling paths: an unknown literal is
// never interpreted as still-in-flight, and never as success.
func NormalizeFeexpayStatus(raw string) Status {
	switch raw {
	case "PENDING":
		return StatusPending
	case "SUCCESSFUL":
		return StatusSuccessful
	case "FAILED":
		return StatusFailed
	default:
		return StatusInvalid
	}
}

// NormalizeFedapayStatus passes FedaPay's already-compatible vocabulary
// through unchanged and maps anything else to invalid.
func NormalizeFedapayStatus(raw string) Status {
	switch s := Status(raw); s {
	case StatusPending, StatusApproved, StatusDeclined, StatusCanceled, StatusRefunded, StatusTransferred:
		return s
	default:
		return StatusInvalid
	}
}

// Normalize maps a provider-native status literal to the canonical vocabulary.
func Normalize(provider Provider, raw string) Status {
	switch provider {
	case ProviderFeexpay:
		return NormalizeFeexpayStatus(raw)
	case ProviderFedapay:
		return NormalizeFedapayStatus(raw)
	default:
		return StatusInvalid
	}
}
