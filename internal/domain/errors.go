package domain

import (
	"fmt"
	"math/big"
)

// KindedError is implemented by every domain error; Kind is stable on the wire.
type KindedError interface {
	error
	Kind() string
}

func isKind[T any](target error) bool {
	if _, ok := target.(T); ok {
		return true
	}
	_, ok := any(target).(*T)
	return ok
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Kind() string         { return "not_found" }
func (e NotFoundError) Is(target error) bool { return isKind[NotFoundError](target) }

// ValidationError is a malformed or missing field; the user can correct it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Kind() string         { return "validation" }
func (e ValidationError) Is(target error) bool { return isKind[ValidationError](target) }

// BindingMismatchError means a recomputed value disagrees with the submission.
// Subject is "reference hash" or "message".
type BindingMismatchError struct {
	Subject string
}

func (e BindingMismatchError) Error() string {
	if e.Subject == "" {
		return "binding mismatch"
	}
	return fmt.Sprintf("invalid %s", e.Subject)
}

func (e BindingMismatchError) Kind() string         { return "binding_mismatch" }
func (e BindingMismatchError) Is(target error) bool { return isKind[BindingMismatchError](target) }

type SignatureInvalidError struct {
	Reason string
}

func (e SignatureInvalidError) Error() string {
	if e.Reason == "" {
		return "invalid signature"
	}
	return "invalid signature: " + e.Reason
}

func (e SignatureInvalidError) Kind() string         { return "signature_invalid" }
func (e SignatureInvalidError) Is(target error) bool { return isKind[SignatureInvalidError](target) }

// StaleDataError is raised when the price feed is flagged stale before a write.
type StaleDataError struct{}

func (e StaleDataError) Error() string        { return "price feed is stale, try again later" }
func (e StaleDataError) Kind() string         { return "stale_data" }
func (e StaleDataError) Is(target error) bool { return isKind[StaleDataError](target) }

type InsufficientBalanceError struct {
	Have *big.Int
	Need *big.Int
}

func (e InsufficientBalanceError) Error() string {
	if e.Have == nil || e.Need == nil {
		return "insufficient balance"
	}
	return fmt.Sprintf("insufficient balance: have %s, need %s", e.Have, e.Need)
}

func (e InsufficientBalanceError) Kind() string { return "insufficient_balance" }
func (e InsufficientBalanceError) Is(target error) bool {
	return isKind[InsufficientBalanceError](target)
}

type ExceedsMaxBorrowError struct {
	Requested *big.Int
	Max       *big.Int
}

func (e ExceedsMaxBorrowError) Error() string {
	if e.Requested == nil || e.Max == nil {
		return "requested amount exceeds max borrow"
	}
	return fmt.Sprintf("requested amount %s exceeds max borrow %s", e.Requested, e.Max)
}

func (e ExceedsMaxBorrowError) Kind() string         { return "exceeds_max_borrow" }
func (e ExceedsMaxBorrowError) Is(target error) bool { return isKind[ExceedsMaxBorrowError](target) }

// GatewayUnavailableError wraps a network/storage/ledger failure.
// Ambiguous is set when a write may have landed (e.g. timeout); such writes
// must be retried only with a fresh draft id.
type GatewayUnavailableError struct {
	Gateway   string
	Ambiguous bool
	Err       error
}

func (e GatewayUnavailableError) Error() string {
	msg := e.Gateway + " unavailable"
	if e.Ambiguous {
		msg = e.Gateway + " did not answer in time; the request may or may not have been stored"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e GatewayUnavailableError) Unwrap() error { return e.Err }
func (e GatewayUnavailableError) Kind() string  { return "gateway_unavailable" }
func (e GatewayUnavailableError) Is(target error) bool {
	return isKind[GatewayUnavailableError](target)
}

// OwnershipMismatchError denies a display to a viewer that does not own the position.
type OwnershipMismatchError struct{}

func (e OwnershipMismatchError) Error() string        { return "position is owned by another wallet" }
func (e OwnershipMismatchError) Kind() string         { return "ownership_mismatch" }
func (e OwnershipMismatchError) Is(target error) bool { return isKind[OwnershipMismatchError](target) }

type ConflictError struct {
	Resource string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e ConflictError) Kind() string         { return "conflict" }
func (e ConflictError) Is(target error) bool { return isKind[ConflictError](target) }

// InvalidTransitionError is a write attempted from the wrong status, or a
// write whose effect was not observed on the ledger.
type InvalidTransitionError struct {
	PositionID uint64
	Action     string
	Status     Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s position %d in status %s", e.Action, e.PositionID, e.Status.Key())
}

func (e InvalidTransitionError) Kind() string         { return "invalid_transition" }
func (e InvalidTransitionError) Is(target error) bool { return isKind[InvalidTransitionError](target) }

// InsufficientDataError is returned when one of several combined reads failed.
type InsufficientDataError struct {
	Err error
}

func (e InsufficientDataError) Error() string {
	if e.Err == nil {
		return "insufficient data"
	}
	return "insufficient data: " + e.Err.Error()
}

func (e InsufficientDataError) Unwrap() error        { return e.Err }
func (e InsufficientDataError) Kind() string         { return "insufficient_data" }
func (e InsufficientDataError) Is(target error) bool { return isKind[InsufficientDataError](target) }

// OrphanedDraftError: the draft was stored but the ledger request failed.
type OrphanedDraftError struct {
	DraftID string
	Err     error
}

func (e OrphanedDraftError) Error() string {
	return fmt.Sprintf("draft %s stored but loan request failed: %v", e.DraftID, e.Err)
}

func (e OrphanedDraftError) Unwrap() error        { return e.Err }
func (e OrphanedDraftError) Kind() string         { return "orphaned_draft" }
func (e OrphanedDraftError) Is(target error) bool { return isKind[OrphanedDraftError](target) }

type SigningCancelledError struct {
	Err error
}

func (e SigningCancelledError) Error() string        { return "signature request was cancelled" }
func (e SigningCancelledError) Unwrap() error        { return e.Err }
func (e SigningCancelledError) Kind() string         { return "signing_cancelled" }
func (e SigningCancelledError) Is(target error) bool { return isKind[SigningCancelledError](target) }

var (
	ErrNotFound            = NotFoundError{}
	ErrValidation          = ValidationError{}
	ErrBindingMismatch     = BindingMismatchError{}
	ErrSignatureInvalid    = SignatureInvalidError{}
	ErrStaleData           = StaleDataError{}
	ErrInsufficientBalance = InsufficientBalanceError{}
	ErrExceedsMaxBorrow    = ExceedsMaxBorrowError{}
	ErrGatewayUnavailable  = GatewayUnavailableError{}
	ErrOwnershipMismatch   = OwnershipMismatchError{}
	ErrConflict            = ConflictError{}
	ErrInvalidTransition   = InvalidTransitionError{}
	ErrInsufficientData    = InsufficientDataError{}
	ErrOrphanedDraft       = OrphanedDraftError{}
	ErrSigningCancelled    = SigningCancelledError{}
)

// RemoteError carries a typed error reported by another service, keeping its message.
type RemoteError struct {
	Message string
	Err     error
}

func (e RemoteError) Error() string { return e.Message }
func (e RemoteError) Unwrap() error { return e.Err }

// ErrorFromKind rebuilds a typed error from its wire kind and message.
// Unknown kinds yield nil.
func ErrorFromKind(kind, message string) error {
	var typed error
	switch kind {
	case "validation":
		typed = ValidationError{Reason: message}
	case "binding_mismatch":
		typed = BindingMismatchError{}
	case "signature_invalid":
		typed = SignatureInvalidError{}
	case "conflict":
		typed = ConflictError{}
	case "stale_data":
		typed = StaleDataError{}
	case "not_found":
		typed = NotFoundError{}
	case "ownership_mismatch":
		typed = OwnershipMismatchError{}
	case "invalid_transition":
		typed = InvalidTransitionError{}
	default:
		return nil
	}
	return RemoteError{Message: message, Err: typed}
}
