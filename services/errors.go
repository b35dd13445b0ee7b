package services

import "errors"

// Caller-facing failure kinds. Every one maps to a stable machine code plus
// a human message in the HTTP layer; none are retried automatically here.
// The only internally retried condition is a transaction conflict
// (duplicate-key race or a lost balance CAS), which gets maxTxRetries
// attempts before surfacing as ErrTryAgain.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrCannotJoinOwnChain     = errors.New("cannot join own chain")
	ErrAlreadyResolved        = errors.New("already resolved")
	ErrDuplicatePendingClaim  = errors.New("duplicate pending claim")
	ErrRequestInactive        = errors.New("request is not active")
	ErrNotAMember             = errors.New("not a chain member")
	ErrTryAgain               = errors.New("conflicting update, try again")
)

// internal retry signals, never returned to callers
var (
	errSpendConflict = errors.New("spend lost the balance update race")
	errJoinConflict  = errors.New("join lost the insert race")
)

const maxTxRetries = 3

// ErrorCode returns the stable machine-readable code for a failure kind.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrCannotJoinOwnChain):
		return "cannot_join_own_chain"
	case errors.Is(err, ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ErrDuplicatePendingClaim):
		return "duplicate_pending_claim"
	case errors.Is(err, ErrRequestInactive):
		return "request_inactive"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrTryAgain):
		return "try_again"
	default:
		return "internal_error"
	}
}
