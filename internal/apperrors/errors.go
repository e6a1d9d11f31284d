package apperrors

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Kind is the closed set of failure classes surfaced at component boundaries.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindAuth              Kind = "auth_error"
	KindSession           Kind = "session_error"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindRateLimited       Kind = "rate_limited"
	KindNetwork           Kind = "network_error"
	KindStorage           Kind = "storage_error"
	KindSigning           Kind = "signing_error"
	KindAlreadySubmitting Kind = "already_submitting"
	KindSuperseded        Kind = "superseded"
)

// AuthFailedMessage is the only text an authentication failure ever carries.
const AuthFailedMessage = "password incorrect or cannot decrypt"

// Error is the tagged error type shared by the wallet core.
type Error struct {
	Kind    Kind
	Message string
	Field   string // validation only

	// insufficient funds only, base units
	Required  *big.Int
	Balance   *big.Int
	Shortfall *big.Int

	// rate limited only
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindAuth {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by Kind, and by Message when the sentinel has one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrAlreadySubmitting = &Error{Kind: KindAlreadySubmitting, Message: "already submitting"}
	ErrSuperseded        = &Error{Kind: KindSuperseded, Message: "submission superseded"}
	ErrLocked            = &Error{Kind: KindSession, Message: "vault is locked"}
	ErrNoActiveKey       = &Error{Kind: KindSession, Message: "no active signing key"}
)

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Auth never carries the underlying cause in its message.
func Auth(cause error) *Error {
	return &Error{Kind: KindAuth, Message: AuthFailedMessage, Err: cause}
}

func Session(message string, cause error) *Error {
	return &Error{Kind: KindSession, Message: message, Err: cause}
}

func Network(message string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: cause}
}

func Storage(message string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: cause}
}

func Signing(message string, cause error) *Error {
	return &Error{Kind: KindSigning, Message: message, Err: cause}
}

func RateLimited(retryAfter time.Duration, cause error) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("rpc rate limited, retry after %s", retryAfter),
		RetryAfter: retryAfter,
		Err:        cause,
	}
}

// InsufficientFunds computes the shortfall as required - balance.
func InsufficientFunds(required, balance *big.Int) *Error {
	shortfall := new(big.Int).Sub(required, balance)
	return &Error{
		Kind:      KindInsufficientFunds,
		Message:   fmt.Sprintf("insufficient funds: short by %s wei", shortfall.String()),
		Required:  new(big.Int).Set(required),
		Balance:   new(big.Int).Set(balance),
		Shortfall: shortfall,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// As is a shorthand for errors.As into *Error.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
