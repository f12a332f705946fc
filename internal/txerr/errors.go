// Package txerr carries typed transaction failures and turns raw execution
// errors into user-facing categories.
package txerr

import (
	"errors"
	"fmt"
)

// Kind tags a failure with a category the front end can branch on.
type Kind string

const (
	KindInsufficientDeposit Kind = "insufficient_deposit"
	KindInsufficientGas     Kind = "insufficient_gas"
	KindUserRejected        Kind = "user_rejected"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindMoveAbort           Kind = "move_abort"
	KindExecutionFailed     Kind = "execution_failed"

	KindClaimUnsupported Kind = "claim_unsupported"
	KindNotConfigured    Kind = "not_configured"
	KindUnsupportedMode  Kind = "unsupported_mode"
	KindInvalidAmount    Kind = "invalid_amount"
	KindInProgress       Kind = "in_progress"
)

// Error is a failure whose category is known at the point it was produced.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// New returns an *Error with a formatted detail message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. It returns nil when err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind carried by err, or "" when err is untyped.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
