package ledger

import (
	"errors"
	"fmt"
)

// Error is a ledger failure. Two errors match under errors.Is when their codes
// are equal, so callers can test against the sentinels below while the
// returned value carries a descriptive message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidState      = &Error{Code: "INVALID_STATE", Message: "ledger: operation not allowed in current register state"}
	ErrInsufficientFunds = &Error{Code: "INSUFFICIENT_FUNDS", Message: "ledger: not enough funds in register"}
	ErrInvalidAmount     = &Error{Code: "INVALID_AMOUNT", Message: "ledger: amount must be greater than zero"}
	ErrRegisterNotFound  = &Error{Code: "REGISTER_NOT_FOUND", Message: "ledger: register not found"}

	// Data-integrity faults: the ledger and the cached register disagree.
	ErrOpeningNotFound = &Error{Code: "OPENING_NOT_FOUND", Message: "ledger: opened register has no opening entry"}
	ErrBalanceMismatch = &Error{Code: "BALANCE_MISMATCH", Message: "ledger: register balance does not match its ledger"}
)

func newError(kind *Error, format string, args ...any) *Error {
	return &Error{Code: kind.Code, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a precondition failure. Those are never
// worth retrying.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount)
}
