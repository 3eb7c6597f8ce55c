package services

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindBusinessRule   Kind = "business_rule"
	KindNotFound       Kind = "not_found"
	KindStorage        Kind = "storage"
	KindAuthentication Kind = "authentication"
)

const (
	ReasonInsufficientFunds      = "insufficient_funds"
	ReasonInvalidCredit          = "invalid_credit"
	ReasonInvalidLoan            = "invalid_loan"
	ReasonInvalidAmount          = "invalid_amount"
	ReasonInvalidMovementType    = "invalid_movement_type"
	ReasonInvalidAccount         = "invalid_account"
	ReasonDuplicateEmail         = "duplicate_email"
	ReasonDuplicateAccountNumber = "duplicate_account_number"
	ReasonAccountNotFound        = "account_not_found"
	ReasonInvalidCredentials     = "invalid_credentials"
	ReasonStorageFailure         = "storage_failure"
)

// Error is returned by every AccountService operation. Reason is safe to
// show to clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of err, or KindStorage for errors that did not come
// from this package.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindStorage
}

// ReasonOf returns the client-facing reason carried by err.
func ReasonOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Reason
	}
	return ReasonStorageFailure
}
