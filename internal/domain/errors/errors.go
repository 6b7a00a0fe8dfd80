package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid order state")
	ErrQuoteUnavailable  = errors.New("quote unavailable")
	ErrTargetUnavailable = errors.New("payout target directory unavailable")
	ErrChainUnavailable  = errors.New("chain node unavailable")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidAddress    = errors.New("invalid address")
)

// ValidationError reports malformed input supplied by the caller.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds ValidationError for a single field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing entity. It matches ErrNotFound via errors.Is.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// VerificationReason classifies why an on-chain proof was rejected.
type VerificationReason string

const (
	ReasonNotFound          VerificationReason = "NOT_FOUND"
	ReasonTransactionFailed VerificationReason = "TRANSACTION_FAILED"
	ReasonAmountTooLow      VerificationReason = "AMOUNT_TOO_LOW"
	ReasonNoMatch           VerificationReason = "NO_MATCHING_TRANSFER"
)

// VerificationError reports an insufficient on-chain proof.
type VerificationError struct {
	Reason   VerificationReason
	Required string
	Actual   string
	Detail   string
}

func (e *VerificationError) Error() string {
	switch e.Reason {
	case ReasonAmountTooLow:
		return fmt.Sprintf("verification failed: %s: required %s, received %s", e.Reason, e.Required, e.Actual)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("verification failed: %s: %s", e.Reason, e.Detail)
		}
		return fmt.Sprintf("verification failed: %s", e.Reason)
	}
}

// PartnerErrorKind separates definite partner rejections from outcomes that
// may or may not have been applied partner-side.
type PartnerErrorKind string

const (
	PartnerRejected  PartnerErrorKind = "rejected"
	PartnerAmbiguous PartnerErrorKind = "ambiguous"
)

// PartnerError wraps a payout gateway failure.
type PartnerError struct {
	Kind   PartnerErrorKind
	Op     string
	Status int
	Code   string
	Err    error
}

func (e *PartnerError) Error() string {
	msg := fmt.Sprintf("partner %s %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartnerError) Unwrap() error { return e.Err }

// IsAmbiguous reports whether err is a partner outcome of unknown effect.
func IsAmbiguous(err error) bool {
	var pe *PartnerError
	return errors.As(err, &pe) && pe.Kind == PartnerAmbiguous
}

// IsRejected reports whether err is a definite partner rejection.
func IsRejected(err error) bool {
	var pe *PartnerError
	return errors.As(err, &pe) && pe.Kind == PartnerRejected
}

// ConfigurationError reports a missing or malformed startup setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Key, e.Reason)
}
