package escrow

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a settlement step failed.
type ErrorKind string

const (
	// KindEngineRejection means the ledger declined the transaction.
	KindEngineRejection ErrorKind = "engine_rejection"
	// KindPrecondition means a local check failed before anything was submitted.
	KindPrecondition ErrorKind = "precondition_failed"
	// KindTransport means connecting to or talking with the ledger failed.
	KindTransport ErrorKind = "transport"
)

// Common error codes
const (
	ErrCodeInsufficientUsage = "insufficient_usage"
	ErrCodeInvalidAmount     = "invalid_amount"
	ErrCodeInvalidTimeWindow = "invalid_time_window"
	ErrCodeInvalidCondition  = "invalid_condition"
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeUnknownCompany    = "unknown_company"
	ErrCodeAborted           = "aborted"
	ErrCodeLedgerUnavailable = "ledger_unavailable"
)

var (
	ErrInsufficientUsage = errors.New("usage count insufficient")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTimeWindow = errors.New("invalid escrow time window")
	ErrUnknownCompany    = errors.New("unknown company")
	ErrNilLedger         = errors.New("escrow: ledger is required")
	ErrEmptySubmitResult = errors.New("escrow: ledger returned no submit result")
)

// SettlementError is returned by every Create/Finish/Cancel failure.
//
// For engine rejections Code is the engine result (e.g. "tecNO_TARGET") and
// Message the engine's human-readable reason.
type SettlementError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *SettlementError) Error() string {
	return e.Message
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// NewEngineRejection creates an error for a transaction the ledger declined.
func NewEngineRejection(engineResult, message string) *SettlementError {
	if message == "" {
		message = engineResult
	}
	return &SettlementError{Kind: KindEngineRejection, Code: engineResult, Message: message}
}

// NewPreconditionError creates an error for a check failed before submission.
func NewPreconditionError(code, message string, err error) *SettlementError {
	return &SettlementError{Kind: KindPrecondition, Code: code, Message: message, Err: err}
}

// NewTransportError wraps a connect or submit failure.
func NewTransportError(op string, err error) *SettlementError {
	return &SettlementError{
		Kind:    KindTransport,
		Code:    ErrCodeLedgerUnavailable,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     err,
	}
}

func kindOf(err error) ErrorKind {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsEngineRejection reports whether err is a ledger-side rejection.
func IsEngineRejection(err error) bool { return kindOf(err) == KindEngineRejection }

// IsPrecondition reports whether err failed before reaching the ledger.
func IsPrecondition(err error) bool { return kindOf(err) == KindPrecondition }

// IsTransport reports whether err is a connection or submission failure.
func IsTransport(err error) bool { return kindOf(err) == KindTransport }

// IsAlreadySettled reports whether the ledger rejected a Finish or Cancel
// because the lock no longer exists. Callers treat it as already settled.
func IsAlreadySettled(err error) bool {
	var se *SettlementError
	if !errors.As(err, &se) || se.Kind != KindEngineRejection {
		return false
	}
	return se.Code == EngineNoTarget || se.Code == EngineNoEntry
}
