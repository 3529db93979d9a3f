package escrow

import (
	"context"
	"time"
)

// ============================================================================
// Submit Hook Context Types
// ============================================================================

// SubmitContext contains information passed to submit hooks
type SubmitContext struct {
	Ctx         context.Context
	Transaction Transaction
	Submitter   string
	Timestamp   time.Time
}

// SubmitResultContext contains the accepted submission and its context
type SubmitResultContext struct {
	SubmitContext
	Result   SubmitResult
	Duration time.Duration
}

// SubmitFailureContext contains a failed submission and its context.
// Result is nil when the failure happened before the ledger answered.
type SubmitFailureContext struct {
	SubmitContext
	Result   *SubmitResult
	Error    error
	Duration time.Duration
}

// ============================================================================
// Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the transaction is not submitted and the step fails with Reason
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Hook Function Types
// ============================================================================

// BeforeSubmitHook is called before a transaction is handed to the ledger.
// Returning Abort=true (or an error) fails the step as a precondition failure
// without any submission.
type BeforeSubmitHook func(SubmitContext) (*BeforeHookResult, error)

// AfterSubmitHook is called after the ledger accepted a transaction
// Any error returned is logged but does not affect the result
type AfterSubmitHook func(SubmitResultContext) error

// OnSubmitFailureHook is called when the ledger rejected a transaction or the
// submission could not complete
// Any error returned is logged but does not affect the result
type OnSubmitFailureHook func(SubmitFailureContext) error
