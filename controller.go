package escrow

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sangah323/MPS-XRPL/condition"
)

// Controller builds and submits EscrowCreate, EscrowFinish and EscrowCancel
// transactions against a connected Ledger. It holds no per-lock state; every
// call is a single explicit attempt that the caller may repeat.
type Controller struct {
	mu sync.RWMutex

	ledger Ledger
	logger *zap.Logger
	now    func() int64

	// Lifecycle hooks
	beforeSubmitHooks    []BeforeSubmitHook
	afterSubmitHooks     []AfterSubmitHook
	onSubmitFailureHooks []OnSubmitFailureHook
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the unix-seconds clock used to validate time windows.
func WithClock(now func() int64) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a controller that submits through ledger.
func NewController(ledger Ledger, opts ...ControllerOption) *Controller {
	c := &Controller{
		ledger: ledger,
		logger: zap.NewNop(),
		now:    unixNow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (c *Controller) OnBeforeSubmit(hook BeforeSubmitHook) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeSubmitHooks = append(c.beforeSubmitHooks, hook)
	return c
}

func (c *Controller) OnAfterSubmit(hook AfterSubmitHook) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterSubmitHooks = append(c.afterSubmitHooks, hook)
	return c
}

func (c *Controller) OnSubmitFailure(hook OnSubmitFailureHook) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSubmitFailureHooks = append(c.onSubmitFailureHooks, hook)
	return c
}

// ============================================================================
// Escrow Operations
// ============================================================================

// Create opens a conditional, time-bounded lock. Amount and time window are
// validated before anything is submitted.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Issuer.Address == "" || req.Recipient == "" {
		return nil, NewPreconditionError(ErrCodeInvalidRequest, "issuer and recipient are required", nil)
	}
	// The validated form is the one submitted.
	req.Amount = strings.TrimSpace(req.Amount)
	if _, err := ValidateAmount(req.Amount); err != nil {
		return nil, NewPreconditionError(ErrCodeInvalidAmount, err.Error(), err)
	}
	if len(req.Condition) == 0 {
		return nil, NewPreconditionError(ErrCodeInvalidCondition, "condition is required", nil)
	}
	if err := ValidateTimeWindow(req.FinishAfter, req.CancelAfter, c.now()); err != nil {
		return nil, NewPreconditionError(ErrCodeInvalidTimeWindow, err.Error(), err)
	}

	res, err := c.submit(ctx, BuildEscrowCreate(req), req.Issuer)
	if err != nil {
		return nil, err
	}

	c.logger.Info("escrow created",
		zap.Uint32("sequence", res.Sequence),
		zap.String("tx_hash", res.Hash),
		zap.String("amount", req.Amount),
		zap.String("recipient", req.Recipient),
		zap.Time("finish_after", time.Unix(req.FinishAfter, 0).UTC()),
		zap.Time("cancel_after", time.Unix(req.CancelAfter, 0).UTC()),
	)

	return &CreateResult{
		Sequence:    res.Sequence,
		TxHash:      res.Hash,
		Amount:      req.Amount,
		Recipient:   req.Recipient,
		Condition:   condition.Hex(req.Condition),
		FinishAfter: req.FinishAfter,
		CancelAfter: req.CancelAfter,
	}, nil
}

// Finish releases a lock to its recipient. The ledger checks Fulfillment
// against Condition; a missing lock surfaces as an engine rejection for which
// IsAlreadySettled reports true.
func (c *Controller) Finish(ctx context.Context, req FinishRequest) (*FinishResult, error) {
	if req.Submitter.Address == "" {
		return nil, NewPreconditionError(ErrCodeInvalidRequest, "submitter is required", nil)
	}
	if len(req.Condition) == 0 || len(req.Fulfillment) == 0 {
		return nil, NewPreconditionError(ErrCodeInvalidCondition, "condition and fulfillment are required", nil)
	}

	res, err := c.submit(ctx, BuildEscrowFinish(req), req.Submitter)
	if err != nil {
		return nil, err
	}

	c.logger.Info("escrow finished",
		zap.Uint32("sequence", req.Sequence),
		zap.String("tx_hash", res.Hash),
	)

	return &FinishResult{
		TxHash:      res.Hash,
		Sequence:    req.Sequence,
		Condition:   condition.Hex(req.Condition),
		Fulfillment: condition.Hex(req.Fulfillment),
	}, nil
}

// Cancel returns a lock to its owner. The ledger only accepts it once
// CancelAfter has passed.
func (c *Controller) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if req.Submitter.Address == "" {
		return nil, NewPreconditionError(ErrCodeInvalidRequest, "submitter is required", nil)
	}

	res, err := c.submit(ctx, BuildEscrowCancel(req), req.Submitter)
	if err != nil {
		return nil, err
	}

	c.logger.Info("escrow cancelled",
		zap.Uint32("sequence", req.Sequence),
		zap.String("tx_hash", res.Hash),
		zap.String("reason", req.Reason),
	)

	return &CancelResult{TxHash: res.Hash, Sequence: req.Sequence}, nil
}

func (c *Controller) submit(ctx context.Context, tx Transaction, wallet Wallet) (*SubmitResult, error) {
	if c.ledger == nil {
		return nil, NewTransportError("submit", ErrNilLedger)
	}

	c.mu.RLock()
	before := c.beforeSubmitHooks
	after := c.afterSubmitHooks
	onFailure := c.onSubmitFailureHooks
	c.mu.RUnlock()

	hookCtx := SubmitContext{
		Ctx:         ctx,
		Transaction: tx,
		Submitter:   wallet.Address,
		Timestamp:   time.Now(),
	}

	for _, hook := range before {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, NewPreconditionError(ErrCodeAborted, err.Error(), err)
		}
		if result != nil && result.Abort {
			return nil, NewPreconditionError(ErrCodeAborted, result.Reason, nil)
		}
	}

	start := time.Now()
	res, err := c.ledger.Submit(ctx, tx, wallet)

	var failure error
	switch {
	case err != nil:
		failure = NewTransportError("submit "+tx.Type(), err)
	case res == nil:
		failure = NewTransportError("submit "+tx.Type(), ErrEmptySubmitResult)
	case !res.Accepted():
		failure = NewEngineRejection(res.EngineResult, res.EngineResultMessage)
	}

	if failure != nil {
		c.logger.Warn("escrow transaction failed",
			zap.String("type", tx.Type()),
			zap.String("kind", string(kindOf(failure))),
			zap.Error(failure),
		)
		failureCtx := SubmitFailureContext{SubmitContext: hookCtx, Result: res, Error: failure, Duration: time.Since(start)}
		for _, hook := range onFailure {
			if hookErr := hook(failureCtx); hookErr != nil {
				c.logger.Debug("submit failure hook error", zap.Error(hookErr))
			}
		}
		return nil, failure
	}

	resultCtx := SubmitResultContext{SubmitContext: hookCtx, Result: *res, Duration: time.Since(start)}
	for _, hook := range after {
		if hookErr := hook(resultCtx); hookErr != nil {
			c.logger.Debug("after submit hook error", zap.Error(hookErr))
		}
	}
	return res, nil
}
