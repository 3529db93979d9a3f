package escrow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sangah323/MPS-XRPL/condition"
)

const (
	DefaultMinUsageCount int64 = 10
	DefaultFinishDelay         = time.Hour
	DefaultCancelDelay         = 24 * time.Hour
	DefaultCancelReason        = "Conditions not met"
)

// Company is a settlement recipient.
type Company struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Wallet Wallet `json:"wallet"`
}

// Directory resolves company identifiers to wallets.
type Directory struct {
	companies map[string]Company
}

// NewDirectory creates a directory holding companies keyed by ID.
func NewDirectory(companies ...Company) *Directory {
	d := &Directory{companies: make(map[string]Company, len(companies))}
	for _, c := range companies {
		d.companies[c.ID] = c
	}
	return d
}

// Lookup returns the company registered under id.
func (d *Directory) Lookup(id string) (Company, error) {
	if d != nil {
		if c, ok := d.companies[id]; ok {
			return c, nil
		}
	}
	return Company{}, NewPreconditionError(ErrCodeUnknownCompany, fmt.Sprintf("unknown company %q", id), ErrUnknownCompany)
}

// Companies returns every registered company ordered by ID.
func (d *Directory) Companies() []Company {
	if d == nil {
		return nil
	}
	out := make([]Company, 0, len(d.companies))
	for _, c := range d.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Settlement orchestrates usage-triggered settlement between the issuer and
// the companies of a Directory. Every public operation runs inside its own
// Connect/Disconnect scope on the ledger.
type Settlement struct {
	ledger    Ledger
	issuer    Wallet
	directory *Directory
	escrower  Escrower
	scheme    condition.Scheme
	logger    *zap.Logger
	now       func() int64

	minUsageCount int64
	finishDelay   time.Duration
	cancelDelay   time.Duration
	currency      string
}

// SettlementOption configures a Settlement.
type SettlementOption func(*Settlement)

// WithSettlementLogger sets the logger. Defaults to a no-op logger.
func WithSettlementLogger(logger *zap.Logger) SettlementOption {
	return func(s *Settlement) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEscrower replaces the controller used to submit transactions, e.g. with
// an idempotent wrapper around it.
func WithEscrower(e Escrower) SettlementOption {
	return func(s *Settlement) {
		if e != nil {
			s.escrower = e
		}
	}
}

// WithScheme sets the condition scheme. Defaults to condition.PlaintextScheme.
func WithScheme(scheme condition.Scheme) SettlementOption {
	return func(s *Settlement) {
		if scheme != nil {
			s.scheme = scheme
		}
	}
}

// WithMinUsageCount sets the usage threshold encoded into every lock.
func WithMinUsageCount(n int64) SettlementOption {
	return func(s *Settlement) {
		s.minUsageCount = n
	}
}

// WithDelays sets how long after creation a lock becomes finishable and
// cancellable.
func WithDelays(finishAfter, cancelAfter time.Duration) SettlementOption {
	return func(s *Settlement) {
		s.finishDelay = finishAfter
		s.cancelDelay = cancelAfter
	}
}

// WithCurrency sets the issued currency code. Defaults to "MPS".
func WithCurrency(code string) SettlementOption {
	return func(s *Settlement) {
		if code != "" {
			s.currency = code
		}
	}
}

// WithSettlementClock overrides the unix-seconds clock.
func WithSettlementClock(now func() int64) SettlementOption {
	return func(s *Settlement) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSettlement creates a settlement orchestrator. Unless WithEscrower is
// given, transactions go through a Controller over ledger.
func NewSettlement(ledger Ledger, issuer Wallet, directory *Directory, opts ...SettlementOption) *Settlement {
	s := &Settlement{
		ledger:        ledger,
		issuer:        issuer,
		directory:     directory,
		scheme:        condition.PlaintextScheme{},
		logger:        zap.NewNop(),
		now:           unixNow,
		minUsageCount: DefaultMinUsageCount,
		finishDelay:   DefaultFinishDelay,
		cancelDelay:   DefaultCancelDelay,
		currency:      DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.escrower == nil {
		s.escrower = NewController(ledger, WithLogger(s.logger), WithClock(s.now))
	}
	return s
}

// Issuer returns the issuing wallet.
func (s *Settlement) Issuer() Wallet { return s.issuer }

// Directory returns the company directory.
func (s *Settlement) Directory() *Directory { return s.directory }

// MinUsageCount returns the usage threshold.
func (s *Settlement) MinUsageCount() int64 { return s.minUsageCount }

// withConnection brackets fn with Connect and Disconnect. Disconnect runs on
// every path, including a cancelled ctx.
func (s *Settlement) withConnection(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.ledger == nil {
		return NewTransportError("connect", ErrNilLedger)
	}
	if err := s.ledger.Connect(ctx); err != nil {
		return NewTransportError("connect", err)
	}
	defer func() {
		if err := s.ledger.Disconnect(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("ledger disconnect failed", zap.Error(err))
		}
	}()
	return fn(ctx)
}

// CreateSettlementEscrow locks amount for companyID under the configured usage
// threshold. usageCount is informational.
func (s *Settlement) CreateSettlementEscrow(ctx context.Context, companyID string, usageCount int64, amount string) (*CreateResult, error) {
	company, err := s.directory.Lookup(companyID)
	if err != nil {
		return nil, err
	}
	var res *CreateResult
	err = s.withConnection(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.create(ctx, company, usageCount, amount)
		return err
	})
	return res, err
}

// FinishSettlementEscrow releases the lock at sequence when actualUsageCount
// meets the threshold. Below the threshold it fails without touching the
// ledger.
func (s *Settlement) FinishSettlementEscrow(ctx context.Context, sequence uint32, conditionHex string, actualUsageCount int64) (*FinishResult, error) {
	if err := s.checkUsage(actualUsageCount); err != nil {
		return nil, err
	}
	cond, err := condition.DecodeHex(conditionHex)
	if err != nil || len(cond) == 0 {
		return nil, NewPreconditionError(ErrCodeInvalidCondition, "condition must be a non-empty hex string", err)
	}
	var res *FinishResult
	err = s.withConnection(ctx, func(ctx context.Context) error {
		var err error
		res, _, err = s.finish(ctx, sequence, cond, actualUsageCount)
		return err
	})
	return res, err
}

// CancelSettlementEscrow returns the lock at sequence to the issuer. An empty
// reason becomes DefaultCancelReason.
func (s *Settlement) CancelSettlementEscrow(ctx context.Context, sequence uint32, reason string) (*CancelResult, error) {
	var res *CancelResult
	err := s.withConnection(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.cancel(ctx, sequence, reason)
		return err
	})
	return res, err
}

// Workflow records one orchestrated settlement attempt. State is nil when the
// lock was never created.
type Workflow struct {
	ID         string        `json:"id"`
	CompanyID  string        `json:"companyId"`
	UsageCount int64         `json:"usageCount"`
	Amount     string        `json:"amount"`
	Create     *CreateResult `json:"create,omitempty"`
	Finish     *FinishResult `json:"finish,omitempty"`
	Cancel     *CancelResult `json:"cancel,omitempty"`
	State      LockState     `json:"-"`
}

// Status returns the lifecycle status, or "" when no lock exists.
func (w *Workflow) Status() Status {
	if w == nil || w.State == nil {
		return ""
	}
	return w.State.Status()
}

// Settle runs Create and then, depending on usageCount, Finish or Cancel in a
// single connection scope. The returned Workflow is never nil and reflects how
// far the attempt got; the error is that of the failing step.
func (s *Settlement) Settle(ctx context.Context, companyID string, usageCount int64, amount string) (*Workflow, error) {
	wf := &Workflow{ID: uuid.NewString(), CompanyID: companyID, UsageCount: usageCount, Amount: amount}
	company, err := s.directory.Lookup(companyID)
	if err != nil {
		return wf, err
	}
	err = s.withConnection(ctx, func(ctx context.Context) error {
		return s.settle(ctx, wf, company)
	})
	return wf, err
}

func (s *Settlement) settle(ctx context.Context, wf *Workflow, company Company) error {
	logger := s.logger.With(zap.String("workflow", wf.ID), zap.String("company", company.ID))

	created, err := s.create(ctx, company, wf.UsageCount, wf.Amount)
	if err != nil {
		logger.Info("settlement terminated before lock creation", zap.Error(err))
		return err
	}
	wf.Create = created

	cond, err := condition.DecodeHex(created.Condition)
	if err != nil {
		return NewPreconditionError(ErrCodeInvalidCondition, err.Error(), err)
	}
	state := Created{
		Lock: Lock{
			Issuer:    s.issuer.Address,
			Recipient: company.Wallet.Address,
			Amount: IssuedAmount{
				Currency: s.currency,
				Issuer:   s.issuer.Address,
				Value:    wf.Amount,
			},
			Sequence:    created.Sequence,
			Condition:   cond,
			FinishAfter: created.FinishAfter,
			CancelAfter: created.CancelAfter,
		},
		TxHash:    created.TxHash,
		CreatedAt: time.Unix(s.now(), 0),
	}
	wf.State = state

	if wf.UsageCount >= s.minUsageCount {
		finished, proof, err := s.finish(ctx, created.Sequence, cond, wf.UsageCount)
		if err != nil {
			logger.Warn("settlement finish failed", zap.Uint32("sequence", created.Sequence), zap.Error(err))
			return err
		}
		wf.Finish = finished
		wf.State = state.Finish(*finished, proof.Encoded)
		return nil
	}

	reason := fmt.Sprintf("Usage count insufficient (%d < %d)", wf.UsageCount, s.minUsageCount)
	cancelled, err := s.cancel(ctx, created.Sequence, reason)
	if err != nil {
		logger.Warn("settlement cancel failed", zap.Uint32("sequence", created.Sequence), zap.Error(err))
		return err
	}
	wf.Cancel = cancelled
	wf.State = state.Cancel(*cancelled, reason)
	return nil
}

// DemoScenario is one scenario of the demo run.
type DemoScenario struct {
	Workflow *Workflow
	Err      error
}

// DemoResult holds both demo scenarios.
type DemoResult struct {
	Scenario1 DemoScenario
	Scenario2 DemoScenario
}

// Demo runs the two reference scenarios in one connection scope: company A
// with 15 uses settling "50" (finished) and company B with 5 uses settling
// "30" (cancelled). A failing step is recorded in its scenario; only a
// connection failure fails the demo as a whole.
func (s *Settlement) Demo(ctx context.Context) (*DemoResult, error) {
	a, err := s.directory.Lookup("A")
	if err != nil {
		return nil, err
	}
	b, err := s.directory.Lookup("B")
	if err != nil {
		return nil, err
	}

	result := &DemoResult{}
	err = s.withConnection(ctx, func(ctx context.Context) error {
		s.logger.Info("escrow demo started")
		result.Scenario1 = s.runScenario(ctx, a, 15, "50")
		result.Scenario2 = s.runScenario(ctx, b, 5, "30")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Settlement) runScenario(ctx context.Context, company Company, usageCount int64, amount string) DemoScenario {
	wf := &Workflow{ID: uuid.NewString(), CompanyID: company.ID, UsageCount: usageCount, Amount: amount}
	return DemoScenario{Workflow: wf, Err: s.settle(ctx, wf, company)}
}

// Balances queries the issuer and every company account concurrently inside
// one connection scope. Results are keyed by company ID, and "mps" for the
// issuer.
func (s *Settlement) Balances(ctx context.Context) (map[string]*AccountState, error) {
	accounts := map[string]string{"mps": s.issuer.Address}
	for _, c := range s.directory.Companies() {
		accounts[c.ID] = c.Wallet.Address
	}

	balances := make(map[string]*AccountState, len(accounts))
	err := s.withConnection(ctx, func(ctx context.Context) error {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for key, address := range accounts {
			g.Go(func() error {
				state, err := s.ledger.AccountInfo(gctx, address)
				if err != nil {
					return NewTransportError("account_info "+address, err)
				}
				mu.Lock()
				balances[key] = state
				mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (s *Settlement) checkUsage(actualUsageCount int64) error {
	if actualUsageCount < s.minUsageCount {
		return NewPreconditionError(
			ErrCodeInsufficientUsage,
			fmt.Sprintf("Usage count insufficient (minimum %d required)", s.minUsageCount),
			ErrInsufficientUsage,
		)
	}
	return nil
}

func (s *Settlement) create(ctx context.Context, company Company, usageCount int64, amount string) (*CreateResult, error) {
	threshold, err := condition.NewThreshold(s.scheme, s.minUsageCount)
	if err != nil {
		return nil, NewPreconditionError(ErrCodeInvalidCondition, err.Error(), err)
	}
	now := s.now()
	s.logger.Debug("creating settlement escrow",
		zap.String("company", company.ID),
		zap.Int64("usage_count", usageCount),
		zap.String("amount", amount),
	)
	return s.escrower.Create(ctx, CreateRequest{
		Issuer:      s.issuer,
		Recipient:   company.Wallet.Address,
		Amount:      amount,
		Currency:    s.currency,
		Condition:   threshold.Encoded,
		FinishAfter: now + int64(s.finishDelay/time.Second),
		CancelAfter: now + int64(s.cancelDelay/time.Second),
	})
}

func (s *Settlement) finish(ctx context.Context, sequence uint32, cond []byte, actualUsageCount int64) (*FinishResult, condition.UsageProof, error) {
	if err := s.checkUsage(actualUsageCount); err != nil {
		return nil, condition.UsageProof{}, err
	}
	threshold := condition.UsageThreshold{MinUsageCount: s.minUsageCount, Encoded: cond}
	proof, err := threshold.Prove(s.scheme, actualUsageCount)
	if err != nil {
		return nil, condition.UsageProof{}, NewPreconditionError(ErrCodeInvalidCondition, err.Error(), err)
	}
	res, err := s.escrower.Finish(ctx, FinishRequest{
		Submitter:   s.issuer,
		Owner:       s.issuer.Address,
		Sequence:    sequence,
		Condition:   cond,
		Fulfillment: proof.Encoded,
	})
	if err != nil {
		return nil, condition.UsageProof{}, err
	}
	return res, proof, nil
}

func (s *Settlement) cancel(ctx context.Context, sequence uint32, reason string) (*CancelResult, error) {
	if reason == "" {
		reason = DefaultCancelReason
	}
	return s.escrower.Cancel(ctx, CancelRequest{
		Submitter: s.issuer,
		Owner:     s.issuer.Address,
		Sequence:  sequence,
		Reason:    reason,
	})
}
