package ledger

import (
	"sync/atomic"
	"time"

	escrow "github.com/sangah323/MPS-XRPL"
)

// BaseTime is the wall-clock instant harness workflows are created at.
var BaseTime = time.Unix(1_700_000_000, 0)

// Test identities.
var (
	Issuer   = escrow.Wallet{Address: "rMPSissuerXXXXXXXXXXXXXXXXXXXXXXX", Seed: "sMPSseed"}
	CompanyA = escrow.Company{ID: "A", Name: "Company A", Wallet: escrow.Wallet{Address: "rCompanyAXXXXXXXXXXXXXXXXXXXXXXXX", Seed: "sCompanyA"}}
	CompanyB = escrow.Company{ID: "B", Name: "Company B", Wallet: escrow.Wallet{Address: "rCompanyBXXXXXXXXXXXXXXXXXXXXXXXX", Seed: "sCompanyB"}}
)

// Stepper returns a hook that moves clock before every escrow step: creates
// run at base, finishes at base+finishAt, cancels at base+cancelAt. It lets a
// whole workflow run against the simulator without waiting out real windows.
func Stepper(clock *Clock, base int64, finishAt, cancelAt time.Duration, enabled *atomic.Bool) escrow.BeforeSubmitHook {
	return func(sc escrow.SubmitContext) (*escrow.BeforeHookResult, error) {
		if enabled != nil && !enabled.Load() {
			return nil, nil
		}
		switch sc.Transaction.Type() {
		case escrow.TxEscrowCreate:
			clock.Set(base)
		case escrow.TxEscrowFinish:
			clock.Set(base + int64(finishAt/time.Second))
		case escrow.TxEscrowCancel:
			clock.Set(base + int64(cancelAt/time.Second))
		}
		return nil, nil
	}
}

// Harness wires a Settlement to the simulator with the default windows.
type Harness struct {
	Ledger     *Ledger
	Clock      *Clock
	Controller *escrow.Controller
	Settlement *escrow.Settlement
	Directory  *escrow.Directory

	// Stepping toggles the Stepper hook. On by default.
	Stepping atomic.Bool
}

// NewHarness creates a harness. The settlement sees a fixed clock at
// BaseTime while the ledger clock is moved by the Stepper.
func NewHarness(opts ...escrow.SettlementOption) *Harness {
	h := &Harness{Clock: NewClock(BaseTime)}
	h.Stepping.Store(true)
	h.Ledger = New(h.Clock.Now)
	h.Directory = escrow.NewDirectory(CompanyA, CompanyB)

	base := BaseTime.Unix()
	fixed := func() int64 { return base }
	h.Controller = escrow.NewController(h.Ledger, escrow.WithClock(fixed)).
		OnBeforeSubmit(Stepper(h.Clock, base, 2*time.Hour, 25*time.Hour, &h.Stepping))

	all := append([]escrow.SettlementOption{
		escrow.WithSettlementClock(fixed),
		escrow.WithEscrower(h.Controller),
	}, opts...)
	h.Settlement = escrow.NewSettlement(h.Ledger, Issuer, h.Directory, all...)
	return h
}
