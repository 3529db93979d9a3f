package escrow

import "time"

// LockState is the lifecycle of a single lock: Created, then exactly one of
// Finished or Cancelled. Only Created has transition methods, so a terminal
// state cannot be driven any further.
type LockState interface {
	Status() Status
	Sequence() uint32
	lockState()
}

// Status names a LockState variant.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Created is a lock the ledger accepted and that has not been settled.
type Created struct {
	Lock      Lock
	TxHash    string
	CreatedAt time.Time
}

func (Created) Status() Status     { return StatusCreated }
func (c Created) Sequence() uint32 { return c.Lock.Sequence }
func (Created) lockState()         {}

// Finish moves the lock to Finished once the ledger accepted an EscrowFinish.
func (c Created) Finish(res FinishResult, fulfillment []byte) Finished {
	lock := c.Lock
	lock.Fulfillment = fulfillment
	return Finished{Lock: lock, CreateTxHash: c.TxHash, TxHash: res.TxHash, FinishedAt: time.Now()}
}

// Cancel moves the lock to Cancelled once the ledger accepted an EscrowCancel.
func (c Created) Cancel(res CancelResult, reason string) Cancelled {
	return Cancelled{Lock: c.Lock, CreateTxHash: c.TxHash, TxHash: res.TxHash, Reason: reason, CancelledAt: time.Now()}
}

// Finished is terminal: funds went to the recipient.
type Finished struct {
	Lock         Lock
	CreateTxHash string
	TxHash       string
	FinishedAt   time.Time
}

func (Finished) Status() Status     { return StatusFinished }
func (f Finished) Sequence() uint32 { return f.Lock.Sequence }
func (Finished) lockState()         {}

// Cancelled is terminal: funds went back to the issuer.
type Cancelled struct {
	Lock         Lock
	CreateTxHash string
	TxHash       string
	Reason       string
	CancelledAt  time.Time
}

func (Cancelled) Status() Status     { return StatusCancelled }
func (c Cancelled) Sequence() uint32 { return c.Lock.Sequence }
func (Cancelled) lockState()         {}
