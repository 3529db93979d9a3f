package escrow

import (
	"time"
)

// Transaction is a JSON transaction object as submitted to the ledger.
type Transaction map[string]interface{}

// Type returns the TransactionType field.
func (t Transaction) Type() string {
	s, _ := t["TransactionType"].(string)
	return s
}

// Wallet is an account identity together with the capability to sign for it.
// Signing is delegated to the Ledger collaborator; Seed is passed through.
type Wallet struct {
	Address string `json:"address"`
	Seed    string `json:"-"`
}

// IssuedAmount is a quantity of a custom token identified by currency code
// and issuing account.
type IssuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// Lock is the ledger-resident escrow entity.
//
// A lock is referenced by (Issuer, Sequence). Condition is fixed at creation;
// Fulfillment is only known once the lock is finished.
type Lock struct {
	Issuer      string       `json:"issuer"`
	Recipient   string       `json:"recipient"`
	Amount      IssuedAmount `json:"amount"`
	Sequence    uint32       `json:"sequence"`
	Condition   []byte       `json:"condition,omitempty"`
	Fulfillment []byte       `json:"fulfillment,omitempty"`
	FinishAfter int64        `json:"finishAfter"`
	CancelAfter int64        `json:"cancelAfter"`
	Memo        string       `json:"memo,omitempty"`
}

// SubmitResult is what the ledger reports for a single submission.
type SubmitResult struct {
	EngineResult        string `json:"engineResult"`
	EngineResultMessage string `json:"engineResultMessage,omitempty"`
	Hash                string `json:"hash"`
	Sequence            uint32 `json:"sequence,omitempty"`
}

// Accepted reports whether the engine result is the success sentinel.
func (r *SubmitResult) Accepted() bool {
	return r != nil && r.EngineResult == EngineSuccess
}

// TrustLineBalance is a balance of an issued currency held by an account.
type TrustLineBalance struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// AccountState is a snapshot of an account on the ledger.
type AccountState struct {
	Address    string             `json:"address"`
	Sequence   uint32             `json:"sequence"`
	XRPBalance string             `json:"xrpBalance"`
	Lines      []TrustLineBalance `json:"lines,omitempty"`
}

// CreateRequest opens a conditional, time-bounded lock from Issuer to Recipient.
// FinishAfter and CancelAfter are unix seconds.
type CreateRequest struct {
	Issuer      Wallet
	Recipient   string
	Amount      string
	Currency    string
	Condition   []byte
	FinishAfter int64
	CancelAfter int64
	Memo        string
}

// CreateResult describes a lock the ledger accepted.
type CreateResult struct {
	Sequence    uint32 `json:"escrowSequence"`
	TxHash      string `json:"txHash"`
	Amount      string `json:"amount"`
	Recipient   string `json:"destination"`
	Condition   string `json:"condition"`
	FinishAfter int64  `json:"finishAfter"`
	CancelAfter int64  `json:"cancelAfter"`
}

// FinishRequest releases the lock identified by Owner and Sequence.
type FinishRequest struct {
	Submitter   Wallet
	Owner       string
	Sequence    uint32
	Condition   []byte
	Fulfillment []byte
	Memo        string
}

// FinishResult describes an accepted EscrowFinish.
type FinishResult struct {
	TxHash      string `json:"txHash"`
	Sequence    uint32 `json:"escrowSequence"`
	Condition   string `json:"condition"`
	Fulfillment string `json:"fulfillment"`
}

// CancelRequest returns the lock identified by Owner and Sequence to its owner.
// Reason is advisory and never reaches the ledger.
type CancelRequest struct {
	Submitter Wallet
	Owner     string
	Sequence  uint32
	Reason    string
	Memo      string
}

// CancelResult describes an accepted EscrowCancel.
type CancelResult struct {
	TxHash   string `json:"txHash"`
	Sequence uint32 `json:"escrowSequence"`
}

// unixNow is replaced in tests.
var unixNow = func() int64 { return time.Now().Unix() }
