package escrow

import "context"

// Ledger is the network collaborator the controller drives.
//
// Connect and Disconnect bracket a request scope; every Connect must be paired
// with a Disconnect on all exit paths. Submit signs tx with wallet, submits
// it, and reports the engine result; a non-nil error means the result is
// unknown (transport failure), not that the ledger rejected the transaction.
type Ledger interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Submit(ctx context.Context, tx Transaction, wallet Wallet) (*SubmitResult, error)
	AccountInfo(ctx context.Context, address string) (*AccountState, error)
}

// Escrower is implemented by the Controller and by wrappers around it.
type Escrower interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Finish(ctx context.Context, req FinishRequest) (*FinishResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
}
