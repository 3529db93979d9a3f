package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
)

type keyContextKey struct{}

// ContextWithKey attaches a caller-chosen idempotency key to ctx.
func ContextWithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContextKey{}, key)
}

// KeyFromContext returns the key attached by ContextWithKey.
func KeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(keyContextKey{}).(string)
	return key, ok && key != ""
}

// Escrower wraps an escrow.Escrower with idempotent Create, Finish and Cancel.
type Escrower struct {
	inner        escrow.Escrower
	store        Store
	keyGenerator KeyGenerator
	derivedKeys  bool
	logger       *zap.Logger
}

// Wrap creates an idempotent Escrower around inner.
//
// Default configuration:
//   - InMemoryStore with DefaultTTL
//   - SHA256 key generator
//   - only calls carrying a ContextWithKey key are deduplicated
func Wrap(inner escrow.Escrower, opts ...Option) *Escrower {
	cfg := &config{
		ttl:          DefaultTTL,
		keyGenerator: DefaultKeyGenerator,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Escrower{
		inner:        inner,
		store:        store,
		keyGenerator: cfg.keyGenerator,
		derivedKeys:  cfg.derivedKeys,
		logger:       logger,
	}
}

// Inner returns the wrapped Escrower.
func (e *Escrower) Inner() escrow.Escrower {
	return e.inner
}

func (e *Escrower) Create(ctx context.Context, req escrow.CreateRequest) (*escrow.CreateResult, error) {
	return run(ctx, e, escrow.TxEscrowCreate, req, func() (*escrow.CreateResult, error) {
		return e.inner.Create(ctx, req)
	})
}

func (e *Escrower) Finish(ctx context.Context, req escrow.FinishRequest) (*escrow.FinishResult, error) {
	return run(ctx, e, escrow.TxEscrowFinish, req, func() (*escrow.FinishResult, error) {
		return e.inner.Finish(ctx, req)
	})
}

func (e *Escrower) Cancel(ctx context.Context, req escrow.CancelRequest) (*escrow.CancelResult, error) {
	return run(ctx, e, escrow.TxEscrowCancel, req, func() (*escrow.CancelResult, error) {
		return e.inner.Cancel(ctx, req)
	})
}

// key returns "" when the call should not be deduplicated. A caller key is
// combined with the step it names: the recipient and amount of a Create, the
// lock of a Finish or Cancel. One key spanning several steps (a Demo or
// Settle run) then never hands one step's result to another.
func (e *Escrower) key(ctx context.Context, op string, req interface{}) string {
	if key, ok := KeyFromContext(ctx); ok {
		return e.keyGenerator([]byte(op + ":" + key + ":" + stepOf(req)))
	}
	if !e.derivedKeys {
		return ""
	}
	material, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return e.keyGenerator(append([]byte(op+":"), material...))
}

// stepOf identifies the ledger object a request acts on. Fields a retry may
// legitimately change, such as the time window of a Create, are left out.
func stepOf(req interface{}) string {
	switch r := req.(type) {
	case escrow.CreateRequest:
		return fmt.Sprintf("%s>%s:%s:%s", r.Issuer.Address, r.Recipient, strings.TrimSpace(r.Amount), r.Currency)
	case escrow.FinishRequest:
		return fmt.Sprintf("%s:%d", r.Owner, r.Sequence)
	case escrow.CancelRequest:
		return fmt.Sprintf("%s:%d", r.Owner, r.Sequence)
	}
	return ""
}

func run[T any](ctx context.Context, e *Escrower, op string, req interface{}, call func() (*T, error)) (*T, error) {
	key := e.key(ctx, op, req)
	if key == "" {
		return call()
	}

	status, cached, err := e.store.CheckAndMark(ctx, key)
	if err != nil {
		// The store is advisory; without it the call is a plain single attempt.
		e.logger.Warn("idempotency store unavailable", zap.String("op", op), zap.Error(err))
		return call()
	}

	switch status {
	case StatusCached:
		var out T
		if err := json.Unmarshal(cached, &out); err == nil {
			e.logger.Debug("returning cached result", zap.String("op", op), zap.String("key", key))
			return &out, nil
		}
		return call()

	case StatusInFlight:
		result, err := e.store.WaitForResult(ctx, key)
		if err != nil {
			return nil, escrow.NewTransportError("wait for in-flight "+op, err)
		}
		if result != nil {
			var out T
			if err := json.Unmarshal(result, &out); err == nil {
				return &out, nil
			}
		}
		// In-flight request failed, retry for a new in-flight slot.
		return run(ctx, e, op, req, call)

	case StatusNotFound:
	}

	out, callErr := call()
	if callErr != nil {
		if err := e.store.Fail(ctx, key); err != nil {
			e.logger.Warn("idempotency fail marker not released", zap.String("key", key), zap.Error(err))
		}
		return nil, callErr
	}

	encoded, err := json.Marshal(out)
	if err == nil {
		err = e.store.Complete(ctx, key, encoded)
	}
	if err != nil {
		e.logger.Warn("idempotency result not cached", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

var _ escrow.Escrower = (*Escrower)(nil)
