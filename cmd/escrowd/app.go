package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/extensions/idempotency"
	"github.com/sangah323/MPS-XRPL/xrpl"
)

// app holds the wired components shared by every command.
type app struct {
	cfg        *Config
	logger     *zap.Logger
	ledger     escrow.Ledger
	settlement *escrow.Settlement
	closers    []func() error
}

// newApp wires a Settlement against ledger. A nil ledger selects the
// configured XRPL endpoint.
func newApp(ctx context.Context, cfg *Config, logger *zap.Logger, ledger escrow.Ledger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if ledger == nil {
		ledger = xrpl.NewClient(cfg.LedgerURL,
			xrpl.WithLogger(logger.Named("xrpl")),
			xrpl.WithTimeout(cfg.LedgerTimeout),
		)
	}
	a.ledger = ledger

	scheme, err := cfg.Scheme()
	if err != nil {
		return nil, fmt.Errorf("condition scheme: %w", err)
	}

	store, err := a.idempotencyStore(ctx)
	if err != nil {
		return nil, err
	}
	controller := escrow.NewController(ledger, escrow.WithLogger(logger.Named("controller")))
	escrower := idempotency.Wrap(controller,
		idempotency.WithStore(store),
		idempotency.WithTTL(cfg.IdempotencyTTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	a.settlement = escrow.NewSettlement(ledger, cfg.Issuer, escrow.NewDirectory(cfg.Companies...),
		escrow.WithEscrower(escrower),
		escrow.WithScheme(scheme),
		escrow.WithMinUsageCount(cfg.MinUsageCount),
		escrow.WithDelays(cfg.FinishDelay, cfg.CancelDelay),
		escrow.WithCurrency(cfg.Currency),
		escrow.WithSettlementLogger(logger.Named("settlement")),
	)

	logger.Info("settlement configured",
		zap.String("ledger", cfg.LedgerURL),
		zap.String("issuer", cfg.Issuer.Address),
		zap.String("scheme", scheme.Name()),
		zap.Int64("min_usage_count", cfg.MinUsageCount),
		zap.Bool("redis_idempotency", cfg.RedisURL != ""),
	)
	return a, nil
}

func (a *app) idempotencyStore(ctx context.Context) (idempotency.Store, error) {
	if a.cfg.RedisURL == "" {
		return idempotency.NewInMemoryStore(a.cfg.IdempotencyTTL), nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("idempotency.redis_url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	return idempotency.NewRedisStore(rdb, a.cfg.IdempotencyTTL), nil
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
