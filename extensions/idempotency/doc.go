// Package idempotency makes escrow submissions safe to repeat.
//
// A Create, Finish or Cancel whose outcome is unknown (the socket dropped after
// the transaction was sent) can be retried through the wrapper without
// submitting a second transaction: the first successful result is cached under
// an idempotency key and returned to every later attempt with the same key.
// Concurrent attempts with the same key wait for the one in flight.
//
// # Usage
//
//	ctrl := escrow.NewController(ledger)
//	e := idempotency.Wrap(ctrl, idempotency.WithTTL(30*time.Minute))
//	settlement := escrow.NewSettlement(ledger, issuer, dir, escrow.WithEscrower(e))
//
// Shared across instances with Redis:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	e := idempotency.Wrap(ctrl, idempotency.WithStore(idempotency.NewRedisStore(rdb, 10*time.Minute)))
//
// # Keys
//
// Only calls carrying a caller-supplied key (ContextWithKey, e.g. from an
// Idempotency-Key header) are deduplicated; other calls pass straight through.
// The caller key is scoped to the step it guards (recipient and amount of a
// Create, owner and sequence of a Finish or Cancel), so one key can cover a
// whole multi-lock run.
// WithDerivedKeys additionally keys unkeyed calls by the operation name and
// the JSON form of the request; wallet seeds are never part of it.
//
// Failed submissions, including engine rejections, are NOT cached so they can
// be retried.
package idempotency
