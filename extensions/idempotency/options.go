package idempotency

import (
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long successful results are cached.
const DefaultTTL = 10 * time.Minute

type config struct {
	ttl          time.Duration
	store        Store
	keyGenerator KeyGenerator
	derivedKeys  bool
	logger       *zap.Logger
}

// Option configures an Escrower.
type Option func(*config)

// WithTTL sets the cache TTL for successful results.
//
// Only applies to the default InMemoryStore; configure TTL on a custom store
// instead.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithStore sets a custom Store, e.g. a RedisStore.
func WithStore(store Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithKeyGenerator sets the function turning key material into a store key.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *config) {
		c.keyGenerator = gen
	}
}

// WithDerivedKeys deduplicates calls without a caller key by hashing the
// operation and request. Identical requests within the TTL then share one
// submission, so a second Cancel of the same lock returns the first result
// instead of the ledger's rejection.
func WithDerivedKeys() Option {
	return func(c *config) {
		c.derivedKeys = true
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
