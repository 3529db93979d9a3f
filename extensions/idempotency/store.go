package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Status represents the result of checking the store.
type Status int

const (
	// StatusNotFound means no cached result and no in-flight request.
	StatusNotFound Status = iota
	// StatusCached means a cached result was found.
	StatusCached
	// StatusInFlight means another request is currently processing this key.
	StatusInFlight
)

func (s Status) String() string {
	switch s {
	case StatusCached:
		return "cached"
	case StatusInFlight:
		return "in_flight"
	default:
		return "not_found"
	}
}

// Store holds results and in-flight markers. Results are opaque JSON.
// Implementations must be safe for concurrent use.
type Store interface {
	// CheckAndMark atomically checks the store and marks the key in-flight
	// when neither a result nor another in-flight request exists.
	//
	// Returns:
	//   - StatusCached + result: return the result immediately
	//   - StatusInFlight: another request owns the key, call WaitForResult
	//   - StatusNotFound: this request owns the key and must call Complete or Fail
	CheckAndMark(ctx context.Context, key string) (Status, []byte, error)

	// WaitForResult blocks until the in-flight request for key ends.
	//
	// Returns the cached result, nil if the in-flight request failed (the
	// caller should retry), or an error if ctx ended first.
	WaitForResult(ctx context.Context, key string) ([]byte, error)

	// Complete caches result and releases the in-flight marker.
	Complete(ctx context.Context, key string, result []byte) error

	// Fail releases the in-flight marker without caching anything.
	Fail(ctx context.Context, key string) error
}

// KeyGenerator turns key material into a store key.
type KeyGenerator func(material []byte) string

// DefaultKeyGenerator returns the hex SHA256 of material.
func DefaultKeyGenerator(material []byte) string {
	hash := sha256.Sum256(material)
	return hex.EncodeToString(hash[:])
}
