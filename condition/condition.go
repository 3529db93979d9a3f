// Package condition encodes usage thresholds and observed usage counts into
// the opaque condition/fulfillment byte-strings carried by an XRPL escrow.
//
// The codec never decides whether a fulfillment satisfies a condition; the
// ledger adjudicates that when EscrowFinish is submitted. The package only
// guarantees both sides are formed consistently.
//
// Two schemes are provided:
//   - PlaintextScheme: the reference demo encoding ("usage_count >= N" /
//     "usage_count: N"). It is NOT binding: anyone who reads the condition can
//     forge a fulfillment. Use it only against test networks.
//   - PreimageSHA256Scheme: a crypto-conditions PREIMAGE-SHA-256 hash lock
//     derived from a secret, accepted natively by XRPL escrows.
package condition

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNegativeUsageCount is returned when a usage count below zero is encoded.
	ErrNegativeUsageCount = errors.New("condition: usage count must be non-negative")
	// ErrThresholdNotMet is returned when a fulfillment is requested for a usage
	// count below the threshold.
	ErrThresholdNotMet = errors.New("condition: usage threshold not met")
	// ErrEmptySecret is returned when a binding scheme is built without a secret.
	ErrEmptySecret = errors.New("condition: secret is required")
)

// Scheme turns a usage threshold into a condition and an observed usage count
// into the matching fulfillment.
type Scheme interface {
	Name() string
	Condition(minUsageCount int64) ([]byte, error)
	Fulfillment(minUsageCount, actualUsageCount int64) ([]byte, error)
}

// UsageThreshold is the derived pair (minUsageCount, encodedCondition).
type UsageThreshold struct {
	MinUsageCount int64
	Encoded       []byte
}

// UsageProof is the derived pair (actualUsageCount, encodedFulfillment).
type UsageProof struct {
	ActualUsageCount int64
	Encoded          []byte
}

// EncodeCondition encodes minUsageCount with the reference plaintext scheme.
func EncodeCondition(minUsageCount int64) ([]byte, error) {
	if minUsageCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeUsageCount, minUsageCount)
	}
	return []byte(predicate(minUsageCount)), nil
}

// EncodeFulfillment encodes actualUsageCount with the reference plaintext scheme.
func EncodeFulfillment(actualUsageCount int64) ([]byte, error) {
	if actualUsageCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeUsageCount, actualUsageCount)
	}
	return []byte(fmt.Sprintf("usage_count: %d", actualUsageCount)), nil
}

// NewThreshold derives the condition for minUsageCount under scheme.
func NewThreshold(scheme Scheme, minUsageCount int64) (UsageThreshold, error) {
	encoded, err := scheme.Condition(minUsageCount)
	if err != nil {
		return UsageThreshold{}, err
	}
	return UsageThreshold{MinUsageCount: minUsageCount, Encoded: encoded}, nil
}

// Prove derives the fulfillment for actualUsageCount against t.
// It fails with ErrThresholdNotMet when the count is below the threshold.
func (t UsageThreshold) Prove(scheme Scheme, actualUsageCount int64) (UsageProof, error) {
	encoded, err := scheme.Fulfillment(t.MinUsageCount, actualUsageCount)
	if err != nil {
		return UsageProof{}, err
	}
	return UsageProof{ActualUsageCount: actualUsageCount, Encoded: encoded}, nil
}

// Hex renders b the way XRPL transactions carry binary fields.
func Hex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// DecodeHex parses a hex field in either case.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("condition: invalid hex: %w", err)
	}
	return b, nil
}

func predicate(minUsageCount int64) string {
	return fmt.Sprintf("usage_count >= %d", minUsageCount)
}
