package condition

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

const (
	SchemePlaintext      = "plaintext"
	SchemePreimageSHA256 = "preimage-sha-256"
)

// DER framing for a PREIMAGE-SHA-256 crypto-condition with a 32-byte preimage.
var (
	conditionPrefix   = []byte{0xA0, 0x25, 0x80, 0x20}
	conditionSuffix   = []byte{0x81, 0x01, 0x20}
	fulfillmentPrefix = []byte{0xA0, 0x22, 0x80, 0x20}
)

// PlaintextScheme is the reference encoding. Demo networks only.
type PlaintextScheme struct{}

func (PlaintextScheme) Name() string { return SchemePlaintext }

func (PlaintextScheme) Condition(minUsageCount int64) ([]byte, error) {
	return EncodeCondition(minUsageCount)
}

func (PlaintextScheme) Fulfillment(minUsageCount, actualUsageCount int64) ([]byte, error) {
	if err := checkThreshold(minUsageCount, actualUsageCount); err != nil {
		return nil, err
	}
	return EncodeFulfillment(actualUsageCount)
}

// PreimageSHA256Scheme derives a 32-byte preimage per threshold from a secret
// held by the issuer. The condition commits to sha256(preimage) and reveals
// nothing about it.
type PreimageSHA256Scheme struct {
	secret []byte
}

// NewPreimageSHA256Scheme creates a binding scheme keyed by secret.
func NewPreimageSHA256Scheme(secret []byte) (*PreimageSHA256Scheme, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &PreimageSHA256Scheme{secret: append([]byte(nil), secret...)}, nil
}

func (s *PreimageSHA256Scheme) Name() string { return SchemePreimageSHA256 }

func (s *PreimageSHA256Scheme) Condition(minUsageCount int64) ([]byte, error) {
	preimage, err := s.preimage(minUsageCount)
	if err != nil {
		return nil, err
	}
	fingerprint := sha256.Sum256(preimage)

	out := make([]byte, 0, len(conditionPrefix)+len(fingerprint)+len(conditionSuffix))
	out = append(out, conditionPrefix...)
	out = append(out, fingerprint[:]...)
	out = append(out, conditionSuffix...)
	return out, nil
}

func (s *PreimageSHA256Scheme) Fulfillment(minUsageCount, actualUsageCount int64) ([]byte, error) {
	if err := checkThreshold(minUsageCount, actualUsageCount); err != nil {
		return nil, err
	}
	preimage, err := s.preimage(minUsageCount)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(fulfillmentPrefix)+len(preimage))
	out = append(out, fulfillmentPrefix...)
	out = append(out, preimage...)
	return out, nil
}

func (s *PreimageSHA256Scheme) preimage(minUsageCount int64) ([]byte, error) {
	if minUsageCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeUsageCount, minUsageCount)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(predicate(minUsageCount)))
	return mac.Sum(nil), nil
}

// Verify reports whether fulfillment satisfies condition under the rules the
// ledger applies. PREIMAGE-SHA-256 conditions are checked cryptographically;
// plaintext conditions are checked by parsing both predicates.
func Verify(conditionBytes, fulfillmentBytes []byte) bool {
	if bytes.HasPrefix(conditionBytes, conditionPrefix) {
		return verifyPreimage(conditionBytes, fulfillmentBytes)
	}
	minUsage, ok := parseCount(string(conditionBytes), "usage_count >= ")
	if !ok {
		return false
	}
	actual, ok := parseCount(string(fulfillmentBytes), "usage_count: ")
	if !ok {
		return false
	}
	return actual >= minUsage
}

func verifyPreimage(conditionBytes, fulfillmentBytes []byte) bool {
	if len(conditionBytes) != len(conditionPrefix)+sha256.Size+len(conditionSuffix) {
		return false
	}
	if !bytes.HasSuffix(conditionBytes, conditionSuffix) {
		return false
	}
	if len(fulfillmentBytes) != len(fulfillmentPrefix)+32 || !bytes.HasPrefix(fulfillmentBytes, fulfillmentPrefix) {
		return false
	}
	fingerprint := sha256.Sum256(fulfillmentBytes[len(fulfillmentPrefix):])
	want := conditionBytes[len(conditionPrefix) : len(conditionPrefix)+sha256.Size]
	return hmac.Equal(fingerprint[:], want)
}

func parseCount(s, prefix string) (int64, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(s, prefix), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func checkThreshold(minUsageCount, actualUsageCount int64) error {
	if minUsageCount < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeUsageCount, minUsageCount)
	}
	if actualUsageCount < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeUsageCount, actualUsageCount)
	}
	if actualUsageCount < minUsageCount {
		return fmt.Errorf("%w: %d < %d", ErrThresholdNotMet, actualUsageCount, minUsageCount)
	}
	return nil
}
