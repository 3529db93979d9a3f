package condition

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeCondition_Deterministic(t *testing.T) {
	for _, n := range []int64{0, 1, 10, 999, 1 << 40} {
		a, err := EncodeCondition(n)
		if err != nil {
			t.Fatalf("EncodeCondition(%d) failed: %v", n, err)
		}
		b, err := EncodeCondition(n)
		if err != nil {
			t.Fatalf("EncodeCondition(%d) failed: %v", n, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("Expected identical bytes for %d, got %q and %q", n, a, b)
		}
	}
}

func TestEncodeCondition_Injective(t *testing.T) {
	seen := make(map[string]int64)
	for n := int64(0); n < 2000; n++ {
		c, err := EncodeCondition(n)
		if err != nil {
			t.Fatalf("EncodeCondition(%d) failed: %v", n, err)
		}
		if prev, dup := seen[string(c)]; dup {
			t.Fatalf("Thresholds %d and %d share condition %q", prev, n, c)
		}
		seen[string(c)] = n
	}
}

func TestEncodeCondition_ReferenceBytes(t *testing.T) {
	c, err := EncodeCondition(10)
	if err != nil {
		t.Fatal(err)
	}
	if got := Hex(c); got != "75736167655F636F756E74203E3D203130" {
		t.Errorf("Unexpected hex %s", got)
	}

	f, err := EncodeFulfillment(15)
	if err != nil {
		t.Fatal(err)
	}
	if string(f) != "usage_count: 15" {
		t.Errorf("Unexpected fulfillment %q", f)
	}
}

func TestEncode_RejectsNegative(t *testing.T) {
	if _, err := EncodeCondition(-1); !errors.Is(err, ErrNegativeUsageCount) {
		t.Errorf("Expected ErrNegativeUsageCount, got %v", err)
	}
	if _, err := EncodeFulfillment(-5); !errors.Is(err, ErrNegativeUsageCount) {
		t.Errorf("Expected ErrNegativeUsageCount, got %v", err)
	}
}

func TestDecodeHex(t *testing.T) {
	raw := []byte("usage_count >= 10")
	for _, s := range []string{Hex(raw), "0x" + Hex(raw), "75736167655f636f756e74203e3d203130"} {
		got, err := DecodeHex(s)
		if err != nil {
			t.Fatalf("DecodeHex(%q) failed: %v", s, err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("DecodeHex(%q) = %q", s, got)
		}
	}
	if _, err := DecodeHex("zz"); err == nil {
		t.Error("Expected error for invalid hex")
	}
}

func TestPlaintextScheme(t *testing.T) {
	s := PlaintextScheme{}
	threshold, err := NewThreshold(s, 10)
	if err != nil {
		t.Fatal(err)
	}

	proof, err := threshold.Prove(s, 15)
	if err != nil {
		t.Fatalf("Expected proof for 15 >= 10, got %v", err)
	}
	if !Verify(threshold.Encoded, proof.Encoded) {
		t.Error("Expected plaintext proof to verify")
	}

	if _, err := threshold.Prove(s, 5); !errors.Is(err, ErrThresholdNotMet) {
		t.Errorf("Expected ErrThresholdNotMet, got %v", err)
	}

	// A forged fulfillment passes because the scheme is not binding.
	forged, _ := EncodeFulfillment(10)
	if !Verify(threshold.Encoded, forged) {
		t.Error("Expected plaintext forgery to verify")
	}
	low, _ := EncodeFulfillment(9)
	if Verify(threshold.Encoded, low) {
		t.Error("Expected 9 < 10 to fail verification")
	}
}

func TestPreimageSHA256Scheme(t *testing.T) {
	s, err := NewPreimageSHA256Scheme([]byte("issuer-secret"))
	if err != nil {
		t.Fatal(err)
	}

	c1, err := s.Condition(10)
	if err != nil {
		t.Fatal(err)
	}
	c2, _ := s.Condition(10)
	if !bytes.Equal(c1, c2) {
		t.Error("Expected deterministic condition")
	}
	if len(c1) != 39 {
		t.Errorf("Expected 39-byte DER condition, got %d", len(c1))
	}
	c3, _ := s.Condition(11)
	if bytes.Equal(c1, c3) {
		t.Error("Expected distinct conditions for distinct thresholds")
	}

	f, err := s.Fulfillment(10, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(f) != 36 {
		t.Errorf("Expected 36-byte DER fulfillment, got %d", len(f))
	}
	if !Verify(c1, f) {
		t.Error("Expected fulfillment to satisfy condition")
	}
	if Verify(c3, f) {
		t.Error("Expected fulfillment for threshold 10 to fail against threshold 11")
	}

	// The plaintext fulfillment must never satisfy a hash lock.
	plain, _ := EncodeFulfillment(15)
	if Verify(c1, plain) {
		t.Error("Expected plaintext fulfillment to be rejected by hash lock")
	}

	other, _ := NewPreimageSHA256Scheme([]byte("someone-else"))
	forged, _ := other.Fulfillment(10, 15)
	if Verify(c1, forged) {
		t.Error("Expected fulfillment from another secret to be rejected")
	}

	if _, err := s.Fulfillment(10, 3); !errors.Is(err, ErrThresholdNotMet) {
		t.Errorf("Expected ErrThresholdNotMet, got %v", err)
	}
}

func TestNewPreimageSHA256Scheme_EmptySecret(t *testing.T) {
	if _, err := NewPreimageSHA256Scheme(nil); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("Expected ErrEmptySecret, got %v", err)
	}
}
