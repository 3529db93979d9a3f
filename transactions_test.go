package escrow

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRippleTime(t *testing.T) {
	if got := ToRippleTime(RippleEpochOffset); got != 0 {
		t.Errorf("ToRippleTime(epoch) = %d, want 0", got)
	}
	if got := FromRippleTime(ToRippleTime(testNow)); got != testNow {
		t.Errorf("round trip = %d, want %d", got, testNow)
	}
}

func TestMemoRoundTrip(t *testing.T) {
	encoded := EncodeMemo("MPS Escrow Settlement Completed")
	decoded, err := DecodeMemo(encoded)
	if err != nil {
		t.Fatalf("DecodeMemo: %v", err)
	}
	if decoded != "MPS Escrow Settlement Completed" {
		t.Errorf("decoded = %q", decoded)
	}
	if _, err := DecodeMemo("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestValidateAmount(t *testing.T) {
	valid := []string{"50", "30", "0.5", "1000000", "123456789012345", "1e-80"}
	for _, a := range valid {
		if _, err := ValidateAmount(a); err != nil {
			t.Errorf("ValidateAmount(%q) unexpected error: %v", a, err)
		}
	}

	invalid := []string{"", "0", "-1", "abc", "1234567890123456", "1e-100", "1e96"}
	for _, a := range invalid {
		_, err := ValidateAmount(a)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ValidateAmount(%q) = %v, want ErrInvalidAmount", a, err)
		}
	}
}

func TestValidateTimeWindow(t *testing.T) {
	tests := []struct {
		name    string
		finish  int64
		cancel  int64
		wantErr bool
	}{
		{"ordered", testNow + 1, testNow + 2, false},
		{"finish not in future", testNow, testNow + 10, true},
		{"cancel before finish", testNow + 10, testNow + 5, true},
		{"equal", testNow + 10, testNow + 10, true},
	}
	for _, tt := range tests {
		err := ValidateTimeWindow(tt.finish, tt.cancel, testNow)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTimeWindow) {
			t.Errorf("%s: err = %v, want ErrInvalidTimeWindow", tt.name, err)
		}
	}
}

func TestBuildEscrowCreate(t *testing.T) {
	tx := BuildEscrowCreate(CreateRequest{
		Issuer:      testIssuer,
		Recipient:   "rCompanyB",
		Amount:      "30",
		Condition:   testCond,
		FinishAfter: testNow + 3600,
		CancelAfter: testNow + 86400,
	})

	want := Transaction{
		"TransactionType": TxEscrowCreate,
		"Account":         "rMPSissuer",
		"Destination":     "rCompanyB",
		"Amount": map[string]interface{}{
			"currency": "MPS",
			"issuer":   "rMPSissuer",
			"value":    "30",
		},
		"Condition":   "75736167655F636F756E74203E3D203130",
		"FinishAfter": testNow + 3600 - RippleEpochOffset,
		"CancelAfter": testNow + 86400 - RippleEpochOffset,
		"Memos": []interface{}{
			map[string]interface{}{
				"Memo": map[string]interface{}{
					"MemoData": EncodeMemo("MPS Escrow Settlement - Amount: 30"),
				},
			},
		},
	}
	if diff := cmp.Diff(want, tx); diff != "" {
		t.Errorf("EscrowCreate mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEscrowCancel(t *testing.T) {
	tx := BuildEscrowCancel(CancelRequest{Submitter: testIssuer, Sequence: 5, Reason: "not in tx"})

	if tx.Type() != TxEscrowCancel {
		t.Errorf("type = %q", tx.Type())
	}
	if tx["Owner"] != "rMPSissuer" {
		t.Errorf("Owner = %v, want submitter address", tx["Owner"])
	}
	if _, ok := tx["Reason"]; ok {
		t.Error("reason must not reach the ledger")
	}
	memo := tx["Memos"].([]interface{})[0].(map[string]interface{})["Memo"].(map[string]interface{})["MemoData"]
	if memo != EncodeMemo("MPS Escrow Settlement Cancelled") {
		t.Errorf("memo = %v", memo)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	created := Created{Lock: Lock{Sequence: 9, Condition: testCond}, TxHash: "C1"}
	if created.Status().IsTerminal() {
		t.Error("Created must not be terminal")
	}

	finished := created.Finish(FinishResult{TxHash: "F1", Sequence: 9}, []byte("usage_count: 12"))
	if finished.Status() != StatusFinished || !finished.Status().IsTerminal() {
		t.Errorf("finished status = %s", finished.Status())
	}
	if finished.Sequence() != 9 || finished.CreateTxHash != "C1" || finished.TxHash != "F1" {
		t.Errorf("unexpected finished state %+v", finished)
	}
	if created.Lock.Fulfillment != nil {
		t.Error("Finish must not mutate the Created value")
	}

	cancelled := created.Cancel(CancelResult{TxHash: "X1", Sequence: 9}, "expired")
	if cancelled.Status() != StatusCancelled || cancelled.Reason != "expired" {
		t.Errorf("unexpected cancelled state %+v", cancelled)
	}

	states := []LockState{created, finished, cancelled}
	for _, s := range states {
		if s.Sequence() != 9 {
			t.Errorf("%s sequence = %d", s.Status(), s.Sequence())
		}
	}
}
