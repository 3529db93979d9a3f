package escrow

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sangah323/MPS-XRPL/condition"
)

// Engine results the controller interprets.
const (
	EngineSuccess  = "tesSUCCESS"
	EngineNoTarget = "tecNO_TARGET"
	EngineNoEntry  = "tecNO_ENTRY"
)

const (
	TxEscrowCreate = "EscrowCreate"
	TxEscrowFinish = "EscrowFinish"
	TxEscrowCancel = "EscrowCancel"

	// DefaultCurrency is the settlement token code.
	DefaultCurrency = "MPS"

	// RippleEpochOffset is the unix time of 2000-01-01T00:00:00Z, the origin of
	// ledger timestamps.
	RippleEpochOffset int64 = 946684800

	maxSignificantDigits = 15
	minAmountExponent    = -96
	maxAmountExponent    = 80
)

// ToRippleTime converts unix seconds to ledger seconds.
func ToRippleTime(unix int64) int64 {
	return unix - RippleEpochOffset
}

// FromRippleTime converts ledger seconds to unix seconds.
func FromRippleTime(ripple int64) int64 {
	return ripple + RippleEpochOffset
}

// EncodeMemo hex-encodes free text the way ledger memos are stored.
func EncodeMemo(text string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(text)))
}

// DecodeMemo reverses EncodeMemo.
func DecodeMemo(data string) (string, error) {
	b, err := hex.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("invalid memo data: %w", err)
	}
	return string(b), nil
}

// ValidateAmount checks that amount is a positive decimal an issued-currency
// amount can carry: at most 15 significant digits within the ledger's
// exponent range.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, amount)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, amount)
	}

	coefficient := new(big.Int).Set(d.Coefficient())
	exponent := int(d.Exponent())
	ten := big.NewInt(10)
	rem := new(big.Int)
	for {
		q, r := new(big.Int).QuoRem(coefficient, ten, rem)
		if r.Sign() != 0 {
			break
		}
		coefficient = q
		exponent++
	}

	digits := len(coefficient.String())
	if digits > maxSignificantDigits {
		return decimal.Decimal{}, fmt.Errorf("%w: %q has more than %d significant digits", ErrInvalidAmount, amount, maxSignificantDigits)
	}
	// Normalized ledger mantissa has 16 digits.
	ledgerExponent := exponent - (16 - digits)
	if ledgerExponent < minAmountExponent || ledgerExponent > maxAmountExponent {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, amount)
	}
	return d, nil
}

// ValidateTimeWindow enforces cancelAfter > finishAfter > now.
func ValidateTimeWindow(finishAfter, cancelAfter, now int64) error {
	if finishAfter <= now {
		return fmt.Errorf("%w: finishAfter %d must be after now %d", ErrInvalidTimeWindow, finishAfter, now)
	}
	if cancelAfter <= finishAfter {
		return fmt.Errorf("%w: cancelAfter %d must be after finishAfter %d", ErrInvalidTimeWindow, cancelAfter, finishAfter)
	}
	return nil
}

func memos(text string) []interface{} {
	return []interface{}{
		map[string]interface{}{
			"Memo": map[string]interface{}{
				"MemoData": EncodeMemo(text),
			},
		},
	}
}

// BuildEscrowCreate builds the EscrowCreate transaction for req.
func BuildEscrowCreate(req CreateRequest) Transaction {
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	memo := req.Memo
	if memo == "" {
		memo = fmt.Sprintf("MPS Escrow Settlement - Amount: %s", req.Amount)
	}
	return Transaction{
		"TransactionType": TxEscrowCreate,
		"Account":         req.Issuer.Address,
		"Destination":     req.Recipient,
		"Amount": map[string]interface{}{
			"currency": currency,
			"issuer":   req.Issuer.Address,
			"value":    req.Amount,
		},
		"Condition":   condition.Hex(req.Condition),
		"FinishAfter": ToRippleTime(req.FinishAfter),
		"CancelAfter": ToRippleTime(req.CancelAfter),
		"Memos":       memos(memo),
	}
}

// BuildEscrowFinish builds the EscrowFinish transaction for req.
func BuildEscrowFinish(req FinishRequest) Transaction {
	memo := req.Memo
	if memo == "" {
		memo = "MPS Escrow Settlement Completed"
	}
	return Transaction{
		"TransactionType": TxEscrowFinish,
		"Account":         req.Submitter.Address,
		"Owner":           ownerOf(req.Owner, req.Submitter),
		"OfferSequence":   req.Sequence,
		"Condition":       condition.Hex(req.Condition),
		"Fulfillment":     condition.Hex(req.Fulfillment),
		"Memos":           memos(memo),
	}
}

// BuildEscrowCancel builds the EscrowCancel transaction for req.
func BuildEscrowCancel(req CancelRequest) Transaction {
	memo := req.Memo
	if memo == "" {
		memo = "MPS Escrow Settlement Cancelled"
	}
	return Transaction{
		"TransactionType": TxEscrowCancel,
		"Account":         req.Submitter.Address,
		"Owner":           ownerOf(req.Owner, req.Submitter),
		"OfferSequence":   req.Sequence,
		"Memos":           memos(memo),
	}
}

func ownerOf(owner string, submitter Wallet) string {
	if owner != "" {
		return owner
	}
	return submitter.Address
}
