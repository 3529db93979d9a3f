// Package ledger is an in-memory stand-in for the XRPL escrow engine.
//
// It enforces what the real ledger enforces for escrows: sequence numbers per
// account, FinishAfter/CancelAfter windows, condition/fulfillment matching and
// unknown-lock rejections. Time is taken from a Clock the test controls.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/condition"
)

// Engine results produced by the simulator besides the ones escrow defines.
const (
	EngineNoPermission    = "tecNO_PERMISSION"
	EngineCryptoCondition = "tecCRYPTOCONDITION_ERROR"
	EngineBadExpiration   = "temBAD_EXPIRATION"
	EngineMalformed       = "temMALFORMED"
	EngineUnknownTxType   = "temUNKNOWN"
)

const defaultStartingSequence = 1

var engineMessages = map[string]string{
	escrow.EngineSuccess:  "The transaction was applied. Only final in a validated ledger.",
	escrow.EngineNoTarget: "Target account does not exist.",
	EngineNoPermission:    "No permission to perform requested operation.",
	EngineCryptoCondition: "Malformed or invalid crypto-condition.",
	EngineBadExpiration:   "Malformed: Bad expiration.",
	EngineMalformed:       "Malformed transaction.",
	EngineUnknownTxType:   "Unknown transaction type.",
}

// ErrNotConnected is returned by Submit and AccountInfo outside a Connect scope.
var ErrNotConnected = errors.New("ledger: not connected")

// Clock is a settable unix-seconds clock.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock creates a clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.Unix()}
}

// Now returns the current unix seconds.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += int64(d / time.Second)
}

// Entry is a lock held by the simulator.
type Entry struct {
	Owner       string
	Destination string
	Amount      escrow.IssuedAmount
	Sequence    uint32
	Condition   []byte
	FinishAfter int64
	CancelAfter int64
}

type lockKey struct {
	owner    string
	sequence uint32
}

type account struct {
	sequence uint32
	lines    map[string]decimal.Decimal
}

// Ledger implements escrow.Ledger in memory.
type Ledger struct {
	mu    sync.Mutex
	clock func() int64

	accounts map[string]*account
	locks    map[lockKey]*Entry

	open        int
	connects    int
	disconnects int
	submissions []escrow.Transaction
	txCounter   int

	// Injected failures.
	ConnectErr error
	SubmitErr  error
}

// New creates an empty ledger reading time from clock.
func New(clock func() int64) *Ledger {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Ledger{
		clock:    clock,
		accounts: make(map[string]*account),
		locks:    make(map[lockKey]*Entry),
	}
}

func (l *Ledger) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects++
	if l.ConnectErr != nil {
		return l.ConnectErr
	}
	l.open++
	return nil
}

func (l *Ledger) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects++
	if l.open > 0 {
		l.open--
	}
	return nil
}

func (l *Ledger) Submit(ctx context.Context, tx escrow.Transaction, wallet escrow.Wallet) (*escrow.SubmitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.submissions = append(l.submissions, tx)
	if l.SubmitErr != nil {
		return nil, l.SubmitErr
	}
	if l.open == 0 {
		return nil, ErrNotConnected
	}

	from, _ := tx["Account"].(string)
	if from == "" || from != wallet.Address {
		return l.result(EngineMalformed, 0), nil
	}
	acct := l.account(from)

	var code string
	var seq uint32
	switch tx.Type() {
	case escrow.TxEscrowCreate:
		code, seq = l.applyCreate(tx, acct.sequence)
	case escrow.TxEscrowFinish:
		code = l.applyFinish(tx)
	case escrow.TxEscrowCancel:
		code = l.applyCancel(tx)
	default:
		code = EngineUnknownTxType
	}

	// tec results still consume a sequence; tem results never reach a ledger.
	if code == escrow.EngineSuccess || strings.HasPrefix(code, "tec") {
		acct.sequence++
	}
	return l.result(code, seq), nil
}

func (l *Ledger) AccountInfo(ctx context.Context, address string) (*escrow.AccountState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open == 0 {
		return nil, ErrNotConnected
	}
	acct := l.account(address)
	state := &escrow.AccountState{
		Address:    address,
		Sequence:   acct.sequence,
		XRPBalance: "1000",
	}
	for key, value := range acct.lines {
		currency, issuer := splitLine(key)
		state.Lines = append(state.Lines, escrow.TrustLineBalance{Currency: currency, Issuer: issuer, Value: value.String()})
	}
	return state, nil
}

func (l *Ledger) applyCreate(tx escrow.Transaction, sequence uint32) (string, uint32) {
	owner, _ := tx["Account"].(string)
	destination, _ := tx["Destination"].(string)
	amount, ok := issuedAmount(tx["Amount"])
	if destination == "" || !ok {
		return EngineMalformed, 0
	}
	if _, err := decimal.NewFromString(amount.Value); err != nil {
		return EngineMalformed, 0
	}
	cond, err := hexField(tx, "Condition")
	if err != nil || len(cond) == 0 {
		return EngineMalformed, 0
	}
	finishAfter, okF := int64Field(tx, "FinishAfter")
	cancelAfter, okC := int64Field(tx, "CancelAfter")
	if !okF || !okC || cancelAfter <= finishAfter {
		return EngineBadExpiration, 0
	}
	finishAfter = escrow.FromRippleTime(finishAfter)
	cancelAfter = escrow.FromRippleTime(cancelAfter)
	if cancelAfter <= l.clock() {
		return EngineNoPermission, 0
	}

	l.locks[lockKey{owner, sequence}] = &Entry{
		Owner:       owner,
		Destination: destination,
		Amount:      amount,
		Sequence:    sequence,
		Condition:   cond,
		FinishAfter: finishAfter,
		CancelAfter: cancelAfter,
	}
	return escrow.EngineSuccess, sequence
}

func (l *Ledger) applyFinish(tx escrow.Transaction) string {
	key, ok := offerKey(tx)
	if !ok {
		return EngineMalformed
	}
	entry, ok := l.locks[key]
	if !ok {
		return escrow.EngineNoTarget
	}
	now := l.clock()
	if now <= entry.FinishAfter || now > entry.CancelAfter {
		return EngineNoPermission
	}
	cond, err := hexField(tx, "Condition")
	if err != nil || string(cond) != string(entry.Condition) {
		return EngineCryptoCondition
	}
	fulfillment, err := hexField(tx, "Fulfillment")
	if err != nil || !condition.Verify(cond, fulfillment) {
		return EngineCryptoCondition
	}

	delete(l.locks, key)
	dest := l.account(entry.Destination)
	line := lineKey(entry.Amount.Currency, entry.Amount.Issuer)
	value, _ := decimal.NewFromString(entry.Amount.Value)
	dest.lines[line] = dest.lines[line].Add(value)
	return escrow.EngineSuccess
}

func (l *Ledger) applyCancel(tx escrow.Transaction) string {
	key, ok := offerKey(tx)
	if !ok {
		return EngineMalformed
	}
	entry, ok := l.locks[key]
	if !ok {
		return escrow.EngineNoTarget
	}
	if l.clock() <= entry.CancelAfter {
		return EngineNoPermission
	}
	delete(l.locks, key)
	return escrow.EngineSuccess
}

func (l *Ledger) result(code string, sequence uint32) *escrow.SubmitResult {
	l.txCounter++
	return &escrow.SubmitResult{
		EngineResult:        code,
		EngineResultMessage: engineMessages[code],
		Hash:                fmt.Sprintf("%064X", l.txCounter),
		Sequence:            sequence,
	}
}

func (l *Ledger) account(address string) *account {
	acct, ok := l.accounts[address]
	if !ok {
		acct = &account{sequence: defaultStartingSequence, lines: make(map[string]decimal.Decimal)}
		l.accounts[address] = acct
	}
	return acct
}

// ============================================================================
// Inspection
// ============================================================================

// Lock returns the open lock at (owner, sequence).
func (l *Ledger) Lock(owner string, sequence uint32) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[lockKey{owner, sequence}]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// OpenLocks returns the number of locks not yet finished or cancelled.
func (l *Ledger) OpenLocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Balance returns the issued-currency balance of address.
func (l *Ledger) Balance(address, currency, issuer string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account(address).lines[lineKey(currency, issuer)]
}

// Submissions returns every transaction handed to Submit, in order.
func (l *Ledger) Submissions() []escrow.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]escrow.Transaction(nil), l.submissions...)
}

// SubmitCount returns how many times Submit was called.
func (l *Ledger) SubmitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.submissions)
}

// ConnectCount returns how many times Connect was called.
func (l *Ledger) ConnectCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects
}

// DisconnectCount returns how many times Disconnect was called.
func (l *Ledger) DisconnectCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnects
}

// OpenConnections returns Connect calls not yet matched by Disconnect.
func (l *Ledger) OpenConnections() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// ============================================================================
// Field helpers
// ============================================================================

func offerKey(tx escrow.Transaction) (lockKey, bool) {
	owner, _ := tx["Owner"].(string)
	seq, ok := int64Field(tx, "OfferSequence")
	if owner == "" || !ok || seq < 0 {
		return lockKey{}, false
	}
	return lockKey{owner, uint32(seq)}, true
}

func int64Field(tx escrow.Transaction, name string) (int64, bool) {
	switch v := tx[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func hexField(tx escrow.Transaction, name string) ([]byte, error) {
	s, _ := tx[name].(string)
	return condition.DecodeHex(s)
}

func issuedAmount(v interface{}) (escrow.IssuedAmount, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return escrow.IssuedAmount{}, false
	}
	amount := escrow.IssuedAmount{}
	amount.Currency, _ = m["currency"].(string)
	amount.Issuer, _ = m["issuer"].(string)
	amount.Value, _ = m["value"].(string)
	return amount, amount.Currency != "" && amount.Issuer != "" && amount.Value != ""
}

func lineKey(currency, issuer string) string {
	return currency + "/" + issuer
}

func splitLine(key string) (string, string) {
	currency, issuer, _ := strings.Cut(key, "/")
	return currency, issuer
}
