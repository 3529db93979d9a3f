// Package xrpl is a minimal client for the rippled WebSocket API covering what
// the escrow controller needs: sign-and-submit, account_info and
// account_lines.
package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
)

// DefaultURL is the public devnet endpoint.
const DefaultURL = "wss://s.devnet.rippletest.net:51233"

const defaultTimeout = 30 * time.Second

var (
	ErrNotConnected = errors.New("xrpl: not connected")
	ErrMissingSeed  = errors.New("xrpl: wallet seed is required to sign")
)

// Client implements escrow.Ledger over a single WebSocket connection.
//
// Connect and Disconnect are reference counted so concurrent request scopes
// can share one client: the socket is dialed by the first Connect and closed
// by the last matching Disconnect. Requests are serialized. A socket that
// fails mid-request is dropped and redialed by the next request of any scope
// still open.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	refs   int
	nextID uint64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithTimeout bounds each request when ctx carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for url. An empty url selects DefaultURL.
func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:     url,
		dialer:  websocket.DefaultDialer,
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string { return c.url }

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			return err
		}
	}
	c.refs++
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return nil
	}
	c.refs--
	if c.refs > 0 || c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	c.logger.Debug("ledger disconnected", zap.String("url", c.url))
	return err
}

func (c *Client) dialLocked(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("xrpl: dial %s: %w", c.url, err)
	}
	c.conn = conn
	c.logger.Debug("ledger connected", zap.String("url", c.url))
	return nil
}

// dropLocked discards a socket that failed mid-request. The connection
// is unusable after a read or write error, so open scopes redial on their
// next request.
func (c *Client) dropLocked(cause error) {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.logger.Warn("ledger connection dropped", zap.String("url", c.url), zap.Error(cause))
}

// Submit signs tx with the wallet seed on the server and submits it.
func (c *Client) Submit(ctx context.Context, tx escrow.Transaction, wallet escrow.Wallet) (*escrow.SubmitResult, error) {
	if wallet.Seed == "" {
		return nil, ErrMissingSeed
	}
	raw, err := c.request(ctx, map[string]interface{}{
		"command": "submit",
		"tx_json": tx,
		"secret":  wallet.Seed,
	})
	if err != nil {
		return nil, err
	}

	var res submitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("xrpl: decode submit result: %w", err)
	}
	c.logger.Debug("transaction submitted",
		zap.String("type", tx.Type()),
		zap.String("engine_result", res.EngineResult),
		zap.String("tx_hash", res.TxJSON.Hash),
	)
	return &escrow.SubmitResult{
		EngineResult:        res.EngineResult,
		EngineResultMessage: res.EngineResultMessage,
		Hash:                res.TxJSON.Hash,
		Sequence:            res.TxJSON.Sequence,
	}, nil
}

// AccountInfo returns the validated account root plus its trust-line balances.
func (c *Client) AccountInfo(ctx context.Context, address string) (*escrow.AccountState, error) {
	raw, err := c.request(ctx, map[string]interface{}{
		"command":      "account_info",
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		return nil, err
	}
	var info accountInfoResult
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("xrpl: decode account_info: %w", err)
	}

	state := &escrow.AccountState{
		Address:    info.AccountData.Account,
		Sequence:   info.AccountData.Sequence,
		XRPBalance: dropsToXRP(info.AccountData.Balance),
	}

	lines, err := c.AccountLines(ctx, address)
	if err != nil {
		return nil, err
	}
	state.Lines = lines
	return state, nil
}

// AccountLines returns the issued-currency balances held by address.
func (c *Client) AccountLines(ctx context.Context, address string) ([]escrow.TrustLineBalance, error) {
	raw, err := c.request(ctx, map[string]interface{}{
		"command":      "account_lines",
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		return nil, err
	}
	var res accountLinesResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("xrpl: decode account_lines: %w", err)
	}
	lines := make([]escrow.TrustLineBalance, 0, len(res.Lines))
	for _, l := range res.Lines {
		lines = append(lines, escrow.TrustLineBalance{Currency: l.Currency, Issuer: l.Account, Value: l.Balance})
	}
	return lines, nil
}

// request sends payload and waits for the reply carrying the same id.
// Unsolicited stream messages are skipped.
func (c *Client) request(ctx context.Context, payload map[string]interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return nil, ErrNotConnected
	}
	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			return nil, err
		}
	}
	command, _ := payload["command"].(string)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.dropLocked(err)
		return nil, fmt.Errorf("xrpl: send %s: %w", command, err)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		c.dropLocked(err)
		return nil, fmt.Errorf("xrpl: read %s: %w", command, err)
	}

	c.nextID++
	id := c.nextID
	payload["id"] = id
	if err := c.conn.WriteJSON(payload); err != nil {
		c.dropLocked(err)
		return nil, fmt.Errorf("xrpl: send %s: %w", command, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			// The reply may still arrive; id matching skips it later.
			return nil, err
		}
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.dropLocked(err)
			return nil, fmt.Errorf("xrpl: read %s: %w", command, err)
		}
		if resp.Type != "" && resp.Type != "response" {
			continue
		}
		if resp.ID != id {
			c.logger.Debug("skipping reply for another request", zap.Uint64("id", resp.ID))
			continue
		}
		if resp.Status == "error" || resp.Error != "" {
			return nil, &RPCError{Command: command, Code: resp.Error, Message: resp.ErrorMessage}
		}
		return resp.Result, nil
	}
}

func dropsToXRP(drops string) string {
	d, err := decimal.NewFromString(drops)
	if err != nil {
		return drops
	}
	return d.Shift(-6).String()
}
