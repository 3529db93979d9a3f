package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/extensions/idempotency"
)

// ToolError is a tool call that completed with IsError set.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// IsToolError reports whether err is a ToolError.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}

// Client calls the escrow tools over a connected SDK session.
type Client struct {
	session *mcpsdk.ClientSession
}

// NewClient wraps a connected session.
func NewClient(session *mcpsdk.ClientSession) *Client {
	return &Client{session: session}
}

// Session returns the underlying session.
func (c *Client) Session() *mcpsdk.ClientSession {
	return c.session
}

// Close closes the session.
func (c *Client) Close() error {
	return c.session.Close()
}

// CallTool invokes a tool and returns its raw result. An idempotency key on
// ctx is forwarded in _meta.
func (c *Client) CallTool(ctx context.Context, name string, args interface{}) (ToolResult, error) {
	params := &mcpsdk.CallToolParams{Name: name, Arguments: args}
	if args == nil {
		params.Arguments = map[string]interface{}{}
	}
	if key, ok := idempotency.KeyFromContext(ctx); ok {
		params.Meta = mcpsdk.Meta{MetaIdempotencyKey: key}
	}
	result, err := c.session.CallTool(ctx, params)
	if err != nil {
		return ToolResult{}, err
	}
	return fromSDKResult(result), nil
}

// call invokes a tool and decodes a successful reply into out.
func (c *Client) call(ctx context.Context, name string, args interface{}, out interface{}) error {
	result, err := c.CallTool(ctx, name, args)
	if err != nil {
		return err
	}
	if result.IsError {
		var reply struct {
			Error string `json:"error"`
		}
		if decodeErr := DecodeResult(result, &reply); decodeErr != nil || reply.Error == "" {
			return &ToolError{Tool: name, Message: result.Text()}
		}
		return &ToolError{Tool: name, Message: reply.Error}
	}
	return DecodeResult(result, out)
}

// Create calls escrow_create.
func (c *Client) Create(ctx context.Context, companyID string, usageCount int64, settlementAmount string) (*escrow.CreateResult, error) {
	var out escrow.CreateResult
	args := CreateArgs{CompanyID: companyID, UsageCount: usageCount, SettlementAmount: Amount(settlementAmount)}
	if err := c.call(ctx, ToolCreate, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Finish calls escrow_finish.
func (c *Client) Finish(ctx context.Context, sequence uint32, conditionHex string, actualUsageCount int64) (*escrow.FinishResult, error) {
	var out escrow.FinishResult
	args := FinishArgs{EscrowSequence: sequence, Condition: conditionHex, ActualUsageCount: actualUsageCount}
	if err := c.call(ctx, ToolFinish, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel calls escrow_cancel.
func (c *Client) Cancel(ctx context.Context, sequence uint32, reason string) (*escrow.CancelResult, error) {
	var out escrow.CancelResult
	if err := c.call(ctx, ToolCancel, CancelArgs{EscrowSequence: sequence, Reason: reason}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SettleReply is the decoded escrow_settle reply.
type SettleReply struct {
	escrow.Workflow
	Status escrow.Status `json:"status"`
}

// Settle calls escrow_settle.
func (c *Client) Settle(ctx context.Context, companyID string, usageCount int64, settlementAmount string) (*SettleReply, error) {
	var out SettleReply
	args := SettleArgs{CompanyID: companyID, UsageCount: usageCount, SettlementAmount: Amount(settlementAmount)}
	if err := c.call(ctx, ToolSettle, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DemoReply is the decoded escrow_demo reply.
type DemoReply struct {
	Scenario1 ScenarioReply `json:"scenario1"`
	Scenario2 ScenarioReply `json:"scenario2"`
}

// ScenarioReply is one decoded demo scenario.
type ScenarioReply struct {
	Workflow *escrow.Workflow `json:"workflow"`
	Status   escrow.Status    `json:"status"`
	Error    string           `json:"error"`
}

// Demo calls escrow_demo.
func (c *Client) Demo(ctx context.Context) (*DemoReply, error) {
	var out DemoReply
	if err := c.call(ctx, ToolDemo, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balances calls escrow_balances.
func (c *Client) Balances(ctx context.Context) (map[string]*escrow.AccountState, error) {
	var out struct {
		Balances map[string]*escrow.AccountState `json:"balances"`
	}
	if err := c.call(ctx, ToolBalances, nil, &out); err != nil {
		return nil, err
	}
	return out.Balances, nil
}
