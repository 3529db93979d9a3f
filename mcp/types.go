package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Tool names.
const (
	ToolCreate   = "escrow_create"
	ToolFinish   = "escrow_finish"
	ToolCancel   = "escrow_cancel"
	ToolSettle   = "escrow_settle"
	ToolDemo     = "escrow_demo"
	ToolBalances = "escrow_balances"
)

// ServerName is reported to clients during initialization.
const ServerName = "mps-escrow"

// MetaIdempotencyKey is the _meta field carrying a caller's idempotency key.
const MetaIdempotencyKey = "idempotencyKey"

// ToolContext provides context during tool execution
type ToolContext struct {
	Ctx       context.Context
	ToolName  string
	Arguments json.RawMessage
	Meta      map[string]interface{}
}

// ToolResult is the transport-neutral form of a tool reply.
type ToolResult struct {
	Content []ContentItem
	IsError bool
}

// ContentItem is a single text content item.
type ContentItem struct {
	Type string
	Text string
}

// Text joins every text item.
func (r ToolResult) Text() string {
	var buf bytes.Buffer
	for _, item := range r.Content {
		buf.WriteString(item.Text)
	}
	return buf.String()
}

// ToolHandler is the signature for escrow tool handlers.
type ToolHandler func(ctx ToolContext) (ToolResult, error)

// BeforeExecutionHook runs before a tool. Returning false, or an error, vetoes
// the call.
type BeforeExecutionHook func(ctx ToolContext) (bool, error)

// AfterExecutionContext extends ToolContext with the result.
type AfterExecutionContext struct {
	ToolContext
	Result ToolResult
}

// AfterExecutionHook observes a finished tool call. Errors are logged only.
type AfterExecutionHook func(ctx AfterExecutionContext) error

// CreateArgs are the escrow_create arguments.
type CreateArgs struct {
	CompanyID        string `json:"companyId"`
	UsageCount       int64  `json:"usageCount"`
	SettlementAmount Amount `json:"settlementAmount"`
}

// FinishArgs are the escrow_finish arguments.
type FinishArgs struct {
	EscrowSequence   uint32 `json:"escrowSequence"`
	Condition        string `json:"condition"`
	ActualUsageCount int64  `json:"actualUsageCount"`
}

// CancelArgs are the escrow_cancel arguments.
type CancelArgs struct {
	EscrowSequence uint32 `json:"escrowSequence"`
	Reason         string `json:"reason,omitempty"`
}

// SettleArgs are the escrow_settle arguments.
type SettleArgs struct {
	CompanyID        string `json:"companyId"`
	UsageCount       int64  `json:"usageCount"`
	SettlementAmount Amount `json:"settlementAmount"`
}

// Amount accepts a JSON string or number.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = Amount(n.String())
	return nil
}
