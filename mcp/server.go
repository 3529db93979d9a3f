package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/extensions/idempotency"
)

// ErrVetoed is returned to the caller when a before hook blocks a tool.
var ErrVetoed = errors.New("execution blocked by hook")

// Server registers the escrow tools on an SDK server.
type Server struct {
	sdk        *mcpsdk.Server
	settlement *escrow.Settlement
	logger     *zap.Logger
	version    string

	before []BeforeExecutionHook
	after  []AfterExecutionHook
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the implementation version reported to clients.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates an MCP server exposing settlement.
func NewServer(settlement *escrow.Settlement, opts ...ServerOption) *Server {
	s := &Server{
		settlement: settlement,
		logger:     zap.NewNop(),
		version:    "1.0.0",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sdk = mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: s.version}, nil)
	s.register(ToolCreate, "Lock a settlement amount for a company behind a usage condition", s.create)
	s.register(ToolFinish, "Release a lock to the company once actual usage meets the threshold", s.finish)
	s.register(ToolCancel, "Return an expired lock to the issuer", s.cancel)
	s.register(ToolSettle, "Create a lock, then finish or cancel it depending on usage", s.settle)
	s.register(ToolDemo, "Run the finish and cancel demo scenarios", s.demo)
	s.register(ToolBalances, "Report issuer and company balances", s.balances)
	return s
}

// SDK returns the underlying SDK server.
func (s *Server) SDK() *mcpsdk.Server {
	return s.sdk
}

// SSEHandler serves the tools over the SSE transport.
func (s *Server) SSEHandler() http.Handler {
	return mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return s.sdk
	}, &mcpsdk.SSEOptions{})
}

// OnBeforeExecution registers a hook that may veto tool calls.
func (s *Server) OnBeforeExecution(hook BeforeExecutionHook) *Server {
	s.before = append(s.before, hook)
	return s
}

// OnAfterExecution registers a hook that observes tool results.
func (s *Server) OnAfterExecution(hook AfterExecutionHook) *Server {
	s.after = append(s.after, hook)
	return s
}

func (s *Server) register(name, description string, handler ToolHandler) {
	schema, _ := InputSchema(name)
	s.sdk.AddTool(&mcpsdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}, s.adapt(s.wrap(handler)))
}

// wrap runs the hooks around handler and turns handler errors into error
// results.
func (s *Server) wrap(handler ToolHandler) ToolHandler {
	return func(tc ToolContext) (ToolResult, error) {
		for _, hook := range s.before {
			proceed, err := hook(tc)
			if err != nil {
				return ErrorResult(fmt.Errorf("%w: %v", ErrVetoed, err)), nil
			}
			if !proceed {
				return ErrorResult(ErrVetoed), nil
			}
		}

		result, err := handler(tc)
		if err != nil {
			s.logger.Warn("escrow tool failed", zap.String("tool", tc.ToolName), zap.Error(err))
			result = ErrorResult(err)
		}

		for _, hook := range s.after {
			if hookErr := hook(AfterExecutionContext{ToolContext: tc, Result: result}); hookErr != nil {
				s.logger.Debug("after execution hook error", zap.String("tool", tc.ToolName), zap.Error(hookErr))
			}
		}
		return result, nil
	}
}

// adapt bridges a ToolHandler to the SDK handler signature.
func (s *Server) adapt(handler ToolHandler) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		tc := ToolContext{
			Ctx:       ctx,
			ToolName:  req.Params.Name,
			Arguments: req.Params.Arguments,
			Meta:      map[string]interface{}{},
		}
		if req.Params.Meta != nil {
			tc.Meta = req.Params.Meta.GetMeta()
		}
		if key, ok := tc.Meta[MetaIdempotencyKey].(string); ok && key != "" {
			tc.Ctx = idempotency.ContextWithKey(ctx, key)
		}

		result, err := handler(tc)
		if err != nil {
			return toSDKResult(ErrorResult(err)), nil
		}
		return toSDKResult(result), nil
	}
}
