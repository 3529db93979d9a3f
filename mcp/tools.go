package mcp

import (
	escrow "github.com/sangah323/MPS-XRPL"
)

func (s *Server) create(tc ToolContext) (ToolResult, error) {
	var args CreateArgs
	if err := decodeArguments(ToolCreate, tc.Arguments, &args); err != nil {
		return ToolResult{}, err
	}
	res, err := s.settlement.CreateSettlementEscrow(tc.Ctx, args.CompanyID, args.UsageCount, string(args.SettlementAmount))
	if err != nil {
		return ToolResult{}, err
	}
	return SuccessResult(res)
}

func (s *Server) finish(tc ToolContext) (ToolResult, error) {
	var args FinishArgs
	if err := decodeArguments(ToolFinish, tc.Arguments, &args); err != nil {
		return ToolResult{}, err
	}
	res, err := s.settlement.FinishSettlementEscrow(tc.Ctx, args.EscrowSequence, args.Condition, args.ActualUsageCount)
	if err != nil {
		return ToolResult{}, err
	}
	return SuccessResult(res)
}

func (s *Server) cancel(tc ToolContext) (ToolResult, error) {
	var args CancelArgs
	if err := decodeArguments(ToolCancel, tc.Arguments, &args); err != nil {
		return ToolResult{}, err
	}
	res, err := s.settlement.CancelSettlementEscrow(tc.Ctx, args.EscrowSequence, args.Reason)
	if err != nil {
		return ToolResult{}, err
	}
	return SuccessResult(res)
}

// settleReply is the escrow_settle payload.
type settleReply struct {
	*escrow.Workflow
	Status escrow.Status `json:"status"`
}

func (s *Server) settle(tc ToolContext) (ToolResult, error) {
	var args SettleArgs
	if err := decodeArguments(ToolSettle, tc.Arguments, &args); err != nil {
		return ToolResult{}, err
	}
	wf, err := s.settlement.Settle(tc.Ctx, args.CompanyID, args.UsageCount, string(args.SettlementAmount))
	if err != nil {
		return ToolResult{}, err
	}
	return SuccessResult(settleReply{Workflow: wf, Status: wf.Status()})
}

// scenarioReply is one escrow_demo scenario.
type scenarioReply struct {
	Workflow *escrow.Workflow `json:"workflow,omitempty"`
	Status   escrow.Status    `json:"status,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func newScenarioReply(sc escrow.DemoScenario) scenarioReply {
	r := scenarioReply{Workflow: sc.Workflow, Status: sc.Workflow.Status()}
	if sc.Err != nil {
		r.Error = sc.Err.Error()
	}
	return r
}

func (s *Server) demo(tc ToolContext) (ToolResult, error) {
	if err := ValidateArguments(ToolDemo, tc.Arguments); err != nil {
		return ToolResult{}, err
	}
	res, err := s.settlement.Demo(tc.Ctx)
	if err != nil {
		return ToolResult{}, err
	}
	return SuccessResult(map[string]scenarioReply{
		"scenario1": newScenarioReply(res.Scenario1),
		"scenario2": newScenarioReply(res.Scenario2),
	})
}

func (s *Server) balances(tc ToolContext) (ToolResult, error) {
	if err := ValidateArguments(ToolBalances, tc.Arguments); err != nil {
		return ToolResult{}, err
	}
	balances, err := s.settlement.Balances(tc.Ctx)
	if err != nil {
		return ToolResult{}, err
	}
	return SuccessResult(map[string]interface{}{"balances": balances})
}
