// Package gin exposes the escrow settlement workflow over HTTP.
package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/usage"
)

const defaultRequestTimeout = 60 * time.Second

// Handler serves the escrow routes backed by a Settlement.
type Handler struct {
	settlement *escrow.Settlement
	options    *HandlerOptions
}

// NewHandler creates the handler set.
func NewHandler(settlement *escrow.Settlement, opts ...Options) *Handler {
	options := &HandlerOptions{
		Logger:         zap.NewNop(),
		RequestTimeout: defaultRequestTimeout,
		APIPrefix:      "/api",
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &Handler{settlement: settlement, options: options}
}

// NewRouter builds an engine with recovery, request ids, request logging and
// idempotency keys, and registers every route.
func NewRouter(settlement *escrow.Settlement, opts ...Options) *gin.Engine {
	h := NewHandler(settlement, opts...)

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(h.options.Logger), IdempotencyKey())
	h.Register(r)
	if h.options.APIPrefix != "" {
		h.Register(r.Group(h.options.APIPrefix))
	}
	return r
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/escrow/create", h.Create)
	r.POST("/escrow/finish", h.Finish)
	r.POST("/escrow/cancel", h.Cancel)
	r.GET("/escrow/demo", h.Demo)
	r.GET("/balances", h.Balances)
	r.GET("/real-balances", h.Balances)
	r.POST("/settlements/process", h.ProcessSettlement)
	r.POST("/process-settlement", h.ProcessSettlement)
	r.POST("/rewards/eligible", h.EligibleRewards)
	r.GET("/health", h.Health)
}

// Amount accepts either a JSON string or a JSON number.
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

// CreateRequest is the body of POST /escrow/create.
type CreateRequest struct {
	CompanyID        string `json:"companyId" binding:"required"`
	UsageCount       int64  `json:"usageCount"`
	SettlementAmount Amount `json:"settlementAmount" binding:"required"`
}

// FinishRequest is the body of POST /escrow/finish.
type FinishRequest struct {
	EscrowSequence   uint32 `json:"escrowSequence" binding:"required"`
	Condition        string `json:"condition" binding:"required"`
	ActualUsageCount int64  `json:"actualUsageCount"`
}

// CancelRequest is the body of POST /escrow/cancel.
type CancelRequest struct {
	EscrowSequence uint32 `json:"escrowSequence" binding:"required"`
	Reason         string `json:"reason"`
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.settlement.CreateSettlementEscrow(ctx, req.CompanyID, req.UsageCount, string(req.SettlementAmount))
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	c.JSON(http.StatusOK, success(res))
}

func (h *Handler) Finish(c *gin.Context) {
	var req FinishRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.settlement.FinishSettlementEscrow(ctx, req.EscrowSequence, req.Condition, req.ActualUsageCount)
	if err != nil {
		h.fail(c, "finish", err)
		return
	}
	c.JSON(http.StatusOK, success(res))
}

func (h *Handler) Cancel(c *gin.Context) {
	var req CancelRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.settlement.CancelSettlementEscrow(ctx, req.EscrowSequence, req.Reason)
	if err != nil {
		h.fail(c, "cancel", err)
		return
	}
	c.JSON(http.StatusOK, success(res))
}

func (h *Handler) Demo(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.settlement.Demo(ctx)
	if err != nil {
		h.fail(c, "demo", err)
		return
	}

	s1, s2 := res.Scenario1, res.Scenario2
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"demo": gin.H{
			"scenario1": gin.H{
				"create": createStep(s1),
				"finish": finishStep(s1),
			},
			"scenario2": gin.H{
				"create": createStep(s2),
				"cancel": cancelStep(s2),
			},
		},
		"summary": gin.H{
			"message": "XRPL escrow MPS settlement demo completed",
			"results": []string{
				"Usage threshold met: escrow finished, settlement paid",
				"Usage threshold not met: escrow cancelled, funds returned",
				"Every step is recorded on the XRP Ledger",
			},
		},
	})
}

func (h *Handler) Balances(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	balances, err := h.settlement.Balances(ctx)
	if err != nil {
		h.fail(c, "balances", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "balances": balances})
}

// ProcessSettlementRequest carries usage either as counts per company, as raw
// usage records, or in the dashboard's companyAUsage/companyBUsage form.
type ProcessSettlementRequest struct {
	Usage         map[string]int64 `json:"usage"`
	Records       []RecordInput    `json:"records"`
	CompanyAUsage *int64           `json:"companyAUsage"`
	CompanyBUsage *int64           `json:"companyBUsage"`
	Rate          Amount           `json:"rate"`
}

// RecordInput is a usage record with its duration in seconds.
type RecordInput struct {
	CompanyID string `json:"companyId"`
	TrackID   string `json:"trackId"`
	Duration  int64  `json:"duration"`
}

func (r ProcessSettlementRequest) counts() map[string]int64 {
	counts := make(map[string]int64)
	if len(r.Records) > 0 {
		records := make([]usage.Record, 0, len(r.Records))
		for _, in := range r.Records {
			records = append(records, usage.Record{
				CompanyID: in.CompanyID,
				TrackID:   in.TrackID,
				Duration:  time.Duration(in.Duration) * time.Second,
			})
		}
		for company, n := range usage.Count(records) {
			counts[company] += n
		}
	}
	for company, n := range r.Usage {
		counts[company] += n
	}
	if r.CompanyAUsage != nil {
		counts["A"] += *r.CompanyAUsage
	}
	if r.CompanyBUsage != nil {
		counts["B"] += *r.CompanyBUsage
	}
	return counts
}

// ProcessSettlement prices usage at the settlement rate. Nothing is submitted.
func (h *Handler) ProcessSettlement(c *gin.Context) {
	var req ProcessSettlementRequest
	if !h.bind(c, &req) {
		return
	}
	rate := usage.DefaultRate
	if req.Rate != "" {
		r, err := decimal.NewFromString(string(req.Rate))
		if err != nil || r.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "rate must be a non-negative decimal"})
			return
		}
		rate = r
	}

	counts := req.counts()
	settlements := make(map[string]string, len(counts))
	for company, amount := range usage.Settlements(counts, rate) {
		settlements[company] = amount.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"usage":         counts,
		"settlements":   settlements,
		"minUsageCount": h.settlement.MinUsageCount(),
	})
}

// RewardsRequest is the body of POST /rewards/eligible.
type RewardsRequest struct {
	Usage    map[string]int64     `json:"usage" binding:"required"`
	Criteria usage.RewardCriteria `json:"criteria"`
}

func (h *Handler) EligibleRewards(c *gin.Context) {
	var req RewardsRequest
	if !h.bind(c, &req) {
		return
	}
	if err := req.Criteria.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	rewards := usage.EligibleCompanies(req.Usage, req.Criteria)
	if rewards == nil {
		rewards = []usage.Reward{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rewards": rewards,
		"total":   usage.TotalRewards(rewards).String(),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "issuer": h.settlement.Issuer().Address})
}

func (h *Handler) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.options.RequestTimeout)
}

// fail writes the uniform failure shape. Only transport failures change the
// status code.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := http.StatusOK
	if escrow.IsTransport(err) {
		status = http.StatusInternalServerError
	}
	h.options.Logger.Warn("escrow request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("request_id", c.GetString(RequestIDHeader)),
		zap.Error(err),
	)
	c.JSON(status, failure(err))
}

func failure(err error) gin.H {
	return gin.H{"success": false, "error": err.Error()}
}

// success flattens v into a JSON object and adds success:true.
func success(v interface{}) gin.H {
	out := gin.H{}
	if b, err := json.Marshal(v); err == nil {
		_ = json.Unmarshal(b, &out)
	}
	out["success"] = true
	return out
}

func createStep(s escrow.DemoScenario) gin.H {
	if s.Workflow != nil && s.Workflow.Create != nil {
		return success(s.Workflow.Create)
	}
	return failure(s.Err)
}

func finishStep(s escrow.DemoScenario) gin.H {
	if s.Workflow == nil || s.Workflow.Create == nil {
		return nil
	}
	if s.Workflow.Finish != nil {
		return success(s.Workflow.Finish)
	}
	return failure(stepErr(s.Err, "finish"))
}

func cancelStep(s escrow.DemoScenario) gin.H {
	if s.Workflow == nil || s.Workflow.Create == nil {
		return nil
	}
	if s.Workflow.Cancel != nil {
		return success(s.Workflow.Cancel)
	}
	return failure(stepErr(s.Err, "cancel"))
}

func stepErr(err error, step string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%s was not attempted", step)
}
