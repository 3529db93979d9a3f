// Package usage turns raw usage events into the counts and token amounts the
// settlement workflow acts on.
package usage

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MinPlayDuration is how long a play must last to count.
const MinPlayDuration = 60 * time.Second

// DefaultRate is the settlement rate: one token per qualifying event.
var DefaultRate = decimal.NewFromInt(1)

// Record is a single usage event reported for a company.
type Record struct {
	ID        string        `json:"id"`
	CompanyID string        `json:"companyId"`
	TrackID   string        `json:"trackId"`
	Duration  time.Duration `json:"duration"`
	PlayedAt  time.Time     `json:"timestamp"`
}

// Qualifies reports whether r lasted at least MinPlayDuration.
func Qualifies(r Record) bool {
	return r.Duration >= MinPlayDuration
}

// Count returns the number of qualifying events per company.
func Count(records []Record) map[string]int64 {
	counts := make(map[string]int64)
	for _, r := range records {
		if Qualifies(r) {
			counts[r.CompanyID]++
		}
	}
	return counts
}

// SettlementAmount prices count events at rate. Negative counts settle to zero.
func SettlementAmount(count int64, rate decimal.Decimal) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(count))
}

// Settlements prices every company's count at rate.
func Settlements(counts map[string]int64, rate decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(counts))
	for company, n := range counts {
		out[company] = SettlementAmount(n, rate)
	}
	return out
}

// RewardCriteria selects companies for a fixed reward.
type RewardCriteria struct {
	MinUsageCount int64  `json:"minUsageCount"`
	RewardAmount  string `json:"rewardAmount"`
	Reason        string `json:"reason"`
}

// Validate checks that the reward amount is a positive decimal.
func (c RewardCriteria) Validate() error {
	if c.MinUsageCount < 0 {
		return fmt.Errorf("usage: minUsageCount must be non-negative, got %d", c.MinUsageCount)
	}
	amount, err := decimal.NewFromString(c.RewardAmount)
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("usage: rewardAmount %q must be a positive decimal", c.RewardAmount)
	}
	return nil
}

// Reward is one company selected by RewardCriteria.
type Reward struct {
	CompanyID  string `json:"companyId"`
	UsageCount int64  `json:"usageCount"`
	Amount     string `json:"rewardAmount"`
	Reason     string `json:"reason"`
}

// EligibleCompanies returns a reward for every company whose count meets
// criteria, ordered by company ID.
func EligibleCompanies(counts map[string]int64, criteria RewardCriteria) []Reward {
	var rewards []Reward
	for company, n := range counts {
		if n >= criteria.MinUsageCount {
			rewards = append(rewards, Reward{
				CompanyID:  company,
				UsageCount: n,
				Amount:     criteria.RewardAmount,
				Reason:     criteria.Reason,
			})
		}
	}
	sort.Slice(rewards, func(i, j int) bool { return rewards[i].CompanyID < rewards[j].CompanyID })
	return rewards
}

// TotalRewards sums the amounts of rewards.
func TotalRewards(rewards []Reward) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rewards {
		if amount, err := decimal.NewFromString(r.Amount); err == nil {
			total = total.Add(amount)
		}
	}
	return total
}
