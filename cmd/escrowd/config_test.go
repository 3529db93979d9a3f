package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/condition"
	"github.com/sangah323/MPS-XRPL/test/mocks/ledger"
	"github.com/sangah323/MPS-XRPL/xrpl"
)

func setWallets(t *testing.T) {
	t.Setenv("MPS_WALLET_ADDRESS", ledger.Issuer.Address)
	t.Setenv("MPS_WALLET_SEED", ledger.Issuer.Seed)
	t.Setenv("COMPANY_A_WALLET_ADDRESS", ledger.CompanyA.Wallet.Address)
	t.Setenv("COMPANY_B_WALLET_ADDRESS", ledger.CompanyB.Wallet.Address)
}

func TestLoadConfigDefaults(t *testing.T) {
	setWallets(t)
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(newViper(nil), "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, xrpl.DefaultURL, cfg.LedgerURL)
	assert.Equal(t, 3002, cfg.HTTPPort)
	assert.Equal(t, "MPS", cfg.Currency)
	assert.Equal(t, int64(10), cfg.MinUsageCount)
	assert.Equal(t, time.Hour, cfg.FinishDelay)
	assert.Equal(t, 24*time.Hour, cfg.CancelDelay)
	assert.Equal(t, condition.SchemePlaintext, cfg.ConditionScheme)
	assert.Equal(t, ledger.Issuer, cfg.Issuer)
	require.Len(t, cfg.Companies, 2)
	assert.Equal(t, ledger.CompanyA.Wallet.Address, cfg.Companies[0].Wallet.Address)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	setWallets(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "escrowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ledger:
  url: wss://s.altnet.rippletest.net:51233
settlement:
  min_usage_count: 20
  finish_delay: 2h
  cancel_delay: 48h
condition:
  scheme: preimage-sha-256
  secret: s3cret
http:
  port: 8080
`), 0o600))
	t.Setenv("MPS_HTTP_PORT", "9090")

	cfg, err := loadConfig(newViper(nil), path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wss://s.altnet.rippletest.net:51233", cfg.LedgerURL)
	assert.Equal(t, int64(20), cfg.MinUsageCount)
	assert.Equal(t, 2*time.Hour, cfg.FinishDelay)
	assert.Equal(t, 9090, cfg.HTTPPort, "environment overrides the file")

	scheme, err := cfg.Scheme()
	require.NoError(t, err)
	assert.Equal(t, condition.SchemePreimageSHA256, scheme.Name())
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(newViper(nil), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Issuer:          ledger.Issuer,
			Companies:       []escrow.Company{ledger.CompanyA, ledger.CompanyB},
			Currency:        "MPS",
			MinUsageCount:   10,
			FinishDelay:     time.Hour,
			CancelDelay:     24 * time.Hour,
			ConditionScheme: condition.SchemePlaintext,
			LogLevel:        "info",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing issuer seed", func(c *Config) { c.Issuer.Seed = "" }, "wallets.mps.seed"},
		{"missing company address", func(c *Config) { c.Companies[1].Wallet.Address = "" }, "wallets.company_b.address"},
		{"bad currency", func(c *Config) { c.Currency = "MPSX" }, "settlement.currency"},
		{"inverted delays", func(c *Config) { c.CancelDelay = c.FinishDelay }, "finish_delay < cancel_delay"},
		{"preimage without secret", func(c *Config) { c.ConditionScheme = condition.SchemePreimageSHA256 }, "condition.secret"},
		{"unknown scheme", func(c *Config) { c.ConditionScheme = "rsa" }, "unknown condition.scheme"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAppWiresSimulator(t *testing.T) {
	h := ledger.NewHarness()
	cfg := &Config{
		LedgerURL:       "memory",
		Issuer:          ledger.Issuer,
		Companies:       []escrow.Company{ledger.CompanyA, ledger.CompanyB},
		Currency:        "MPS",
		MinUsageCount:   10,
		FinishDelay:     time.Hour,
		CancelDelay:     24 * time.Hour,
		ConditionScheme: condition.SchemePlaintext,
		IdempotencyTTL:  time.Minute,
		LogLevel:        "info",
	}

	a, err := newApp(context.Background(), cfg, zap.NewNop(), h.Ledger)
	require.NoError(t, err)
	defer a.Close()

	// Creates only; the simulator clock stays at BaseTime so no window opens.
	res, err := a.settlement.CreateSettlementEscrow(context.Background(), "A", 15, "50")
	require.NoError(t, err)
	assert.NotZero(t, res.Sequence)

	balances, err := a.settlement.Balances(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, balances))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "mps")
}

func TestAppRejectsBadRedisURL(t *testing.T) {
	cfg := &Config{
		Issuer:          ledger.Issuer,
		ConditionScheme: condition.SchemePlaintext,
		RedisURL:        "://nope",
		IdempotencyTTL:  time.Minute,
	}
	_, err := newApp(context.Background(), cfg, zap.NewNop(), ledger.New(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idempotency.redis_url")
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "mcp", "demo", "balances"})
}
