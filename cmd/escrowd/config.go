package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/condition"
	"github.com/sangah323/MPS-XRPL/xrpl"
)

const envPrefix = "MPS"

// Config is the resolved daemon configuration.
type Config struct {
	LedgerURL     string
	LedgerTimeout time.Duration

	Issuer    escrow.Wallet
	Companies []escrow.Company

	Currency        string
	MinUsageCount   int64
	FinishDelay     time.Duration
	CancelDelay     time.Duration
	ConditionScheme string
	ConditionSecret string

	HTTPPort   int
	APIPrefix  string
	MCPEnabled bool
	MCPPort    int

	RedisURL       string
	IdempotencyTTL time.Duration

	LogLevel    string
	LogEncoding string
}

// newViper returns a viper instance with defaults, env bindings and the
// optional escrowd.yaml config file search path.
func newViper(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetConfigName("escrowd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/escrowd")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ledger.url", xrpl.DefaultURL)
	v.SetDefault("ledger.timeout", 30*time.Second)
	v.SetDefault("settlement.currency", escrow.DefaultCurrency)
	v.SetDefault("settlement.min_usage_count", escrow.DefaultMinUsageCount)
	v.SetDefault("settlement.finish_delay", escrow.DefaultFinishDelay)
	v.SetDefault("settlement.cancel_delay", escrow.DefaultCancelDelay)
	v.SetDefault("condition.scheme", condition.SchemePlaintext)
	v.SetDefault("condition.secret", "")
	v.SetDefault("http.port", 3002)
	v.SetDefault("http.api_prefix", "/api")
	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.port", 3003)
	v.SetDefault("idempotency.redis_url", "")
	v.SetDefault("idempotency.ttl", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("wallets.mps.address", "")
	v.SetDefault("wallets.mps.seed", "")
	for _, id := range []string{"a", "b"} {
		v.SetDefault("wallets.company_"+id+".address", "")
		v.SetDefault("wallets.company_"+id+".seed", "")
	}

	// The dashboard's original variable names.
	_ = v.BindEnv("wallets.mps.seed", "MPS_WALLETS_MPS_SEED", "MPS_WALLET_SEED")
	_ = v.BindEnv("wallets.mps.address", "MPS_WALLETS_MPS_ADDRESS", "MPS_WALLET_ADDRESS")
	_ = v.BindEnv("wallets.company_a.seed", "MPS_WALLETS_COMPANY_A_SEED", "COMPANY_A_WALLET_SEED")
	_ = v.BindEnv("wallets.company_a.address", "MPS_WALLETS_COMPANY_A_ADDRESS", "COMPANY_A_WALLET_ADDRESS")
	_ = v.BindEnv("wallets.company_b.seed", "MPS_WALLETS_COMPANY_B_SEED", "COMPANY_B_WALLET_SEED")
	_ = v.BindEnv("wallets.company_b.address", "MPS_WALLETS_COMPANY_B_ADDRESS", "COMPANY_B_WALLET_ADDRESS")
	_ = v.BindEnv("http.port", "MPS_HTTP_PORT", "PORT")

	if flags != nil {
		_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
		_ = v.BindPFlag("ledger.url", flags.Lookup("ledger-url"))
		_ = v.BindPFlag("http.port", flags.Lookup("port"))
	}
	return v
}

// loadConfig reads the optional config file and resolves every key.
func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		LedgerURL:     v.GetString("ledger.url"),
		LedgerTimeout: v.GetDuration("ledger.timeout"),
		Issuer: escrow.Wallet{
			Address: v.GetString("wallets.mps.address"),
			Seed:    v.GetString("wallets.mps.seed"),
		},
		Companies: []escrow.Company{
			{
				ID:   "A",
				Name: "Company A",
				Wallet: escrow.Wallet{
					Address: v.GetString("wallets.company_a.address"),
					Seed:    v.GetString("wallets.company_a.seed"),
				},
			},
			{
				ID:   "B",
				Name: "Company B",
				Wallet: escrow.Wallet{
					Address: v.GetString("wallets.company_b.address"),
					Seed:    v.GetString("wallets.company_b.seed"),
				},
			},
		},
		Currency:        v.GetString("settlement.currency"),
		MinUsageCount:   v.GetInt64("settlement.min_usage_count"),
		FinishDelay:     v.GetDuration("settlement.finish_delay"),
		CancelDelay:     v.GetDuration("settlement.cancel_delay"),
		ConditionScheme: v.GetString("condition.scheme"),
		ConditionSecret: v.GetString("condition.secret"),
		HTTPPort:        v.GetInt("http.port"),
		APIPrefix:       v.GetString("http.api_prefix"),
		MCPEnabled:      v.GetBool("mcp.enabled"),
		MCPPort:         v.GetInt("mcp.port"),
		RedisURL:        v.GetString("idempotency.redis_url"),
		IdempotencyTTL:  v.GetDuration("idempotency.ttl"),
		LogLevel:        v.GetString("log.level"),
		LogEncoding:     v.GetString("log.encoding"),
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var problems []string
	if c.Issuer.Address == "" {
		problems = append(problems, "wallets.mps.address is required")
	}
	if c.Issuer.Seed == "" {
		problems = append(problems, "wallets.mps.seed is required")
	}
	for _, company := range c.Companies {
		if company.Wallet.Address == "" {
			problems = append(problems, fmt.Sprintf("wallets.company_%s.address is required", strings.ToLower(company.ID)))
		}
	}
	if len(c.Currency) != 3 {
		problems = append(problems, fmt.Sprintf("settlement.currency %q must be a 3-letter code", c.Currency))
	}
	if c.MinUsageCount < 0 {
		problems = append(problems, "settlement.min_usage_count must not be negative")
	}
	if c.FinishDelay <= 0 || c.CancelDelay <= c.FinishDelay {
		problems = append(problems, "settlement delays must satisfy 0 < finish_delay < cancel_delay")
	}
	switch c.ConditionScheme {
	case condition.SchemePlaintext:
	case condition.SchemePreimageSHA256:
		if c.ConditionSecret == "" {
			problems = append(problems, "condition.secret is required for "+condition.SchemePreimageSHA256)
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown condition.scheme %q", c.ConditionScheme))
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log.level: %v", err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Scheme builds the configured condition scheme.
func (c *Config) Scheme() (condition.Scheme, error) {
	if c.ConditionScheme == condition.SchemePreimageSHA256 {
		return condition.NewPreimageSHA256Scheme([]byte(c.ConditionSecret))
	}
	return condition.PlaintextScheme{}, nil
}

// newLogger builds the zap logger for the configured level and encoding.
func newLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogEncoding == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
