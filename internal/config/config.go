// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/bondswap/internal/curve"
)

type Config struct {
	ProgramID    string       `mapstructure:"program_id"`
	RPCURL       string       `mapstructure:"rpc_url"`
	DebugLogging bool         `mapstructure:"debug_logging"`
	LogFile      string       `mapstructure:"log_file"`
	MetricsAddr  string       `mapstructure:"metrics_addr"`
	Retries      int          `mapstructure:"retries"`
	RetryDelayMs int          `mapstructure:"retry_delay_ms"`
	EventBuffer  int          `mapstructure:"event_buffer"`
	Pools        []PoolConfig `mapstructure:"pools"`
}

// PoolConfig declares one pool. Unset curve shapes take curve.DefaultParams.
type PoolConfig struct {
	MintA     string          `mapstructure:"mint_a"`
	MintB     string          `mapstructure:"mint_b"`
	Curve     curve.Params    `mapstructure:"curve"`
	Liquidity LiquidityConfig `mapstructure:"liquidity"`
}

// LiquidityConfig seeds a pool on the reference ledger.
type LiquidityConfig struct {
	AmountA         uint64 `mapstructure:"amount_a"`
	AmountB         uint64 `mapstructure:"amount_b"`
	ReserveLamports uint64 `mapstructure:"reserve_lamports"`
}

const (
	EnvPrefix           = "BONDSWAP"
	DefaultRPCURL       = "https://api.mainnet-beta.solana.com"
	DefaultLogFile      = "bondswap.log"
	DefaultRetries      = 3
	DefaultRetryDelayMs = 200
	DefaultEventBuffer  = 256
)

// LoadConfig reads path (JSON or YAML) and applies BONDSWAP_* environment
// overrides. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"rpc_url":        DefaultRPCURL,
		"log_file":       DefaultLogFile,
		"retries":        DefaultRetries,
		"retry_delay_ms": DefaultRetryDelayMs,
		"event_buffer":   DefaultEventBuffer,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvironmentVariables(v, &cfg)
	cfg.applyPoolDefaults()

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyPoolDefaults() {
	for i := range c.Pools {
		c.Pools[i].Curve = c.Pools[i].Curve.WithDefaults()
	}
}

// Program returns the configured program id. Without one, the id is
// sha256("bondswap"), which is stable across runs.
func (c *Config) Program() (solana.PublicKey, error) {
	if c.ProgramID == "" {
		return solana.PublicKeyFromBytes(defaultProgramID[:]), nil
	}
	return solana.PublicKeyFromBase58(c.ProgramID)
}

var defaultProgramID = sha256.Sum256([]byte("bondswap"))

// Mints parses the pool's mint pair.
func (p PoolConfig) Mints() (solana.PublicKey, solana.PublicKey, error) {
	a, err := solana.PublicKeyFromBase58(p.MintA)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("invalid mint_a %q: %w", p.MintA, err)
	}
	b, err := solana.PublicKeyFromBase58(p.MintB)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("invalid mint_b %q: %w", p.MintB, err)
	}
	return a, b, nil
}

func validateConfig(cfg *Config) error {
	if _, err := cfg.Program(); err != nil {
		return fmt.Errorf("invalid program_id: %w", err)
	}
	if cfg.RPCURL != "" {
		if err := validateURL(cfg.RPCURL, "http"); err != nil {
			return fmt.Errorf("invalid rpc_url: %w", err)
		}
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}

	seen := make(map[[2]solana.PublicKey]bool, len(cfg.Pools))
	for i, p := range cfg.Pools {
		a, b, err := p.Mints()
		if err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
		if a.Equals(b) {
			return fmt.Errorf("pools[%d]: mint_a and mint_b are identical", i)
		}
		if seen[[2]solana.PublicKey{a, b}] || seen[[2]solana.PublicKey{b, a}] {
			return fmt.Errorf("pools[%d]: duplicate pool for %s/%s", i, a, b)
		}
		seen[[2]solana.PublicKey{a, b}] = true
		if err := p.Curve.Validate(); err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.RetryDelayMs <= 0 {
		return errors.New("invalid retry_delay_ms")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if s := v.GetString("PROGRAM_ID"); s != "" {
		cfg.ProgramID = s
	}
	if s := v.GetString("RPC_URL"); s != "" {
		cfg.RPCURL = strings.TrimSpace(s)
	}
	if s := v.GetString("LOG_FILE"); s != "" {
		cfg.LogFile = s
	}
	if s := v.GetString("METRICS_ADDR"); s != "" {
		cfg.MetricsAddr = s
	}
	if v.IsSet("DEBUG_LOGGING") {
		cfg.DebugLogging = v.GetBool("DEBUG_LOGGING")
	}

	// Numeric keys have defaults, so Get resolves env, then file, then default.
	cfg.Retries = v.GetInt("RETRIES")
	cfg.RetryDelayMs = v.GetInt("RETRY_DELAY_MS")
	cfg.EventBuffer = v.GetInt("EVENT_BUFFER")
}
