// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds application settings. Every field is optional and falls
// back to a hardcoded default.
type Config struct {
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPAddr    string `mapstructure:"http_addr"`

	RPCURL         string `mapstructure:"rpc_url"`
	ProgramAddress string `mapstructure:"program_address"`

	PumpFunAPIURL       string `mapstructure:"pumpfun_api_url"`
	DexScreenerAPIURL   string `mapstructure:"dexscreener_api_url"`
	GeckoTerminalAPIURL string `mapstructure:"geckoterminal_api_url"`

	PollIntervalMS          int `mapstructure:"poll_interval_ms"`
	SignatureLimit          int `mapstructure:"signature_limit"`
	MaxProcessedSignatures  int `mapstructure:"max_processed_signatures"`
	MinRequestDelayMS       int `mapstructure:"min_request_delay_ms"`
	CacheTTLMS              int `mapstructure:"cache_ttl_ms"`
	HTTPTimeoutMS           int `mapstructure:"http_timeout_ms"`
	DirectMonitorIntervalMS int `mapstructure:"direct_monitor_interval_ms"`
	EarlyStopThreshold      int `mapstructure:"early_stop_threshold"`
	AnalysisConcurrency     int `mapstructure:"analysis_concurrency"`

	MinMarketCap float64 `mapstructure:"min_market_cap"`
	MaxMarketCap float64 `mapstructure:"max_market_cap"`
	SOLPriceUSD  float64 `mapstructure:"sol_price_usd"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`

	// ExportDir enables writing monitor detections to disk on shutdown.
	ExportDir    string `mapstructure:"export_dir"`
	ExportFormat string `mapstructure:"export_format"`

	// Derived from the *_ms fields after loading.
	PollInterval          time.Duration `mapstructure:"-"`
	MinRequestDelay       time.Duration `mapstructure:"-"`
	CacheTTL              time.Duration `mapstructure:"-"`
	HTTPTimeout           time.Duration `mapstructure:"-"`
	DirectMonitorInterval time.Duration `mapstructure:"-"`
}

const (
	DefaultVersion             = "0.1.0"
	DefaultEnvironment         = "development"
	DefaultHTTPAddr            = ":8080"
	DefaultRPCURL              = "https://api.mainnet-beta.solana.com"
	DefaultProgramAddress      = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	DefaultPumpFunAPIURL       = "https://frontend-api.pump.fun"
	DefaultDexScreenerAPIURL   = "https://api.dexscreener.com"
	DefaultGeckoTerminalAPIURL = "https://api.geckoterminal.com/api/v2"

	DefaultPollIntervalMS          = 4000
	DefaultSignatureLimit          = 20
	DefaultMaxProcessedSignatures  = 1000
	DefaultMinRequestDelayMS       = 2000
	DefaultCacheTTLMS              = 45000
	DefaultHTTPTimeoutMS           = 10000
	DefaultDirectMonitorIntervalMS = 30000
	DefaultEarlyStopThreshold      = 10
	DefaultAnalysisConcurrency     = 4

	DefaultMinMarketCap = 1000.0
	DefaultMaxMarketCap = 100000.0
	DefaultSOLPriceUSD  = 150.0

	DefaultLogFile      = "pumpwatch.log"
	DefaultExportFormat = "csv"

	envPrefix = "PUMPWATCH"
)

// Default returns a configuration populated only with defaults.
func Default() *Config {
	cfg, _ := Load("")
	return cfg
}

// Load reads configuration from path (optional, JSON or YAML), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"version":                    DefaultVersion,
		"environment":                DefaultEnvironment,
		"http_addr":                  DefaultHTTPAddr,
		"rpc_url":                    DefaultRPCURL,
		"program_address":            DefaultProgramAddress,
		"pumpfun_api_url":            DefaultPumpFunAPIURL,
		"dexscreener_api_url":        DefaultDexScreenerAPIURL,
		"geckoterminal_api_url":      DefaultGeckoTerminalAPIURL,
		"poll_interval_ms":           DefaultPollIntervalMS,
		"signature_limit":            DefaultSignatureLimit,
		"max_processed_signatures":   DefaultMaxProcessedSignatures,
		"min_request_delay_ms":       DefaultMinRequestDelayMS,
		"cache_ttl_ms":               DefaultCacheTTLMS,
		"http_timeout_ms":            DefaultHTTPTimeoutMS,
		"direct_monitor_interval_ms": DefaultDirectMonitorIntervalMS,
		"early_stop_threshold":       DefaultEarlyStopThreshold,
		"analysis_concurrency":       DefaultAnalysisConcurrency,
		"min_market_cap":             DefaultMinMarketCap,
		"max_market_cap":             DefaultMaxMarketCap,
		"sol_price_usd":              DefaultSOLPriceUSD,
		"debug_logging":              false,
		"log_file":                   DefaultLogFile,
		"export_dir":                 "",
		"export_format":              DefaultExportFormat,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	bindEnvironment(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	// ms -> Duration
	cfg.PollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	cfg.MinRequestDelay = time.Duration(cfg.MinRequestDelayMS) * time.Millisecond
	cfg.CacheTTL = time.Duration(cfg.CacheTTLMS) * time.Millisecond
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutMS) * time.Millisecond
	cfg.DirectMonitorInterval = time.Duration(cfg.DirectMonitorIntervalMS) * time.Millisecond

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvironment maps PUMPWATCH_* variables onto keys. A few keys also
// accept the un-prefixed names the deployment environment provides.
func bindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("rpc_url", envPrefix+"_RPC_URL", "SOLANA_RPC_URL", "NEXT_PUBLIC_SOLANA_RPC_URL")
	_ = v.BindEnv("version", envPrefix+"_VERSION", "APP_VERSION")
	_ = v.BindEnv("environment", envPrefix+"_ENVIRONMENT", "APP_ENV")
}

func validateConfig(cfg *Config) error {
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	for name, raw := range map[string]string{
		"pumpfun_api_url":       cfg.PumpFunAPIURL,
		"dexscreener_api_url":   cfg.DexScreenerAPIURL,
		"geckoterminal_api_url": cfg.GeckoTerminalAPIURL,
	} {
		if raw == "" {
			continue
		}
		if err := validateURLWithCache(raw, "http"); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if cfg.ProgramAddress == "" {
		return errors.New("program_address is empty")
	}
	if cfg.ExportFormat != "csv" && cfg.ExportFormat != "json" {
		return fmt.Errorf("invalid export_format %q", cfg.ExportFormat)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.PollIntervalMS <= 0 {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.SignatureLimit <= 0 || cfg.SignatureLimit > 1000 {
		return errors.New("invalid signature_limit")
	}
	if cfg.MaxProcessedSignatures < 2 {
		return errors.New("invalid max_processed_signatures")
	}
	if cfg.MinRequestDelayMS < 0 {
		return errors.New("invalid min_request_delay_ms")
	}
	if cfg.CacheTTLMS < 0 {
		return errors.New("invalid cache_ttl_ms")
	}
	if cfg.HTTPTimeoutMS <= 0 {
		return errors.New("invalid http_timeout_ms")
	}
	if cfg.DirectMonitorIntervalMS <= 0 {
		return errors.New("invalid direct_monitor_interval_ms")
	}
	if cfg.EarlyStopThreshold <= 0 {
		return errors.New("invalid early_stop_threshold")
	}
	if cfg.AnalysisConcurrency <= 0 {
		return errors.New("invalid analysis_concurrency")
	}
	if cfg.MinMarketCap < 0 || cfg.MaxMarketCap < cfg.MinMarketCap {
		return errors.New("invalid market cap range")
	}
	if cfg.SOLPriceUSD <= 0 {
		return errors.New("invalid sol_price_usd")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}
