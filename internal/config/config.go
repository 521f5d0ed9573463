package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for soltrace.
type Config struct {
	General GeneralConfig `yaml:"general"`
	Solana  SolanaConfig  `yaml:"solana"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Analyze AnalyzeConfig `yaml:"analyze"`
	Daemon  DaemonConfig  `yaml:"daemon"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // json|text
}

type SolanaConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	WSEndpoint   string  `yaml:"ws_endpoint"`
	TimeoutS     int     `yaml:"timeout_s"`
	MaxRetries   int     `yaml:"max_retries"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

type CrawlConfig struct {
	Budget          int `yaml:"budget"`
	HolderFanout    int `yaml:"holder_fanout"`
	ExpandThreshold int `yaml:"expand_threshold"`
	PaceDelayMs     int `yaml:"pace_delay_ms"`
}

type AnalyzeConfig struct {
	MinSharedTokens int `yaml:"min_shared_tokens"`
	WhaleCount      int `yaml:"whale_count"`
}

type DaemonConfig struct {
	IntervalS       int      `yaml:"interval_s"`
	BalanceShiftSOL float64  `yaml:"balance_shift_sol"`
	WatchAccounts   []string `yaml:"watch_accounts"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "soltrace-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "text"
	}
	if cfg.Solana.Endpoint == "" {
		cfg.Solana.Endpoint = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.WSEndpoint == "" {
		cfg.Solana.WSEndpoint = "wss://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.TimeoutS == 0 {
		cfg.Solana.TimeoutS = 15
	}
	if cfg.Solana.MaxRetries == 0 {
		cfg.Solana.MaxRetries = 3
	}
	if cfg.Solana.RateLimitRPS == 0 {
		cfg.Solana.RateLimitRPS = 5
	}
	if cfg.Crawl.Budget == 0 {
		cfg.Crawl.Budget = 25
	}
	if cfg.Crawl.HolderFanout == 0 {
		cfg.Crawl.HolderFanout = 5
	}
	if cfg.Crawl.ExpandThreshold == 0 {
		cfg.Crawl.ExpandThreshold = 3
	}
	if cfg.Crawl.PaceDelayMs == 0 {
		cfg.Crawl.PaceDelayMs = 200
	}
	if cfg.Analyze.MinSharedTokens == 0 {
		cfg.Analyze.MinSharedTokens = 2
	}
	if cfg.Analyze.WhaleCount == 0 {
		cfg.Analyze.WhaleCount = 10
	}
	if cfg.Daemon.IntervalS == 0 {
		cfg.Daemon.IntervalS = 300
	}
	if cfg.Daemon.BalanceShiftSOL == 0 {
		cfg.Daemon.BalanceShiftSOL = 10
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Crawl.Budget < 0 {
		return fmt.Errorf("config: crawl.budget must not be negative")
	}
	if c.Crawl.HolderFanout < 1 {
		return fmt.Errorf("config: crawl.holder_fanout must be at least 1")
	}
	if c.Solana.Endpoint == "" {
		return fmt.Errorf("config: solana.endpoint is required")
	}
	switch c.General.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: general.log_format must be json or text, got %q", c.General.LogFormat)
	}
	return nil
}
