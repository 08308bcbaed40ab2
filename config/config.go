package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	OracleConfig   OracleConfig   `json:"oracle"`
	EngineConfig   EngineConfig   `json:"engine"`
	SourcesConfig  SourcesConfig  `json:"sources"`
}

// ServerConfig holds the HTTP/WS API configuration
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	AllowedOrigins string `json:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// OracleConfig holds the LLM decision oracle configuration
type OracleConfig struct {
	Provider       string  `json:"provider"` // claude, openai, deepseek
	APIKey         string  `json:"api_key"`
	Model          string  `json:"model"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// EngineConfig holds the agent runner and signal engine tunables.
// These are the only recognized engine options.
type EngineConfig struct {
	CyclePeriodMs        int     `json:"cycle_period_ms"`
	SignalCacheTTLMs     int     `json:"signal_cache_ttl_ms"`
	IndicatorCacheTTLMs  int     `json:"indicator_cache_ttl_ms"`
	BarHistoryMax        int     `json:"bar_history_max"`
	DefaultStopLossPct   float64 `json:"default_stop_loss_pct"`
	DefaultTakeProfitPct float64 `json:"default_take_profit_pct"`
}

// SourcesConfig holds base URLs and keys for external market data providers
type SourcesConfig struct {
	DexScreenerBaseURL   string `json:"dexscreener_base_url"`
	GeckoTerminalBaseURL string `json:"geckoterminal_base_url"`
	LunarCrushAPIKey     string `json:"lunarcrush_api_key"`
	CryptoPanicAPIKey    string `json:"cryptopanic_api_key"`
	FearGreedBaseURL     string `json:"fear_greed_base_url"`
	RequestTimeoutSec    int    `json:"request_timeout_sec"`
}

// Load reads config.json (path overridable via CONFIG_PATH) and applies
// environment variable overrides. Env vars take precedence over the file.
func Load() (*Config, error) {
	path := getEnvOrDefault("CONFIG_PATH", "config.json")

	cfg, err := loadFromFile(path)
	if err != nil {
		// No config file is fine - env + defaults cover everything
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}
	if v := os.Getenv("LOG_INCLUDE_FILE"); v != "" {
		cfg.LoggingConfig.IncludeFile = v == "true"
	}

	// Oracle
	cfg.OracleConfig.Provider = getEnvOrDefault("ORACLE_PROVIDER", cfg.OracleConfig.Provider)
	cfg.OracleConfig.APIKey = getEnvOrDefault("ORACLE_API_KEY", cfg.OracleConfig.APIKey)
	cfg.OracleConfig.Model = getEnvOrDefault("ORACLE_MODEL", cfg.OracleConfig.Model)

	// Sources
	cfg.SourcesConfig.LunarCrushAPIKey = getEnvOrDefault("LUNARCRUSH_API_KEY", cfg.SourcesConfig.LunarCrushAPIKey)
	cfg.SourcesConfig.CryptoPanicAPIKey = getEnvOrDefault("CRYPTOPANIC_API_KEY", cfg.SourcesConfig.CryptoPanicAPIKey)
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.Addr == "" {
		cfg.RedisConfig.Addr = "localhost:6379"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
	if cfg.OracleConfig.Provider == "" {
		cfg.OracleConfig.Provider = "claude"
	}
	if cfg.OracleConfig.MaxTokens == 0 {
		cfg.OracleConfig.MaxTokens = 700
	}
	if cfg.OracleConfig.TimeoutSeconds == 0 {
		cfg.OracleConfig.TimeoutSeconds = 10
	}
	if cfg.EngineConfig.CyclePeriodMs == 0 {
		cfg.EngineConfig.CyclePeriodMs = 10000
	}
	if cfg.EngineConfig.SignalCacheTTLMs == 0 {
		cfg.EngineConfig.SignalCacheTTLMs = 8000
	}
	if cfg.EngineConfig.IndicatorCacheTTLMs == 0 {
		cfg.EngineConfig.IndicatorCacheTTLMs = 45000
	}
	if cfg.EngineConfig.BarHistoryMax == 0 {
		cfg.EngineConfig.BarHistoryMax = 200
	}
	if cfg.EngineConfig.DefaultStopLossPct == 0 {
		cfg.EngineConfig.DefaultStopLossPct = 12
	}
	if cfg.EngineConfig.DefaultTakeProfitPct == 0 {
		cfg.EngineConfig.DefaultTakeProfitPct = 30
	}
	if cfg.SourcesConfig.DexScreenerBaseURL == "" {
		cfg.SourcesConfig.DexScreenerBaseURL = "https://api.dexscreener.com"
	}
	if cfg.SourcesConfig.GeckoTerminalBaseURL == "" {
		cfg.SourcesConfig.GeckoTerminalBaseURL = "https://api.geckoterminal.com/api/v2"
	}
	if cfg.SourcesConfig.FearGreedBaseURL == "" {
		cfg.SourcesConfig.FearGreedBaseURL = "https://api.alternative.me"
	}
	if cfg.SourcesConfig.RequestTimeoutSec == 0 {
		cfg.SourcesConfig.RequestTimeoutSec = 10
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
