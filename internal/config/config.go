package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Log   LogConfig   `mapstructure:"log"`
	Odoo  OdooConfig  `mapstructure:"odoo"`
	API   APIConfig   `mapstructure:"api"`
	Redis RedisConfig `mapstructure:"redis"`
	Audit AuditConfig `mapstructure:"audit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type OdooConfig struct {
	URL       string        `mapstructure:"url"`
	DB        string        `mapstructure:"db"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	APIKey    string        `mapstructure:"api_key"`
	APIKeyUID int64         `mapstructure:"api_key_uid"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

// APIConfig holds the hardening toggles exposed as API_* variables.
type APIConfig struct {
	EnableRateLimit       bool     `mapstructure:"enable_rate_limit"`
	RateLimitDefault      string   `mapstructure:"rate_limit_default"`
	EnableSecurityHeaders bool     `mapstructure:"enable_security_headers"`
	EnableMaxBodySize     bool     `mapstructure:"enable_max_body_size"`
	MaxRequestBodyBytes   int64    `mapstructure:"max_request_body_bytes"`
	AllowedHosts          []string `mapstructure:"allowed_hosts"`
	CORSOrigins           []string `mapstructure:"cors_origins"`
	TrustedProxies        []string `mapstructure:"trusted_proxies"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

type AuditConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	GroupID      string        `mapstructure:"group_id"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	BufferSize   int           `mapstructure:"buffer_size"`
}

// Load reads embedded defaults, merges user YAML (if provided), picks up a local
// .env file and applies env overrides. Env names are the config keys upper-cased
// with dots replaced by underscores (odoo.url -> ODOO_URL).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// .env never overrides variables already set in the environment
	_ = gotenv.Load()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.API.AllowedHosts = cleanList(cfg.API.AllowedHosts)
	cfg.API.CORSOrigins = cleanList(cfg.API.CORSOrigins)
	cfg.API.TrustedProxies = cleanList(cfg.API.TrustedProxies)
	cfg.Audit.Brokers = cleanList(cfg.Audit.Brokers)
	cfg.Odoo.URL = strings.TrimRight(strings.TrimSpace(cfg.Odoo.URL), "/")

	return cfg, nil
}

// cleanList trims entries and drops empty ones; env values arrive as "a, b".
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
