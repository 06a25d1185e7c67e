package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// Sandbox credentials used when test mode is on.
const (
	TestMerchantID = "1396424"
	TestSecretKey  = "test"
)

const (
	LockBackendRedis = "redis"
	LockBackendLocal = "local"
)

type Config struct {
	Port           string `mapstructure:"port"`
	DatabaseURL    string `mapstructure:"database_url"`
	RedisURL       string `mapstructure:"redis_url"`
	KafkaBrokers   string `mapstructure:"kafka_brokers"`
	NatsURL        string `mapstructure:"nats_url"`
	NatsPrefix     string `mapstructure:"nats_prefix"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	Debug          bool   `mapstructure:"debug"`

	MerchantID      string                 `mapstructure:"merchant_id"`
	SecretKey       string                 `mapstructure:"secret_key"`
	TestMode        bool                   `mapstructure:"test_mode"`
	IntegrationType models.IntegrationType `mapstructure:"integration_type"`
	APIBaseURL      string                 `mapstructure:"api_base_url"`
	APITimeout      time.Duration          `mapstructure:"api_timeout"`
	APIRetries      int                    `mapstructure:"api_retries"`

	CompletedOrderStatus string `mapstructure:"completed_order_status"`
	DeclinedOrderStatus  string `mapstructure:"declined_order_status"`
	ExpiredOrderStatus   string `mapstructure:"expired_order_status"`

	SiteURL     string `mapstructure:"site_url"`
	RedirectURL string `mapstructure:"redirect_url"`
	Language    string `mapstructure:"language"`

	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	LockBackend   string        `mapstructure:"lock_backend"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	LockWait      time.Duration `mapstructure:"lock_wait"`
	FailureBuffer int           `mapstructure:"failure_buffer"`
	FailureTopic  string        `mapstructure:"failure_topic"`
	StateTopic    string        `mapstructure:"state_topic"`
}

var defaults = map[string]interface{}{
	"port":            "8082",
	"database_url":    "",
	"redis_url":       "",
	"kafka_brokers":   "",
	"nats_url":        "",
	"nats_prefix":     "hutko.order",
	"jaeger_endpoint": "",
	"debug":           false,

	"merchant_id":      "",
	"secret_key":       "",
	"test_mode":        false,
	"integration_type": string(models.IntegrationHosted),
	"api_base_url":     "https://pay.hutko.org/api",
	"api_timeout":      "15s",
	"api_retries":      2,

	"completed_order_status": models.DefaultStatus,
	"declined_order_status":  models.DefaultStatus,
	"expired_order_status":   models.DefaultStatus,

	"site_url":     "http://localhost:8082",
	"redirect_url": "",
	"language":     "uk",

	"token_ttl":      "30m",
	"lock_backend":   LockBackendRedis,
	"lock_ttl":       "30s",
	"lock_wait":      "5s",
	"failure_buffer": 256,
	"failure_topic":  "payment.callback.failed",
	"state_topic":    "payment.state.changed",
}

// Load reads configuration from an optional file, the environment and a .env
// file in the working directory. path may be empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	MigrateLegacy(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyTestMode()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MigrateLegacy maps settings from the old plugin layout onto current keys.
// Current keys win when both are present.
func MigrateLegacy(v *viper.Viper) {
	rename := map[string]string{
		"salt":                 "secret_key",
		"default_order_status": "completed_order_status",
	}
	for from, to := range rename {
		if v.IsSet(from) && !isExplicit(v, to) {
			v.Set(to, v.GetString(from))
		}
	}

	if v.IsSet("payment_type") && !isExplicit(v, "integration_type") {
		if v.GetString("payment_type") == "page_mode" {
			v.Set("integration_type", string(models.IntegrationEmbedded))
		} else {
			v.Set("integration_type", string(models.IntegrationHosted))
		}
	}
}

// isExplicit reports whether key was set by the file or environment rather than
// a default.
func isExplicit(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv(strings.ToUpper(key))
	return ok
}

func (c *Config) applyTestMode() {
	if !c.TestMode {
		return
	}
	c.MerchantID = TestMerchantID
	c.SecretKey = TestSecretKey
}

func (c *Config) Validate() error {
	if c.MerchantID == "" || c.SecretKey == "" {
		return errors.New("merchant_id and secret_key are required unless test_mode is on")
	}
	switch c.IntegrationType {
	case models.IntegrationEmbedded, models.IntegrationHosted:
	default:
		return fmt.Errorf("unknown integration_type %q", c.IntegrationType)
	}
	switch c.LockBackend {
	case LockBackendRedis, LockBackendLocal:
	default:
		return fmt.Errorf("unknown lock_backend %q", c.LockBackend)
	}
	return nil
}

// Brokers splits the comma-separated broker list.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
