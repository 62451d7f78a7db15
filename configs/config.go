package configs

import (
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Client struct {
	Secret  string   `koanf:"secret"`
	Perms   []string `koanf:"perms"` // e.g. {"payments.read","payments.write"}
	Enabled bool     `koanf:"enabled"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
		CORSOrigins    []string      `koanf:"cors_origins"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Cache struct {
		StatusTTL         time.Duration `koanf:"status_ttl"`
		PaymentMethodsTTL time.Duration `koanf:"payment_methods_ttl"`
	} `koanf:"cache"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Rabbit struct {
		URL      string `koanf:"url"`
		Prefetch int    `koanf:"prefetch"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Enabled bool     `koanf:"enabled"`
		Brokers []string `koanf:"brokers"`
		GroupID string   `koanf:"group_id"`
		Topic   string   `koanf:"topic"`
		Version string   `koanf:"version"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret     string            `koanf:"jwt_secret"`
		Issuer        string            `koanf:"issuer"`
		Audience      string            `koanf:"audience"`
		TTL           time.Duration     `koanf:"ttl"`
		SessionCookie string            `koanf:"session_cookie"`
		Clients       map[string]Client `koanf:"clients"`
	} `koanf:"security"`

	Scalapay struct {
		APIKey        string        `koanf:"api_key"`
		BaseURL       string        `koanf:"base_url"` // public URL of this service, used in provider redirects
		SuccessURL    string        `koanf:"success_url"`
		FailureURL    string        `koanf:"failure_url"`
		Environment   string        `koanf:"environment"`
		Timeout       time.Duration `koanf:"timeout"`
		FallbackState string        `koanf:"fallback_state"`
		RateLimit     struct {
			RPS   float64 `koanf:"rps"`
			Burst int     `koanf:"burst"`
		} `koanf:"rate_limit"`
	} `koanf:"scalapay"`
}

var defaults = map[string]any{
	"app.name":                  "scalapay-api",
	"app.http_addr":             ":8080",
	"app.log_level":             "info",
	"http.read_timeout":         "10s",
	"http.write_timeout":        "10s",
	"http.idle_timeout":         "60s",
	"http.request_timeout":      "15s",
	"mysql.max_open_conns":      16,
	"mysql.max_idle_conns":      16,
	"mysql.conn_max_lifetime":   "30m",
	"cache.status_ttl":          "10m",
	"cache.payment_methods_ttl": "1m",
	"idempotency.ttl":           "24h",
	"rabbitmq.prefetch":         50,
	"security.ttl":              "15m",
	"security.session_cookie":   "session",
	"scalapay.environment":      "sandbox",
	"scalapay.timeout":          "10s",
	"scalapay.fallback_state":   string(domain.StateAddingItems),
}

// scalapayEnv maps the provider's conventional variable names onto config keys.
var scalapayEnv = map[string]string{
	"SCALAPAY_API_KEY":     "scalapay.api_key",
	"SCALAPAY_BASE_URL":    "scalapay.base_url",
	"SCALAPAY_SUCCESS_URL": "scalapay.success_url",
	"SCALAPAY_FAILURE_URL": "scalapay.failure_url",
	"SCALAPAY_ENVIRONMENT": "scalapay.environment",
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 0) defaults
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("defaults: %w", err)
	}

	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix ORDERAPI_, nested with __)
	// e.g. ORDERAPI_MYSQL__DSN, ORDERAPI_REDIS__PASSWORD
	if err := k.Load(env.Provider("ORDERAPI_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ORDERAPI_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	// 4) SCALAPAY_* wins over everything; an unknown environment name is ignored
	if err := k.Load(env.ProviderWithValue("SCALAPAY_", ".", func(key, value string) (string, any) {
		path, ok := scalapayEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		if path == "scalapay.environment" {
			value = strings.ToLower(strings.TrimSpace(value))
			if value != "sandbox" && value != "production" {
				return "", nil
			}
		}
		return path, value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("scalapay env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka.enabled")
	}

	sp := c.Scalapay
	var missing []string
	for key, v := range map[string]string{
		"scalapay.api_key":     sp.APIKey,
		"scalapay.base_url":    sp.BaseURL,
		"scalapay.success_url": sp.SuccessURL,
		"scalapay.failure_url": sp.FailureURL,
	} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s required", strings.Join(missing, ", "))
	}
	if sp.Environment != "sandbox" && sp.Environment != "production" {
		return fmt.Errorf("scalapay.environment must be sandbox or production, got %q", sp.Environment)
	}
	if _, err := domain.ParseOrderState(sp.FallbackState); err != nil {
		return fmt.Errorf("scalapay.fallback_state: %w", err)
	}
	return nil
}
