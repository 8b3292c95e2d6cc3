package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"muebles/pkg/rabbitmq"
	"muebles/pkg/xano"
)

const (
	BackendXano  = "xano"
	BackendLocal = "local"
)

// Config is the resolved application configuration.
type Config struct {
	AppPort        string
	LogLevel       string
	JWTSecret      string
	DBDriver       string
	DatabaseDSN    string
	RabbitMQURL    string
	Queue          string
	OrderBackend   string
	DraftLineLimit int
	Xano           xano.Config
}

// UsesXano reports whether orders are stored upstream.
func (c Config) UsesXano() bool {
	return c.OrderBackend == BackendXano
}

// RemoteIdentity reports whether logins are resolved by the upstream API.
func (c Config) RemoteIdentity() bool {
	return c.Xano.BaseURL != "" || c.Xano.AuthBaseURL != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "muebles.db")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("NOTIFICATION_QUEUE", rabbitmq.DefaultQueue)
	v.SetDefault("ORDER_BACKEND", "")
	v.SetDefault("XANO_BASE_URL", "")
	v.SetDefault("XANO_AUTH_BASE_URL", "")
	v.SetDefault("XANO_ADMIN_BASE_URL", "")
	v.SetDefault("XANO_TIMEOUT", "8s")
	v.SetDefault("XANO_ORDER_RESOURCES", strings.Join(xano.DefaultOrderResources, ","))
	v.SetDefault("XANO_LINE_RESOURCES", strings.Join(xano.DefaultLineResources, ","))
	v.SetDefault("XANO_ROUTING_HINTS", strings.Join(xano.DefaultRoutingHints, ","))
	v.SetDefault("XANO_LOGIN_ENDPOINT", "")
	v.SetDefault("XANO_LOGIN_ENDPOINT_ADMIN", "")
	v.SetDefault("DRAFT_LINE_LIMIT", 50)
}

// Load reads defaults, the optional CONFIG_FILE and the environment, in
// increasing order of precedence.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config file %s", file)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("XANO_TIMEOUT"))
	if err != nil || timeout <= 0 {
		return Config{}, errors.Errorf("invalid XANO_TIMEOUT %q", v.GetString("XANO_TIMEOUT"))
	}

	cfg := Config{
		AppPort:        v.GetString("APP_PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		Queue:          v.GetString("NOTIFICATION_QUEUE"),
		OrderBackend:   strings.ToLower(v.GetString("ORDER_BACKEND")),
		DraftLineLimit: v.GetInt("DRAFT_LINE_LIMIT"),
		Xano: xano.Config{
			BaseURL:            v.GetString("XANO_BASE_URL"),
			AuthBaseURL:        v.GetString("XANO_AUTH_BASE_URL"),
			AdminBaseURL:       v.GetString("XANO_ADMIN_BASE_URL"),
			Timeout:            timeout,
			OrderResources:     splitList(v.GetString("XANO_ORDER_RESOURCES")),
			LineResources:      splitList(v.GetString("XANO_LINE_RESOURCES")),
			RoutingHints:       splitList(v.GetString("XANO_ROUTING_HINTS")),
			LoginEndpoint:      v.GetString("XANO_LOGIN_ENDPOINT"),
			AdminLoginEndpoint: v.GetString("XANO_LOGIN_ENDPOINT_ADMIN"),
		},
	}

	if cfg.OrderBackend == "" {
		cfg.OrderBackend = BackendLocal
		if cfg.Xano.BaseURL != "" {
			cfg.OrderBackend = BackendXano
		}
	}
	if cfg.OrderBackend != BackendXano && cfg.OrderBackend != BackendLocal {
		return Config{}, errors.Errorf("invalid ORDER_BACKEND %q", cfg.OrderBackend)
	}
	if cfg.UsesXano() && cfg.Xano.BaseURL == "" && cfg.Xano.AuthBaseURL == "" {
		return Config{}, errors.New("ORDER_BACKEND=xano requires XANO_BASE_URL or XANO_AUTH_BASE_URL")
	}
	if !cfg.RemoteIdentity() && weakSecret(cfg.JWTSecret) {
		return Config{}, errors.New("JWT_SECRET must be set to a private value when tokens are issued locally")
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return Config{}, errors.Errorf("invalid DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

// weakSecret reports secrets that anyone could guess.
func weakSecret(secret string) bool {
	switch strings.TrimSpace(secret) {
	case "", "change_me", "secret":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
