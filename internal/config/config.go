// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const minSecretLength = 32

type Config struct {
	App           AppConfig       `koanf:"app"`
	Server        ServerConfig    `koanf:"server"`
	Database      DatabaseConfig  `koanf:"database"`
	Redis         RedisConfig     `koanf:"redis"`
	JWT           JWTConfig       `koanf:"jwt"`
	Session       SessionConfig   `koanf:"session"`
	Cookie        CookieConfig    `koanf:"cookie"`
	Cache         CacheConfig     `koanf:"cache"`
	Email         EmailConfig     `koanf:"email"`
	Janitor       JanitorConfig   `koanf:"janitor"`
	RateLimit     RateLimitConfig `koanf:"rate_limit"`
	AuthRateLimit RateLimitConfig `koanf:"auth_rate_limit"`
	CORS          CORSConfig      `koanf:"cors"`
	Log           LogConfig       `koanf:"log"`
	Otel          OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	Secret             string        `koanf:"secret"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type SessionConfig struct {
	Secret     string        `koanf:"secret"`
	TTL        time.Duration `koanf:"ttl"`
	CookieName string        `koanf:"cookie_name"`
}

// CookieConfig scopes the auth cookies. Secure is derived from the
// environment, not configured.
type CookieConfig struct {
	APIPath     string `koanf:"api_path"`
	RefreshPath string `koanf:"refresh_path"`
	Secure      bool   `koanf:"-"`
}

type CacheConfig struct {
	UserTTL time.Duration `koanf:"user_ttl"`
}

type EmailConfig struct {
	From         string        `koanf:"from"`
	FrontendURL  string        `koanf:"frontend_url"`
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUsername string        `koanf:"smtp_username"`
	SMTPPassword string        `koanf:"smtp_password"`
	SMTPTimeout  time.Duration `koanf:"smtp_timeout"`
}

type JanitorConfig struct {
	Enabled bool `koanf:"enabled"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func read(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	c.Cookie.Secure = c.IsProduction()

	return c, nil
}

func load(configPath string) (*Config, error) {
	c, err := read(configPath)
	if err != nil {
		return nil, err
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadDatabase reads only what schema tooling needs, without requiring
// the auth secrets.
func LoadDatabase(configPath string) (DatabaseConfig, error) {
	c, err := read(configPath)
	if err != nil {
		return DatabaseConfig{}, err
	}

	if c.Database.URL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL is required")
	}

	return c.Database, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Auth Backend",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       false,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "auth-backend",
		"jwt.audience":             "auth-backend-api",

		"session.ttl":         "24h",
		"session.cookie_name": "sessionId",

		"cookie.api_path":     "/api",
		"cookie.refresh_path": "/api/auth/refresh",

		"cache.user_ttl": "5m",

		"email.from":         "noreply@example.com",
		"email.frontend_url": "http://localhost:5173",
		"email.smtp_port":    587,
		"email.smtp_timeout": "10s",

		"janitor.enabled": true,

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"auth_rate_limit.requests": 10,
		"auth_rate_limit.window":   "1m",
		"auth_rate_limit.burst":    5,

		"cors.allowed_origins": []string{"http://localhost:5173"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "auth-backend",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_SECRET":                  "jwt.secret",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"SESSION_SECRET":              "session.secret",
	"SESSION_TTL":                 "session.ttl",
	"CACHE_USER_TTL":              "cache.user_ttl",
	"EMAIL_FROM":                  "email.from",
	"FRONTEND_URL":                "email.frontend_url",
	"SMTP_HOST":                   "email.smtp_host",
	"SMTP_PORT":                   "email.smtp_port",
	"SMTP_USERNAME":               "email.smtp_username",
	"SMTP_PASSWORD":               "email.smtp_password",
	"SMTP_TIMEOUT":                "email.smtp_timeout",
	"TOKEN_JANITOR_ENABLED":       "janitor.enabled",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"AUTH_RATE_LIMIT_REQUESTS":    "auth_rate_limit.requests",
	"AUTH_RATE_LIMIT_BURST":       "auth_rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf(
			"JWT_SECRET must be at least %d characters",
			minSecretLength,
		)
	}

	if len(c.Session.Secret) < minSecretLength {
		return fmt.Errorf(
			"SESSION_SECRET must be at least %d characters",
			minSecretLength,
		)
	}

	if c.JWT.AccessTokenExpire <= 0 || c.JWT.RefreshTokenExpire <= 0 {
		return fmt.Errorf("jwt token expiries must be positive")
	}

	if c.JWT.AccessTokenExpire >= c.JWT.RefreshTokenExpire {
		return fmt.Errorf(
			"jwt.access_token_expire must be shorter than jwt.refresh_token_expire",
		)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	if c.Cache.UserTTL <= 0 {
		return fmt.Errorf("cache.user_ttl must be positive")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
