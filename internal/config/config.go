// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// minProductionSecretLen is the shortest signing secret accepted when
// APP_ENV=production.
const minProductionSecretLen = 32

// Config holds all environment-based configuration.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	SentryDSN   string `env:"SENTRY_DSN"`

	DatabaseURL            string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns         int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns         int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime      time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBConnMaxIdleTime      time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"10m"`
	StoreTimeout           time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	RunMigrationsOnStartup bool          `env:"RUN_MIGRATIONS_ON_STARTUP" envDefault:"true"`

	// Access and refresh tokens are signed with independent secrets.
	AccessSecret    string        `env:"JWT_ACCESS_SECRET,required,notEmpty"`
	RefreshSecret   string        `env:"JWT_REFRESH_SECRET,required,notEmpty"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`

	// When true, /forget-password answers 200 for unknown emails as well.
	ResetUniformResponse bool   `env:"RESET_UNIFORM_RESPONSE" envDefault:"false"`
	ResetLinkBaseURL     string `env:"RESET_LINK_BASE_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SupportEmail string `env:"SUPPORT_EMAIL"`

	RedisURL       string   `env:"REDIS_URL"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	CronSecret     string   `env:"CRON_SECRET"`
	CleanupBatch   int      `env:"AUTH_CLEANUP_BATCH_SIZE" envDefault:"500"`

	// Number of reverse proxies in front of the service whose
	// X-Forwarded-For entries are trusted for client IPs.
	TrustedProxyHops int `env:"TRUSTED_PROXY_HOPS" envDefault:"0"`

	LoginRateLimit   int           `env:"LOGIN_RATE_LIMIT_MAX" envDefault:"5"`
	LoginRateWindow  time.Duration `env:"LOGIN_RATE_LIMIT_WINDOW" envDefault:"15m"`
	ForgetRateLimit  int           `env:"FORGET_RATE_LIMIT_MAX" envDefault:"5"`
	ForgetRateWindow time.Duration `env:"FORGET_RATE_LIMIT_WINDOW" envDefault:"15m"`
	ResetRateLimit   int           `env:"RESET_RATE_LIMIT_MAX" envDefault:"3"`
	ResetRateWindow  time.Duration `env:"RESET_RATE_LIMIT_WINDOW" envDefault:"1h"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminTenant   string `env:"ADMIN_TENANT" envDefault:"System"`
}

// Options controls how Load reads the environment.
type Options struct {
	// LoadDotEnv reads a .env file from the working directory first.
	LoadDotEnv bool
}

// Load reads configuration from environment variables and validates it.
func Load(opts Options) (*Config, error) {
	if opts.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ResetLinkBaseURL = strings.TrimRight(strings.TrimSpace(cfg.ResetLinkBaseURL), "/")
	if cfg.ResetLinkBaseURL == "" && len(cfg.AllowedOrigins) > 0 {
		cfg.ResetLinkBaseURL = strings.TrimRight(strings.TrimSpace(cfg.AllowedOrigins[0]), "/")
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TrustedProxyHops < 0 {
		return fmt.Errorf("TRUSTED_PROXY_HOPS must not be negative")
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.IsProduction() {
		if len(c.AccessSecret) < minProductionSecretLen || len(c.RefreshSecret) < minProductionSecretLen {
			return fmt.Errorf("JWT secrets must be at least %d bytes in production", minProductionSecretLen)
		}
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required in production")
		}
		if c.ResetLinkBaseURL == "" {
			return fmt.Errorf("RESET_LINK_BASE_URL or ALLOWED_ORIGINS is required in production")
		}
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
