package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	RedisURL string `mapstructure:"REDIS_URL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	UploadMaxBytes int64  `mapstructure:"UPLOAD_MAX_BYTES"`

	OutboxInterval       string        `mapstructure:"OUTBOX_INTERVAL"`
	OutboxMaxAttempts    int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	OutboxLease          time.Duration `mapstructure:"OUTBOX_LEASE"`
	NotificationPageSize int           `mapstructure:"NOTIFICATION_PAGE_SIZE"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

var envKeys = []string{
	"PORT", "ENV", "CORS_ORIGINS",
	"STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MONGO_URI", "MONGO_DATABASE",
	"JWT_SECRET", "JWT_TTL",
	"REDIS_URL",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"UPLOAD_DIR", "UPLOAD_MAX_BYTES",
	"OUTBOX_INTERVAL", "OUTBOX_MAX_ATTEMPTS", "OUTBOX_LEASE", "NOTIFICATION_PAGE_SIZE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// Load reads configuration from the process environment. A .env file in the
// working directory is copied into the environment first; variables that are
// already set win over the file. ENV defaults to production, so development
// mode has to be asked for.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "production")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MONGO_DATABASE", "clinic")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 5<<20)
	v.SetDefault("OUTBOX_INTERVAL", "@every 10s")
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 5)
	v.SetDefault("OUTBOX_LEASE", "2m")
	v.SetDefault("NOTIFICATION_PAGE_SIZE", 50)
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A comma separated env value arrives as a single element.
	origins := v.GetString("CORS_ORIGINS")
	if len(cfg.CORSOrigins) <= 1 && origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// Validate checks that every setting the server cannot run without is present.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER is %q", StoreMongo)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMongo, c.StoreDriver)
	}

	if c.IsProduction() {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP_HOST, SMTP_USERNAME and SMTP_PASSWORD are required in production")
		}
	}
	if c.MailEnabled() && c.SMTPFrom == "" {
		c.SMTPFrom = c.SMTPUsername
	}

	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if c.OutboxLease < 0 {
		return fmt.Errorf("OUTBOX_LEASE must not be negative, got %s", c.OutboxLease)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
