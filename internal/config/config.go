package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	App       AppConfig `mapstructure:"app"`
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Runtime flags set from the command line, not from the config file.
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
	// Env mirrors NODE_ENV; "production" turns on secure cookies.
	Env string
	// TrustedProxies lists the addresses allowed to set X-Forwarded-For.
	// Empty means the client address is always the TCP peer.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests     int `mapstructure:"max_requests"`
	WindowMinutes   int `mapstructure:"window_minutes"`
	AuthMaxRequests int `mapstructure:"auth_max_requests"`
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	LogLevel  string `mapstructure:"log_level"`
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	RefreshSecret string `mapstructure:"refresh_secret"`
	Issuer        string `mapstructure:"issuer"`
	Audience      string `mapstructure:"audience"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"tls"`
}

// PolicyConfig holds the credential policy. It is built once at startup and
// handed to the services; nothing reads these values from the environment later.
type PolicyConfig struct {
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts"`
	LockoutDuration   time.Duration `mapstructure:"lockout_duration"`
	OTPTTL            time.Duration `mapstructure:"otp_ttl"`
	OTPResendCooldown time.Duration `mapstructure:"otp_resend_cooldown"`
	ResetLinkTTL      time.Duration `mapstructure:"reset_link_ttl"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL   time.Duration `mapstructure:"refresh_token_ttl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release" || c.IsProduction()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.env", "development")

	v.SetDefault("app.name", "CDC Attendance")
	v.SetDefault("app.frontend_url", "http://localhost:5173")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("jwt.issuer", "cadd-attendance")
	v.SetDefault("jwt.audience", "cadd-attendance-users")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.tls", true)

	v.SetDefault("policy.max_failed_attempts", 5)
	v.SetDefault("policy.lockout_duration", 15*time.Minute)
	v.SetDefault("policy.otp_ttl", 10*time.Minute)
	v.SetDefault("policy.otp_resend_cooldown", time.Minute)
	v.SetDefault("policy.reset_link_ttl", 10*time.Minute)
	v.SetDefault("policy.access_token_ttl", 2*time.Hour)
	v.SetDefault("policy.refresh_token_ttl", 7*24*time.Hour)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("rate_limit.max_requests", 1000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.auth_max_requests", 20)
}

func bindEnv(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.env", "NODE_ENV")
	v.BindEnv("server.trusted_proxies", "TRUSTED_PROXIES")
	v.BindEnv("app.frontend_url", "FRONTEND_URL")

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.refresh_secret", "JWT_REFRESH_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// SMTP
	v.BindEnv("smtp.enabled", "SMTP_ENABLED")
	v.BindEnv("smtp.host", "SMTP_HOST")
	v.BindEnv("smtp.port", "SMTP_PORT")
	v.BindEnv("smtp.username", "SMTP_USERNAME")
	v.BindEnv("smtp.password", "SMTP_PASSWORD")
	v.BindEnv("smtp.from", "SMTP_FROM")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")
}

// LoadConfig reads configs/config.yaml (when present) and the environment.
// A .env file in the working directory is loaded first if it exists.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CDC")
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.RefreshSecret == "" {
		c.JWT.RefreshSecret = c.JWT.Secret
	}

	// release builds need a strong signing secret
	if c.IsRelease() && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid trusted proxy %q", proxy)
			}
		}
	}

	if c.Policy.MaxFailedAttempts <= 0 {
		return errors.New("policy.max_failed_attempts must be positive")
	}
	return nil
}
