// Package config assembles runtime settings for the posthub binaries from
// defaults, an optional YAML file, POSTHUB_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLength = 5

// Config holds runtime settings for the API server and the bot.
type Config struct {
	HTTPAddr    string   `yaml:"http_addr"`
	GRPCAddr    string   `yaml:"grpc_addr"`
	LogLevel    string   `yaml:"log_level"`
	AutoMigrate bool     `yaml:"auto_migrate"`
	CORSOrigins []string `yaml:"cors_origins"`
	// TrustedProxies are addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string       `yaml:"trusted_proxies"`
	RateLimit      RateLimit      `yaml:"rate_limit"`
	Postgres       PostgresConfig `yaml:"postgres"`
	Redis          RedisConfig    `yaml:"redis"`
	Auth           AuthConfig     `yaml:"auth"`
	Bot            BotConfig      `yaml:"bot"`

	// Args holds the positional command-line arguments left after flags.
	Args []string `yaml:"-"`
}

// RateLimit bounds credential endpoints per client address.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// PostgresConfig locates the database. DSN, when set, wins over the parts.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       string `yaml:"db"`
	SSLMode  string `yaml:"sslmode"`
}

// URL returns the connection string, or "" when no database is configured.
func (p PostgresConfig) URL() string {
	if p.DSN != "" {
		return p.DSN
	}
	if p.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.DB,
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// RedisConfig locates the revocation cache. URL, when set, wins over the parts.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Host   string `yaml:"host"`
	Port   string `yaml:"port"`
	DB     int    `yaml:"db"`
	Prefix string `yaml:"prefix"`
}

// ConnURL returns a redis:// URL, or "" when Redis is not configured.
func (r RedisConfig) ConnURL() string {
	if r.URL != "" {
		return r.URL
	}
	if r.Host == "" {
		return ""
	}
	return "redis://" + net.JoinHostPort(r.Host, r.Port) + "/" + strconv.Itoa(r.DB)
}

// AuthConfig carries token signing settings.
type AuthConfig struct {
	SecretKey                string `yaml:"secret_key"`
	Algorithm                string `yaml:"algorithm"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes"`
}

// AccessTTL returns the lifetime of tokens issued at login.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// BotConfig carries the chat-bot settings.
type BotConfig struct {
	TelegramToken string        `yaml:"telegram_token"`
	APIURL        string        `yaml:"api_url"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	PollTimeout   int           `yaml:"poll_timeout"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret is insecure and must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":9090"
	c.LogLevel = "info"
	c.AutoMigrate = false
	c.CORSOrigins = nil
	c.TrustedProxies = nil
	c.RateLimit = RateLimit{PerSecond: 5, Burst: 10}
	c.Postgres = PostgresConfig{Port: "5432", DB: "posts", SSLMode: "disable"}
	c.Redis = RedisConfig{Port: "6379", Prefix: "revoked:"}
	c.Auth = AuthConfig{SecretKey: "admin", Algorithm: "HS256", AccessTokenExpireMinutes: 30}
	c.Bot = BotConfig{APIURL: "http://localhost:8080", SessionTTL: 24 * time.Hour, PollTimeout: 60}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if len(strings.TrimSpace(c.Auth.SecretKey)) < minSecretLength {
		errs = append(errs, fmt.Errorf("auth secret must be at least %d characters", minSecretLength))
	}
	if _, ok := jwt.GetSigningMethod(strings.ToUpper(c.Auth.Algorithm)).(*jwt.SigningMethodHMAC); !ok {
		errs = append(errs, fmt.Errorf("unsupported signing algorithm %q", c.Auth.Algorithm))
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("access token lifetime must be positive"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("invalid trusted proxy %q", p))
		}
	}
	if c.Bot.SessionTTL < 0 {
		errs = append(errs, errors.New("bot session ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateBot checks the settings the chat-bot needs on top of Validate.
func (c *Config) ValidateBot() error {
	var errs []error
	if c.Bot.TelegramToken == "" {
		errs = append(errs, errors.New("telegram bot token is required"))
	}
	if _, err := url.ParseRequestURI(c.Bot.APIURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid api url %q: %w", c.Bot.APIURL, err))
	}
	return errors.Join(errs...)
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
