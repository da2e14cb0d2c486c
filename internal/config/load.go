package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const envPrefix = "POSTHUB_"

// LookupEnv matches os.LookupEnv; tests substitute a map lookup.
type LookupEnv func(key string) (string, bool)

// Load builds a Config for the program name from args (without the program
// name) and the environment. It returns pflag.ErrHelp when -h is given.
func Load(name string, args []string, lookup LookupEnv) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := &Config{}
	cfg.LoadDefaults()

	path, err := configPath(args, lookup)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	fs := cfg.FlagSet(name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Args = fs.Args()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// configPath finds --config in args, falling back to POSTHUB_CONFIG.
func configPath(args []string, lookup LookupEnv) (string, error) {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)
	path := fs.StringP("config", "c", "", "")
	fs.BoolP("help", "h", false, "")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *path != "" {
		return *path, nil
	}
	v, _ := lookup(envPrefix + "CONFIG")
	return v, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// FlagSet binds command-line flags to c, using the current values as defaults.
func (c *Config) FlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a YAML config file (env POSTHUB_CONFIG)")

	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.GRPCAddr, "grpc-addr", c.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&c.AutoMigrate, "auto-migrate", c.AutoMigrate, "apply database migrations on startup")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origin", c.CORSOrigins, "allowed CORS origin (repeatable)")
	fs.StringSliceVar(&c.TrustedProxies, "trusted-proxy", c.TrustedProxies, "proxy address or CIDR whose X-Forwarded-For is trusted (repeatable)")
	fs.Float64Var(&c.RateLimit.PerSecond, "login-rate", c.RateLimit.PerSecond, "credential requests per second per client")
	fs.IntVar(&c.RateLimit.Burst, "login-burst", c.RateLimit.Burst, "credential request burst per client")

	fs.StringVar(&c.Postgres.DSN, "database-url", c.Postgres.DSN, "PostgreSQL DSN (overrides postgres-* parts)")
	fs.StringVar(&c.Postgres.Host, "postgres-host", c.Postgres.Host, "PostgreSQL host")
	fs.StringVar(&c.Postgres.Port, "postgres-port", c.Postgres.Port, "PostgreSQL port")
	fs.StringVar(&c.Postgres.DB, "postgres-db", c.Postgres.DB, "PostgreSQL database")

	fs.StringVar(&c.Redis.URL, "redis-url", c.Redis.URL, "Redis URL (overrides redis-* parts)")
	fs.StringVar(&c.Redis.Host, "redis-host", c.Redis.Host, "Redis host (empty keeps revocations in memory)")
	fs.StringVar(&c.Redis.Port, "redis-port", c.Redis.Port, "Redis port")
	fs.IntVar(&c.Redis.DB, "redis-db", c.Redis.DB, "Redis database number")

	fs.StringVar(&c.Auth.Algorithm, "algorithm", c.Auth.Algorithm, "token signing algorithm (HS256, HS384, HS512)")
	fs.IntVar(&c.Auth.AccessTokenExpireMinutes, "access-token-minutes", c.Auth.AccessTokenExpireMinutes, "access token lifetime in minutes")

	fs.StringVar(&c.Bot.APIURL, "api-url", c.Bot.APIURL, "posthub API base URL used by the bot")
	fs.DurationVar(&c.Bot.SessionTTL, "session-ttl", c.Bot.SessionTTL, "idle lifetime of a bot session")
	return fs
}

func (c *Config) applyEnv(lookup LookupEnv) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, envPrefix+key)
				return
			}
			*dst = n
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup(envPrefix + "AUTO_MIGRATE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, envPrefix+"AUTO_MIGRATE")
		} else {
			c.AutoMigrate = b
		}
	}
	if v, ok := lookup(envPrefix + "CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := lookup(envPrefix + "TRUSTED_PROXIES"); ok {
		c.TrustedProxies = splitList(v)
	}
	if v, ok := lookup(envPrefix + "LOGIN_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, envPrefix+"LOGIN_RATE")
		} else {
			c.RateLimit.PerSecond = f
		}
	}
	num("LOGIN_BURST", &c.RateLimit.Burst)

	str("DATABASE_URL", &c.Postgres.DSN)
	str("POSTGRES_HOST", &c.Postgres.Host)
	str("POSTGRES_PORT", &c.Postgres.Port)
	str("POSTGRES_USER", &c.Postgres.User)
	str("POSTGRES_PASSWORD", &c.Postgres.Password)
	str("POSTGRES_DB", &c.Postgres.DB)
	str("POSTGRES_SSLMODE", &c.Postgres.SSLMode)

	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PORT", &c.Redis.Port)
	num("REDIS_DB", &c.Redis.DB)
	str("REDIS_PREFIX", &c.Redis.Prefix)

	str("SECRET_KEY", &c.Auth.SecretKey)
	str("ALGORITHM", &c.Auth.Algorithm)
	num("ACCESS_TOKEN_EXPIRE_MINUTES", &c.Auth.AccessTokenExpireMinutes)

	str("TELEGRAM_BOT_TOKEN", &c.Bot.TelegramToken)
	str("API_URL", &c.Bot.APIURL)
	if v, ok := lookup(envPrefix + "SESSION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, envPrefix+"SESSION_TTL")
		} else {
			c.Bot.SessionTTL = d
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(errs, ", "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
