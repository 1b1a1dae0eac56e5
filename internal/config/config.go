// Package config loads gif-api settings from defaults, an optional config
// file, GIFAPI_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "GIFAPI"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	StoreMemory    = "memory"
)

type TLSConfig struct {
	CertFile string `mapstructure:"cert"`
	KeyFile  string `mapstructure:"key"`
}

type StorageConfig struct {
	Driver           string `mapstructure:"driver"`
	SQLitePath       string `mapstructure:"sqlite_path"`
	PostgresDSN      string `mapstructure:"postgres_dsn"`
	PostgresMaxConns int32  `mapstructure:"postgres_max_conns"`
}

type SessionConfig struct {
	// Store is memory or the storage driver name. Empty means the storage
	// driver.
	Store         string        `mapstructure:"store"`
	TTL           time.Duration `mapstructure:"ttl"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type AdminConfig struct {
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

type RateLimitConfig struct {
	GlobalRPS     float64       `mapstructure:"global_rps"`
	GlobalBurst   int           `mapstructure:"global_burst"`
	LoginLimit    int           `mapstructure:"login_limit"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisTimeout  time.Duration `mapstructure:"redis_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Addr              string          `mapstructure:"addr"`
	TLS               TLSConfig       `mapstructure:"tls"`
	Storage           StorageConfig   `mapstructure:"storage"`
	Session           SessionConfig   `mapstructure:"session"`
	Admin             AdminConfig     `mapstructure:"admin"`
	CORS              CORSConfig      `mapstructure:"cors"`
	RateLimit         RateLimitConfig `mapstructure:"rate"`
	Log               LogConfig       `mapstructure:"log"`
	TrustProxyHeaders bool            `mapstructure:"trust_proxy_headers"`
	ShutdownTimeout   time.Duration   `mapstructure:"shutdown_timeout"`
}

// binding ties a viper key to its flag and environment names. Env names are
// listed in priority order.
type binding struct {
	key  string
	flag string
	env  []string
}

var bindings = []binding{
	{key: "addr", flag: "addr", env: []string{"GIFAPI_ADDR"}},
	{key: "tls.cert", flag: "tls-cert", env: []string{"GIFAPI_TLS_CERT"}},
	{key: "tls.key", flag: "tls-key", env: []string{"GIFAPI_TLS_KEY"}},
	{key: "storage.driver", flag: "storage-driver", env: []string{"GIFAPI_STORAGE_DRIVER"}},
	{key: "storage.sqlite_path", flag: "sqlite-path", env: []string{"GIFAPI_SQLITE_PATH"}},
	{key: "storage.postgres_dsn", flag: "postgres-dsn", env: []string{"GIFAPI_POSTGRES_DSN", "DATABASE_URL"}},
	{key: "storage.postgres_max_conns", flag: "postgres-max-conns", env: []string{"GIFAPI_POSTGRES_MAX_CONNS"}},
	{key: "session.store", flag: "session-store", env: []string{"GIFAPI_SESSION_STORE"}},
	{key: "session.ttl", flag: "session-ttl", env: []string{"GIFAPI_SESSION_TTL"}},
	{key: "session.purge_interval", flag: "session-purge-interval", env: []string{"GIFAPI_SESSION_PURGE_INTERVAL"}},
	{key: "admin.password", env: []string{"GIFAPI_ADMIN_PASSWORD"}},
	{key: "admin.password_hash", env: []string{"GIFAPI_ADMIN_PASSWORD_HASH"}},
	{key: "cors.origins", flag: "cors-origins", env: []string{"GIFAPI_CORS_ORIGINS"}},
	{key: "rate.global_rps", flag: "rate-global-rps", env: []string{"GIFAPI_RATE_GLOBAL_RPS"}},
	{key: "rate.global_burst", flag: "rate-global-burst", env: []string{"GIFAPI_RATE_GLOBAL_BURST"}},
	{key: "rate.login_limit", flag: "rate-login-limit", env: []string{"GIFAPI_RATE_LOGIN_LIMIT"}},
	{key: "rate.login_window", flag: "rate-login-window", env: []string{"GIFAPI_RATE_LOGIN_WINDOW"}},
	{key: "rate.redis_addr", flag: "rate-redis-addr", env: []string{"GIFAPI_RATE_REDIS_ADDR"}},
	{key: "rate.redis_password", env: []string{"GIFAPI_RATE_REDIS_PASSWORD"}},
	{key: "rate.redis_db", flag: "rate-redis-db", env: []string{"GIFAPI_RATE_REDIS_DB"}},
	{key: "rate.redis_timeout", flag: "rate-redis-timeout", env: []string{"GIFAPI_RATE_REDIS_TIMEOUT"}},
	{key: "log.level", flag: "log-level", env: []string{"GIFAPI_LOG_LEVEL"}},
	{key: "log.format", flag: "log-format", env: []string{"GIFAPI_LOG_FORMAT"}},
	{key: "trust_proxy_headers", flag: "trust-proxy-headers", env: []string{"GIFAPI_TRUST_PROXY_HEADERS"}},
	{key: "shutdown_timeout", flag: "shutdown-timeout", env: []string{"GIFAPI_SHUTDOWN_TIMEOUT"}},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8000")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "gifs.db")
	v.SetDefault("storage.postgres_max_conns", 0)
	v.SetDefault("session.store", "")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.purge_interval", 10*time.Minute)
	v.SetDefault("cors.origins", []string{})
	v.SetDefault("rate.global_rps", 0)
	v.SetDefault("rate.global_burst", 0)
	v.SetDefault("rate.login_limit", 10)
	v.SetDefault("rate.login_window", time.Minute)
	v.SetDefault("rate.redis_db", 0)
	v.SetDefault("rate.redis_timeout", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("trust_proxy_headers", false)
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// NewFlagSet declares every command-line flag Load understands.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML, JSON or TOML config file")
	fs.String("addr", "", "HTTP listen address")
	fs.String("tls-cert", "", "path to TLS certificate file")
	fs.String("tls-key", "", "path to TLS private key file")
	fs.String("storage-driver", "", "record store driver (sqlite or postgres)")
	fs.String("sqlite-path", "", "path to the SQLite database file")
	fs.String("postgres-dsn", "", "Postgres connection string")
	fs.Int32("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	fs.String("session-store", "", "session store (memory, sqlite or postgres; defaults to the storage driver)")
	fs.Duration("session-ttl", 0, "lifetime of issued tokens")
	fs.Duration("session-purge-interval", 0, "interval between expired token sweeps")
	fs.StringSlice("cors-origins", nil, "comma separated browser origins allowed to call the API (* for any)")
	fs.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	fs.Int("rate-global-burst", 0, "global rate limit burst allowance")
	fs.Int("rate-login-limit", 0, "maximum login attempts per window for a single client")
	fs.Duration("rate-login-window", 0, "window for counting login attempts")
	fs.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	fs.Int("rate-redis-db", 0, "Redis database for distributed login throttling")
	fs.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (json or text)")
	fs.Bool("trust-proxy-headers", false, "trust X-Forwarded-For when resolving client addresses")
	fs.Duration("shutdown-timeout", 0, "graceful shutdown timeout")
	return fs
}

// Load parses args and resolves the configuration. Flags that were not set
// on the command line do not override env or file values.
func Load(args []string) (Config, error) {
	fs := NewFlagSet("gif-api")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)

	for _, b := range bindings {
		if err := v.BindEnv(append([]string{b.key}, b.env...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", b.key, err)
		}
		if b.flag == "" {
			continue
		}
		if err := v.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}

	configFile, _ := fs.GetString("config")
	if configFile == "" {
		_ = v.BindEnv("config", "GIFAPI_CONFIG")
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	if c.Session.Store == "" {
		c.Session.Store = c.Storage.Driver
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	origins := make([]string, 0, len(c.CORS.Origins))
	for _, origin := range c.CORS.Origins {
		for _, part := range strings.Split(origin, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.CORS.Origins = origins
}

// Validate reports every problem with the resolved configuration.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			errs = append(errs, errors.New("sqlite path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.Storage.Driver))
	}

	switch c.Session.Store {
	case StoreMemory, c.Storage.Driver:
	default:
		errs = append(errs, fmt.Errorf("session store %q must be memory or match the storage driver %q", c.Session.Store, c.Storage.Driver))
	}

	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.Session.PurgeInterval <= 0 {
		errs = append(errs, errors.New("session purge interval must be positive"))
	}
	if c.RateLimit.LoginLimit < 0 {
		errs = append(errs, errors.New("login rate limit cannot be negative"))
	}
	if c.RateLimit.GlobalRPS < 0 {
		errs = append(errs, errors.New("global rate limit cannot be negative"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("both tls cert and key must be provided"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
