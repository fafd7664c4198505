package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Directory DirectoryConfig
	Audit     AuditConfig
	Retention RetentionConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int

	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32

	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
}

// DirectoryConfig points at the external identity/domain directory service.
type DirectoryConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// AuditConfig governs the audit event store and read API.
type AuditConfig struct {
	TablePrefix  string
	TTLDays      int
	MaxLimit     int
	DefaultLimit int
	MaskIPs      []string
}

type RetentionConfig struct {
	Interval time.Duration
}

type RateLimitConfig struct {
	Enabled   bool
	MaxReqs   int
	WindowSec int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),

			CORSAllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),

			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		Directory: DirectoryConfig{
			BaseURL: k.String("directory.base.url"),
		},
		Audit: AuditConfig{
			TablePrefix:  k.String("audit.table.prefix"),
			TTLDays:      k.Int("audit.record.ttl.days"),
			MaxLimit:     k.Int("audit.max.limit"),
			DefaultLimit: k.Int("audit.default.limit"),
			MaskIPs:      k.Strings("audit.mask.ips"),
		},
		RateLimit: RateLimitConfig{
			Enabled:   k.Bool("ratelimit.enabled"),
			MaxReqs:   k.Int("ratelimit.max.reqs"),
			WindowSec: k.Int("ratelimit.window.sec"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "auditline"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "auditline"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Directory.BaseURL == "" {
		cfg.Directory.BaseURL = "http://localhost:8081"
	}
	if cfg.Audit.TablePrefix == "" {
		cfg.Audit.TablePrefix = "auditlog_"
	}
	if cfg.Audit.TTLDays == 0 {
		cfg.Audit.TTLDays = 90
	}
	if cfg.Audit.MaxLimit == 0 {
		cfg.Audit.MaxLimit = 500
	}
	if cfg.Audit.DefaultLimit == 0 {
		cfg.Audit.DefaultLimit = 100
	}
	if cfg.RateLimit.MaxReqs == 0 {
		cfg.RateLimit.MaxReqs = 60
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	dirTimeoutStr := k.String("directory.timeout")
	if dirTimeoutStr == "" {
		dirTimeoutStr = "5s"
	}
	cfg.Directory.Timeout, err = time.ParseDuration(dirTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing directory timeout: %w", err)
	}

	dirCacheStr := k.String("directory.cache.ttl")
	if dirCacheStr == "" {
		dirCacheStr = "60s"
	}
	cfg.Directory.CacheTTL, err = time.ParseDuration(dirCacheStr)
	if err != nil {
		return nil, fmt.Errorf("parsing directory cache ttl: %w", err)
	}

	retentionStr := k.String("retention.interval")
	if retentionStr == "" {
		retentionStr = "24h"
	}
	cfg.Retention.Interval, err = time.ParseDuration(retentionStr)
	if err != nil {
		return nil, fmt.Errorf("parsing retention interval: %w", err)
	}

	return cfg, nil
}
