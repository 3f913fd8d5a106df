package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	AWS       AWSConfig       `yaml:"aws"`
	APNs      APNsConfig      `yaml:"apns"`
	JWT       JWTConfig       `yaml:"jwt"`
	Matching  MatchingConfig  `yaml:"matching"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int      `yaml:"port"`
	Host         string   `yaml:"host"`
	AllowOrigins []string `yaml:"allow_origins"`
	SecureCookie bool     `yaml:"secure_cookie"`
}

// DatabaseConfig holds database configuration.
// Driver is "postgres" or "memory".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis configuration; an empty Addr disables Redis
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig configures the token buckets kept in Redis
type RateLimitConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Prefix   string       `yaml:"prefix"`
	General  BucketConfig `yaml:"general"`
	Login    BucketConfig `yaml:"login"`
	Register BucketConfig `yaml:"register"`
}

// BucketConfig is one token bucket: Capacity tokens, refilled fully every Window
type BucketConfig struct {
	Capacity int           `yaml:"capacity"`
	Window   time.Duration `yaml:"window"`
}

// RabbitMQConfig holds broker configuration; an empty URL disables publishing
type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	PublicURL string `yaml:"public_url"`
}

// APNsConfig holds Apple push configuration; an empty KeyPath disables push
type APNsConfig struct {
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// MatchingConfig selects the candidate selection strategy: "random" or "first"
type MatchingConfig struct {
	Strategy string `yaml:"strategy"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, then applies environment
// overrides (a .env file in the working directory is loaded first).
// A missing file is fine as long as the environment provides the rest.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			Host:         "0.0.0.0",
			AllowOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "meetup",
			SSLMode: "disable",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Prefix:   "rl",
			General:  BucketConfig{Capacity: 100, Window: 15 * time.Minute},
			Login:    BucketConfig{Capacity: 5, Window: 15 * time.Minute},
			Register: BucketConfig{Capacity: 3, Window: time.Hour},
		},
		RabbitMQ: RabbitMQConfig{Exchange: "meetup.events"},
		JWT:      JWTConfig{TTL: 24 * time.Hour},
		Matching: MatchingConfig{Strategy: "random"},
		Log:      LogConfig{Level: "info"},
	}
}

func (c *Config) applyEnv() {
	c.Server.Port = envInt("PORT", c.Server.Port)
	c.Database.Driver = envStr("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = envStr("DATABASE_URL", c.Database.URL)
	c.Database.Password = envStr("DATABASE_PASSWORD", c.Database.Password)
	c.Redis.Addr = envStr("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envStr("REDIS_PASSWORD", c.Redis.Password)
	c.RabbitMQ.URL = envStr("RABBITMQ_URL", c.RabbitMQ.URL)
	c.AWS.AccessKey = envStr("AWS_ACCESS_KEY_ID", c.AWS.AccessKey)
	c.AWS.SecretKey = envStr("AWS_SECRET_ACCESS_KEY", c.AWS.SecretKey)
	c.JWT.Secret = envStr("JWT_SECRET", c.JWT.Secret)
	c.Matching.Strategy = envStr("MATCHING_STRATEGY", c.Matching.Strategy)
	c.Log.Level = envStr("LOG_LEVEL", c.Log.Level)
}

// Validate checks that required values are present and consistent
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("jwt.ttl must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Matching.Strategy {
	case "random", "first":
	default:
		return fmt.Errorf("unknown matching strategy %q", c.Matching.Strategy)
	}
	for name, b := range map[string]BucketConfig{
		"general":  c.RateLimit.General,
		"login":    c.RateLimit.Login,
		"register": c.RateLimit.Register,
	} {
		if c.RateLimit.Enabled && (b.Capacity < 1 || b.Window <= 0) {
			return fmt.Errorf("rate_limit.%s needs a positive capacity and window", name)
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}
