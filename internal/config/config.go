package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Cache      CacheConfig      `yaml:"cache"`
	Collectors CollectorsConfig `yaml:"collectors"`
}

type AppConfig struct {
	Name           string   `yaml:"name"`
	Env            string   `yaml:"env"`
	Port           int      `yaml:"port"`
	Debug          bool     `yaml:"debug"`
	RateLimit      int      `yaml:"rate_limit"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	// Empty Addr disables Redis; the listing cache falls back to an
	// in-process TTL map.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	// Secret for verifying bearer tokens issued by the external auth
	// system. Empty means every request is treated as anonymous.
	JWTSecret string `yaml:"jwt_secret"`
}

type CacheConfig struct {
	ListingTTL time.Duration `yaml:"listing_ttl"`
}

type CollectorsConfig struct {
	// Upstream endpoints are overridable so staging and tests can point at
	// fakes; defaults match the production sources.
	CNNGraphURL     string        `yaml:"cnn_graph_url"`
	CryptoFGIURL    string        `yaml:"crypto_fgi_url"`
	AlphaVantageURL string        `yaml:"alpha_vantage_url"`
	AlphaVantageKey string        `yaml:"alpha_vantage_key"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:      "finance-index-trackers",
			Env:       "development",
			Port:      8080,
			RateLimit: 100,
			AllowedOrigins: []string{
				"http://localhost:3000",
			},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "indicators",
			User:    "postgres",
			SSLMode: "disable",
		},
		Cache: CacheConfig{
			ListingTTL: 60 * time.Second,
		},
		Collectors: CollectorsConfig{
			CNNGraphURL:     "https://production.dataviz.cnn.io/index/fearandgreed/graphdata",
			CryptoFGIURL:    "https://api.alternative.me/fng/?limit=1",
			AlphaVantageURL: "https://www.alphavantage.co/query",
			FetchTimeout:    15 * time.Second,
		},
	}
}

func (c *Config) loadFromEnv() error {
	if env := os.Getenv("APP_ENV"); env != "" {
		c.App.Env = env
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.App.Port = p
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		dbConfig, err := parseDatabaseURL(url)
		if err != nil {
			return err
		}
		c.Database = *dbConfig
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}

	if key := os.Getenv("ALPHA_VANTAGE_API_KEY"); key != "" {
		c.Collectors.AlphaVantageKey = key
	}

	return nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.App.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Cache.ListingTTL < 0 {
		return fmt.Errorf("listing cache TTL must not be negative")
	}

	if c.Collectors.FetchTimeout <= 0 {
		return fmt.Errorf("collector fetch timeout must be positive")
	}

	return nil
}

func parseDatabaseURL(url string) (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{
		SSLMode: "disable",
	}

	url = strings.TrimPrefix(url, "postgresql://")
	url = strings.TrimPrefix(url, "postgres://")

	parts := strings.Split(url, "@")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid database URL format")
	}

	credentials := strings.SplitN(parts[0], ":", 2)
	cfg.User = credentials[0]
	if len(credentials) == 2 {
		cfg.Password = credentials[1]
	}

	hostInfo := strings.Split(parts[1], "/")
	if len(hostInfo) != 2 {
		return nil, fmt.Errorf("invalid host info format")
	}

	hostPort := strings.Split(hostInfo[0], ":")
	cfg.Host = hostPort[0]
	cfg.Port = 5432
	if len(hostPort) == 2 {
		port, err := strconv.Atoi(hostPort[1])
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %v", err)
		}
		cfg.Port = port
	}

	dbNameOpts := strings.Split(hostInfo[1], "?")
	cfg.Name = dbNameOpts[0]

	if len(dbNameOpts) > 1 {
		for _, opt := range strings.Split(dbNameOpts[1], "&") {
			kv := strings.Split(opt, "=")
			if len(kv) == 2 && kv[0] == "sslmode" {
				cfg.SSLMode = kv[1]
			}
		}
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
