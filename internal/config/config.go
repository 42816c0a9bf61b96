package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

const (
	EngineHTTP       = "http"
	EnginePlaywright = "playwright"
	EngineRod        = "rod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverFile     = "file"

	maxAutoWorkers = 16
)

type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Consumer  ConsumerConfig
	Engine    EngineConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	Workers        int
	StoreTimeout   time.Duration
	WaitTimeout    time.Duration
	MaxCards       int
	ScrollFraction float64
	ScrollSettle   time.Duration
	RatePerSecond  float64
	RateBurst      int
	RateJitter     time.Duration
	StoresFile     string
}

type BrowserConfig struct {
	Engine     string
	Headless   bool
	Timeout    time.Duration
	MaxRetries int
	Locale     string
	UserAgent  string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	// Path is the file used by the sqlite and file drivers.
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
	Products []string
	Stores   []string
}

// ConsumerConfig controls comparisons requested over a Redis stream.
type ConsumerConfig struct {
	Enabled bool
	Stream  string
	Group   string
	Name    string
}

type EngineConfig struct {
	PersistOnCompare bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	workers, err := ResolveWorkers(getEnv("SCRAPER_WORKERS", "4"))
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Scraper: ScraperConfig{
			Workers:        workers,
			StoreTimeout:   getEnvDuration("SCRAPER_STORE_TIMEOUT", 45*time.Second),
			WaitTimeout:    getEnvDuration("SCRAPER_WAIT_TIMEOUT", 5*time.Second),
			MaxCards:       getEnvInt("SCRAPER_MAX_CARDS", 5),
			ScrollFraction: getEnvFloat("SCRAPER_SCROLL_FRACTION", 0.5),
			ScrollSettle:   getEnvDuration("SCRAPER_SCROLL_SETTLE", 2*time.Second),
			RatePerSecond:  getEnvFloat("SCRAPER_RATE_PER_SECOND", 0.5),
			RateBurst:      getEnvInt("SCRAPER_RATE_BURST", 1),
			RateJitter:     getEnvDuration("SCRAPER_RATE_JITTER", 500*time.Millisecond),
			StoresFile:     getEnv("STORES_FILE", ""),
		},
		Browser: BrowserConfig{
			Engine:     strings.ToLower(getEnv("BROWSER_ENGINE", EnginePlaywright)),
			Headless:   getEnvBool("BROWSER_HEADLESS", true),
			Timeout:    getEnvDuration("BROWSER_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("BROWSER_MAX_RETRIES", 2),
			Locale:     getEnv("BROWSER_LOCALE", "tr-TR"),
			UserAgent:  getEnv("BROWSER_USER_AGENT", ""),
		},
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "price_compare"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			Path:     getEnv("DB_PATH", defaultPath(driver)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", driver == DriverPostgres),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvBool("SCHEDULER_ENABLED", true),
			Interval: getEnvDuration("SCHEDULER_INTERVAL", 24*time.Hour),
			Products: getEnvList("SCHEDULER_PRODUCTS", []string{"water", "milk", "bread", "eggs"}),
			Stores:   getEnvList("SCHEDULER_STORES", []string{"migros", "sok", "carrefoursa"}),
		},
		Consumer: ConsumerConfig{
			Enabled: getEnvBool("CONSUMER_ENABLED", false),
			Stream:  getEnv("CONSUMER_STREAM", "stream:compare_requests"),
			Group:   getEnv("CONSUMER_GROUP", "price-compare-consumers"),
			Name:    getEnv("CONSUMER_NAME", "consumer-1"),
		},
		Engine: EngineConfig{
			PersistOnCompare: getEnvBool("PERSIST_ON_COMPARE", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("at least 1 scraper worker is required")
	}

	if c.Scraper.StoreTimeout <= 0 {
		return fmt.Errorf("SCRAPER_STORE_TIMEOUT must be positive")
	}

	if c.Scraper.MaxCards < 1 {
		return fmt.Errorf("SCRAPER_MAX_CARDS must be at least 1")
	}

	if c.Scraper.ScrollFraction < 0 || c.Scraper.ScrollFraction > 1 {
		return fmt.Errorf("SCRAPER_SCROLL_FRACTION must be between 0 and 1")
	}

	switch c.Browser.Engine {
	case EnginePlaywright, EngineRod, EngineHTTP:
	default:
		return fmt.Errorf("unsupported browser engine: %q", c.Browser.Engine)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
	case DriverSQLite, DriverFile:
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.Interval <= 0 {
			return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
		}
		if len(c.Scheduler.Stores) == 0 {
			return fmt.Errorf("SCHEDULER_STORES must name at least one store")
		}
	}

	if c.Consumer.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("CONSUMER_ENABLED requires REDIS_ENABLED")
	}

	return nil
}

// ResolveWorkers parses SCRAPER_WORKERS. "auto" uses half the logical
// cores, between 1 and 16.
func ResolveWorkers(value string) (int, error) {
	value = strings.TrimSpace(value)
	if !strings.EqualFold(value, "auto") {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid SCRAPER_WORKERS %q: %w", value, err)
		}
		return n, nil
	}

	cores, err := cpu.Counts(true)
	if err != nil {
		slog.Warn("could not detect cpu cores, using 2 workers", "error", err)
		return 2, nil
	}
	return clampWorkers(cores / 2), nil
}

func clampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxAutoWorkers {
		return maxAutoWorkers
	}
	return n
}

func defaultPath(driver string) string {
	switch driver {
	case DriverSQLite:
		return "price_compare.db"
	case DriverFile:
		return "price_compare.json"
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
