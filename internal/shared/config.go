package shared

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"`
	MySQLDSN    string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/seatview?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass   string `env:"REDIS_PASSWORD"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`

	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"15m"`
	ListCacheTTL time.Duration `env:"LIST_CACHE_TTL" envDefault:"1m"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"200"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"400"`

	// review photos
	PhotoBucket         string `env:"PHOTO_BUCKET" envDefault:"seatview-review-photos"`
	PhotoPublicBaseURL  string `env:"PHOTO_PUBLIC_BASE_URL"`
	PhotoMaxBytes       int64  `env:"PHOTO_MAX_BYTES" envDefault:"10485760"`
	StorageEmulatorHost string `env:"STORAGE_EMULATOR_HOST"`

	// warmer
	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	APITimeout  time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	WarmWorkers int           `env:"WARM_WORKERS" envDefault:"8"`
	WarmLimit   int           `env:"WARM_LIMIT" envDefault:"500"`
	WarmRPS     int           `env:"WARM_RPS" envDefault:"20"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.CacheTTL < time.Second || c.ListCacheTTL < time.Second {
		return Config{}, fmt.Errorf("cache TTLs must be at least 1s (CACHE_TTL=%s, LIST_CACHE_TTL=%s)", c.CacheTTL, c.ListCacheTTL)
	}
	if c.PhotoMaxBytes <= 0 {
		return Config{}, fmt.Errorf("PHOTO_MAX_BYTES must be positive, got %d", c.PhotoMaxBytes)
	}
	return c, nil
}
