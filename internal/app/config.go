package app

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr         string
	UpstreamTimeout  time.Duration
	RetryAttempts    int
	MaxConcurrent    int
	LogLevel         string
	LogFormat        string
	UserAgent        string
	SansekaiBaseURL  string
	SapimuBaseURL    string
	SapimuToken      string
	CatalogFile      string
	RedisURL         string
	CacheTTL         time.Duration
	CacheDisabled    bool
	LibraryPath      string
	RateLimitRPS     float64
	RateLimitBurst   int
	PassThroughLimit time.Duration
}

// LoadDotEnv reads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8090"),
		UpstreamTimeout:  time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 10)) * time.Second,
		RetryAttempts:    getEnvInt("UPSTREAM_RETRY_ATTEMPTS", 1),
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT_FETCHES", 16),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:        getEnv("UPSTREAM_USER_AGENT", "rfxstream-catalog/1.0"),
		SansekaiBaseURL:  getEnv("SANSEKAI_BASE_URL", "https://api.sansekai.my.id/api"),
		SapimuBaseURL:    getEnv("SAPIMU_BASE_URL", "https://sapimu.au"),
		SapimuToken:      strings.TrimSpace(os.Getenv("SAPIMU_API_TOKEN")),
		CatalogFile:      getEnv("CATALOG_FILE", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheTTL:         time.Duration(getEnvInt("CATALOG_CACHE_TTL_MINUTES", 5)) * time.Minute,
		CacheDisabled:    getEnvBool("CATALOG_CACHE_DISABLED", false),
		LibraryPath:      getEnv("LIBRARY_PATH", "data/library.json"),
		RateLimitRPS:     float64(getEnvInt("RATE_LIMIT_RPS", 50)),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 100),
		PassThroughLimit: time.Duration(getEnvInt("PASSTHROUGH_TIMEOUT_SECONDS", 15)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
