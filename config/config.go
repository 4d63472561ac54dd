package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	minPollInterval = time.Second
	maxPollInterval = 2 * time.Second
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Redis    RedisConfig
	App      AppConfig
	MCPAddr  string
	CORSList []string
}

// ServerConfig holds server-related configurations
type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// BackendConfig points at the screener backend the UI talks to.
type BackendConfig struct {
	URL          string
	Timeout      time.Duration
	PollInterval time.Duration
}

// RedisConfig is optional; an empty URL disables the watchlist cache.
type RedisConfig struct {
	URL          string
	Username     string
	Password     string
	WatchlistTTL time.Duration
}

type AppConfig struct {
	Environment string
	LogLevel    string
}

// LoadEnv loads the first .env file found in paths. Missing files are not an error.
func LoadEnv(paths ...string) {
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded .env from: %s", path)
			return
		}
	}
	log.Println("No .env file found, using environment variables")
}

// Load reads configuration from environment variables
func Load() *Config {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	viper.SetDefault("SERVER_PORT", "3000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	viper.SetDefault("SERVER_IDLE_TIMEOUT", 60)
	viper.SetDefault("BACKEND_URL", "http://localhost:8000")
	viper.SetDefault("BACKEND_TIMEOUT", 30)
	viper.SetDefault("POLL_INTERVAL_MS", 2000)
	viper.SetDefault("WATCHLIST_CACHE_TTL", 300)
	viper.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:3000")
	viper.SetDefault("MCP_ADDR", "localhost:8081")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("APP_ENV", "development")

	return &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			ReadTimeout:  viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout: viper.GetInt("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  viper.GetInt("SERVER_IDLE_TIMEOUT"),
		},

		Backend: BackendConfig{
			URL:          strings.TrimRight(viper.GetString("BACKEND_URL"), "/"),
			Timeout:      time.Duration(viper.GetInt("BACKEND_TIMEOUT")) * time.Second,
			PollInterval: ClampPollInterval(time.Duration(viper.GetInt("POLL_INTERVAL_MS")) * time.Millisecond),
		},

		Redis: RedisConfig{
			URL:          viper.GetString("REDIS_URL"),
			Username:     viper.GetString("REDIS_USERNAME"),
			Password:     viper.GetString("REDIS_PASSWORD"),
			WatchlistTTL: time.Duration(viper.GetInt("WATCHLIST_CACHE_TTL")) * time.Second,
		},

		App: AppConfig{
			Environment: viper.GetString("APP_ENV"),
			LogLevel:    viper.GetString("LOG_LEVEL"),
		},

		MCPAddr:  viper.GetString("MCP_ADDR"),
		CORSList: splitList(viper.GetString("CORS_ALLOW_ORIGINS")),
	}
}

// ClampPollInterval keeps the status poll cadence within 1-2 seconds.
func ClampPollInterval(d time.Duration) time.Duration {
	if d < minPollInterval {
		return minPollInterval
	}
	if d > maxPollInterval {
		return maxPollInterval
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
