package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port       string
	Host       string
	Env        string
	PublicURL  string
	CORSOrigin string

	// Persistence collaborators (all optional)
	DatabaseURL string // PostgreSQL write-behind store
	SQLitePath  string // embedded relational store
	RedisURL    string // recent-chat cache
	DataDir     string // file-backed snapshot directory

	// Room engine
	AutoSaveInterval time.Duration
	CleanupInterval  time.Duration
	RoomGracePeriod  time.Duration
	WebSocketTimeout time.Duration

	// Capacity limits
	MaxConcurrentUsers int
	MaxRooms           int
	MaxUsersPerRoom    int
	MaxSaveHistory     int

	// Execution sandbox
	PythonCommand string
	ExecTimeout   time.Duration

	AI AIConfig
}

// AIConfig configures the text-completion collaborator.
type AIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Enabled     bool
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		Host:       getEnv("HOST", "0.0.0.0"),
		Env:        getEnv("ENV", "development"),
		PublicURL:  os.Getenv("PUBLIC_URL"),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  os.Getenv("SQLITE_PATH"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DataDir:     getEnv("DATA_DIR", "./data"),

		AutoSaveInterval: getDuration("AUTO_SAVE_INTERVAL", 30*time.Second),
		CleanupInterval:  getDuration("CLEANUP_INTERVAL", 5*time.Minute),
		RoomGracePeriod:  getDuration("ROOM_GRACE_PERIOD", 2*time.Minute),
		WebSocketTimeout: getDuration("WEBSOCKET_TIMEOUT", 30*time.Second),

		MaxConcurrentUsers: getInt("MAX_CONCURRENT_USERS", 60),
		MaxRooms:           getInt("MAX_ROOMS", 20),
		MaxUsersPerRoom:    getInt("MAX_USERS_PER_ROOM", 5),
		MaxSaveHistory:     getInt("MAX_SAVE_HISTORY", 50),

		PythonCommand: getEnv("PYTHON_COMMAND", "python3"),
		ExecTimeout:   getDuration("EXEC_TIMEOUT", 10*time.Second),

		AI: AIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			MaxTokens:   getInt("OPENAI_MAX_TOKENS", 2000),
			Temperature: getFloat("OPENAI_TEMPERATURE", 0.7),
			Timeout:     getDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
	}
	cfg.AI.Enabled = cfg.AI.APIKey != ""

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

// getDuration reads a duration env var. Plain integers are interpreted as
// milliseconds for compatibility with the legacy deployment variables.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
