package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config describes all runtime settings for the room server.
//
// Load it once in main, validate, then pass the pieces down explicitly.
type Config struct {
	Env string // dev|stage|prod

	Log struct {
		Format string // text|json
		Level  string // debug|info|warn|error
	}

	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
		ShutdownTimeout   time.Duration
	}

	// Postgres holds the finished-game ledger. An empty URL disables it.
	Postgres struct {
		URL           string
		RunMigrations bool
		MigrationsDir string
	}

	// Redis mirrors public room state for HTTP readers. An empty Addr disables it.
	Redis struct {
		Addr     string
		DB       int
		StateTTL time.Duration
	}

	Game struct {
		ReconnectGrace time.Duration
		SendBuffer     int
	}

	Archive struct {
		QueueSize int
	}
}

// LoadFromEnv reads an optional .env file and then the process environment.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var c Config

	c.Env = envString("APP_ENV", "dev")
	c.Log.Format = envString("LOG_FORMAT", "text")
	c.Log.Level = envString("LOG_LEVEL", "info")

	port := envString("PORT", "8080")
	c.HTTP.Addr = envString("HTTP_ADDR", ":"+port)
	c.HTTP.ReadHeaderTimeout = envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	c.HTTP.ReadTimeout = envDuration("HTTP_READ_TIMEOUT", 0)
	c.HTTP.WriteTimeout = envDuration("HTTP_WRITE_TIMEOUT", 0)
	c.HTTP.IdleTimeout = envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)
	c.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	c.Postgres.URL = envString("DATABASE_URL", "")
	c.Postgres.RunMigrations = envBool("RUN_MIGRATIONS", false)
	c.Postgres.MigrationsDir = envString("MIGRATIONS_DIR", "./db/migrations")

	c.Redis.Addr = envString("REDIS_ADDR", "")
	c.Redis.DB = envInt("REDIS_DB", 0)
	c.Redis.StateTTL = envDuration("ROOM_STATE_TTL", 6*time.Hour)

	c.Game.ReconnectGrace = envDuration("GAME_RECONNECT_GRACE", 5*time.Minute)
	c.Game.SendBuffer = envInt("GAME_SEND_BUFFER", 64)

	c.Archive.QueueSize = envInt("ARCHIVE_QUEUE", 256)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP addr is empty")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL=%q (want debug|info|warn|error)", c.Log.Level)
	}
	if c.Postgres.RunMigrations && c.Postgres.URL == "" {
		return errors.New("RUN_MIGRATIONS requires DATABASE_URL")
	}
	if c.Redis.Addr != "" && c.Redis.StateTTL <= 0 {
		return fmt.Errorf("ROOM_STATE_TTL must be positive, got %s", c.Redis.StateTTL)
	}
	if c.Game.ReconnectGrace <= 0 {
		return fmt.Errorf("GAME_RECONNECT_GRACE must be positive, got %s", c.Game.ReconnectGrace)
	}
	if c.Game.SendBuffer <= 0 {
		return fmt.Errorf("GAME_SEND_BUFFER must be positive, got %d", c.Game.SendBuffer)
	}
	if c.Archive.QueueSize <= 0 {
		return fmt.Errorf("ARCHIVE_QUEUE must be positive, got %d", c.Archive.QueueSize)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
