package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`
	DB  struct {
		Path           string `validate:"required"`
		MigrationsPath string
	}
	Observe struct {
		// Query is the observed SELECT; KeyColumns name its primary key.
		Query      string   `validate:"required"`
		KeyColumns []string `validate:"required,min=1,dive,required"`
		// Tables is the read region: commits touching any of them trigger a fetch.
		Tables []string `validate:"required,min=1,dive,required"`
	}
	HTTP struct {
		Addr string `validate:"required"`
	}
	Checkpoint struct {
		// Schedule is a cron expression for periodic WAL checkpointing.
		Schedule string `validate:"required"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.DB.Path = getenv("DB_PATH", "data/rowwatch.db")
	c.DB.MigrationsPath = getenv("DB_MIGRATIONS_PATH", "file://migrations/sqlite")
	c.Observe.Query = getenv("OBSERVE_QUERY", "SELECT id, name, score FROM players ORDER BY id")
	c.Observe.KeyColumns = splitList(getenv("OBSERVE_KEY_COLUMNS", "id"))
	c.Observe.Tables = splitList(getenv("OBSERVE_TABLES", "players"))
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")
	c.Checkpoint.Schedule = getenv("CHECKPOINT_SCHEDULE", "@every 5m")
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/rowwatch.log")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
