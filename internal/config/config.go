package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the environment-driven configuration.
type Config struct {
	// DBPath is the path of the sqlite database file.
	DBPath string

	// SearchIndexPath is the path of the bleve index directory. When
	// empty, the index is kept in memory only.
	SearchIndexPath string

	// RedisAddr is the address of the Redis server backing the account
	// cache and the analysis result topics.
	RedisAddr string

	// AMQPURL, when set, switches the analysis queue from the in-process
	// implementation to RabbitMQ.
	AMQPURL string

	// QueueBuffer is the capacity of the in-process analysis queue.
	QueueBuffer int

	// Workers is the number of concurrent analysis workers.
	Workers int

	// WindowDays is the trailing window used as analysis context.
	WindowDays int

	// GeminiModel is the model used for analysis. The Gemini analyser is
	// only wired when GEMINI_API_KEY is present in the environment.
	GeminiModel string

	// ListenAddr is the address of the operational HTTP server.
	ListenAddr string
}

// Load reads the configuration from the environment. A .env file is
// honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	config := Config{
		DBPath:          lookup("DB_PATH", "data/finledger.db"),
		SearchIndexPath: lookup("SEARCH_INDEX_PATH", ""),
		RedisAddr:       lookup("REDIS_ADDR", "localhost:6379"),
		AMQPURL:         lookup("AMQP_URL", ""),
		GeminiModel:     lookup("GEMINI_MODEL", ""),
		ListenAddr:      lookup("LISTEN_ADDR", ":8080"),
	}

	var err error
	config.QueueBuffer, err = lookupInt("ANALYSIS_QUEUE_BUFFER", 100)
	if err != nil {
		return Config{}, err
	}

	config.Workers, err = lookupInt("ANALYSIS_WORKERS", 5)
	if err != nil {
		return Config{}, err
	}

	config.WindowDays, err = lookupInt("ANALYSIS_WINDOW_DAYS", 10)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func lookup(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	return value
}

func lookupInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	return parsed, nil
}
