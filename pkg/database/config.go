package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadConfigFromEnv loads database configuration from environment
// variables. DB_DRIVER selects the engine; "sqlite" reads DB_PATH and
// ignores the PostgreSQL settings.
func LoadConfigFromEnv() (Config, error) {
	driver := Driver(getEnvOrDefault("DB_DRIVER", string(DriverPostgres)))
	if driver != DriverPostgres && driver != DriverSQLite {
		return Config{}, fmt.Errorf("invalid DB_DRIVER: %q", driver)
	}

	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))

	return Config{
		Driver:          driver,
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "praetor"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "praetor"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		Path:            getEnvOrDefault("DB_PATH", "praetor.db"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
