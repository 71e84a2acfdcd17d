// Package util provides shared helpers for integration tests that need
// a real PostgreSQL instance.
package util

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/praetorworks/praetor/pkg/database"
)

var (
	containerOnce sync.Once
	containerErr  error
	containerCfg  database.Config
)

// PostgresConfig returns a database config pointing at a PostgreSQL
// instance for integration tests. Tests are skipped unless either
// CI_DATABASE_HOST names an external server or PRAETOR_PG_TESTS enables
// the shared testcontainer. Each caller gets its own database name so
// per-test migrations do not collide.
func PostgresConfig(t *testing.T) database.Config {
	t.Helper()

	if host := os.Getenv("CI_DATABASE_HOST"); host != "" {
		port := 5432
		if p := os.Getenv("CI_DATABASE_PORT"); p != "" {
			parsed, err := strconv.Atoi(p)
			require.NoError(t, err, "invalid CI_DATABASE_PORT")
			port = parsed
		}
		return database.Config{
			Driver:   database.DriverPostgres,
			Host:     host,
			Port:     port,
			User:     envOr("CI_DATABASE_USER", "postgres"),
			Password: os.Getenv("CI_DATABASE_PASSWORD"),
			Database: envOr("CI_DATABASE_NAME", "praetor_test"),
			SSLMode:  "disable",
		}
	}

	if os.Getenv("PRAETOR_PG_TESTS") == "" {
		t.Skip("postgres integration tests disabled; set PRAETOR_PG_TESTS=1 or CI_DATABASE_HOST")
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		pg, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("praetor_test"),
			postgres.WithUsername("praetor"),
			postgres.WithPassword("praetor"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		host, err := pg.Host(ctx)
		if err != nil {
			containerErr = fmt.Errorf("failed to resolve container host: %w", err)
			return
		}
		mapped, err := pg.MappedPort(ctx, nat.Port("5432/tcp"))
		if err != nil {
			containerErr = fmt.Errorf("failed to resolve container port: %w", err)
			return
		}

		containerCfg = database.Config{
			Driver:   database.DriverPostgres,
			Host:     host,
			Port:     mapped.Int(),
			User:     "praetor",
			Password: "praetor",
			Database: "praetor_test",
			SSLMode:  "disable",
		}
	})
	require.NoError(t, containerErr)
	return containerCfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
