// Package testutil starts throwaway database containers for integration
// tests. Every helper skips the calling test in -short mode or when no
// container runtime is reachable.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startTimeout = 3 * time.Minute

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func start(t *testing.T, image, port string, env map[string]string, strategy wait.Strategy) string {
	t.Helper()
	skipWithoutDocker(t)

	// Give generous timeout in CI environments
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	opts := []testcontainers.ContainerCustomizer{
		testcontainers.WithExposedPorts(port),
		testcontainers.WithWaitStrategy(strategy),
	}
	if len(env) > 0 {
		opts = append(opts, testcontainers.WithEnv(env))
	}
	c, err := testcontainers.Run(ctx, image, opts...)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

// StartPostgresContainer returns a DSN for a fresh PostgreSQL database.
func StartPostgresContainer(t *testing.T) string {
	t.Helper()
	endpoint := start(t, "postgres:16", "5432/tcp",
		map[string]string{
			"POSTGRES_USER":     "taskgraph",
			"POSTGRES_PASSWORD": "taskgraph",
			"POSTGRES_DB":       "taskgraph_test",
		},
		wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			// Postgres logs readiness once for the init server and once for
			// the real one.
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2*time.Minute),
	)
	return fmt.Sprintf("postgres://taskgraph:taskgraph@%s/taskgraph_test?sslmode=disable", endpoint)
}

// StartMongoContainer returns a connection URI for a fresh MongoDB server.
func StartMongoContainer(t *testing.T) string {
	t.Helper()
	endpoint := start(t, "mongo:7", "27017/tcp", nil,
		wait.ForAll(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("mongod startup complete"),
		),
	)
	return fmt.Sprintf("mongodb://%s", endpoint)
}

// StartRedisContainer returns the host:port of a fresh Redis server.
func StartRedisContainer(t *testing.T) string {
	t.Helper()
	return start(t, "redis:7", "6379/tcp", nil,
		wait.ForAll(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
}
