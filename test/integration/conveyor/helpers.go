package conveyor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/conveyor/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
	// PostgresURL enables the PostgreSQL store tests when set.
	PostgresURL string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "conveyor"
	}

	// go test changes the CWD to the test package directory, relative paths
	// would not point to the binary.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("CONVEYOR_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("conveyor binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation  = "CONVEYOR_INTEGRATION"
		envBinary      = "CONVEYOR_INTEGRATION_BINARY"
		envPostgresURL = "CONVEYOR_INTEGRATION_POSTGRES_URL"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary:      os.Getenv(envBinary),
		PostgresURL: os.Getenv(envPostgresURL),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Store has the global store flags of a test.
type Store struct {
	Args []string
}

// SQLiteStore returns the store flags for a SQLite database at dbPath.
func SQLiteStore(dbPath string) Store {
	return Store{Args: []string{"--store", "sqlite", "--db-path", dbPath}}
}

// PostgresStore returns the store flags for a PostgreSQL database.
func PostgresStore(url string) Store {
	return Store{Args: []string{"--store", "postgres", "--postgres-url", url}}
}

// RunConveyorCmd runs a conveyor command on a store, logging is suppressed.
func RunConveyorCmd(ctx context.Context, config Config, store Store, args ...string) (stdout, stderr []byte, err error) {
	fullArgs := append([]string{"--no-log"}, store.Args...)
	fullArgs = append(fullArgs, args...)
	return testutils.RunConveyorArgs(ctx, nil, config.Binary, fullArgs, true)
}

// RunMigrate applies the store migrations.
func RunMigrate(ctx context.Context, config Config, store Store) (stdout, stderr []byte, err error) {
	return RunConveyorCmd(ctx, config, store, "migrate")
}

// RunEnqueue stores a task, the output is in JSON format.
func RunEnqueue(ctx context.Context, config Config, store Store, taskType, payload, handlerName string) (stdout, stderr []byte, err error) {
	args := []string{"enqueue", "--type", taskType, "--owner", "integration", "--format", "json"}
	if payload != "" {
		args = append(args, "--payload", payload)
	}
	if handlerName != "" {
		args = append(args, "--handler", handlerName)
	}
	return RunConveyorCmd(ctx, config, store, args...)
}

// RunOnce runs a single engine poll cycle.
func RunOnce(ctx context.Context, config Config, store Store, handlerName string, extraArgs ...string) (stdout, stderr []byte, err error) {
	args := append([]string{"run", "--once", "--handler-name", handlerName}, extraArgs...)
	return RunConveyorCmd(ctx, config, store, args...)
}

// RunEngine runs the engine until the context is cancelled.
func RunEngine(ctx context.Context, config Config, store Store, handlerName string, extraArgs ...string) (stdout, stderr []byte, err error) {
	args := append([]string{"run", "--handler-name", handlerName}, extraArgs...)
	return RunConveyorCmd(ctx, config, store, args...)
}

// RunStatus gets a task in JSON format.
func RunStatus(ctx context.Context, config Config, store Store, id string) (stdout, stderr []byte, err error) {
	return RunConveyorCmd(ctx, config, store, "status", id, "--format", "json")
}

// RunList lists tasks in JSON format.
func RunList(ctx context.Context, config Config, store Store, extraArgs ...string) (stdout, stderr []byte, err error) {
	args := append([]string{"list", "--format", "json"}, extraArgs...)
	return RunConveyorCmd(ctx, config, store, args...)
}
