package model

import "time"

// Store drivers.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// RunConfig is the engine run configuration loaded from a file. Unset optional
// values are nil or zero so they can be merged with flags.
type RunConfig struct {
	HandlerName           string
	Store                 StoreConfig
	AuditDir              string
	Workers               *int
	AutoResolve           *bool
	PollInterval          time.Duration
	ResolutionErrorPolicy string
	// Handlers maps task types to built-in handler names.
	Handlers map[string]string
}

// StoreConfig selects and configures the task store.
type StoreConfig struct {
	Driver      string
	SQLitePath  string
	PostgresURL string
}
