package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default conveyor data directory name (relative to home).
	DefaultDataDir = ".conveyor"
	// DBFile is the SQLite task store filename.
	DBFile = "conveyor.db"
	// AuditDir is the subdirectory for the audit session files.
	AuditDir = "audit"
)

// DataDir returns the conveyor data directory inside a home directory.
func DataDir(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir)
}

// DBPath returns the SQLite task store path inside a home directory.
func DBPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), DBFile)
}

// AuditPath returns the audit session directory inside a home directory.
func AuditPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), AuditDir)
}
