package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/metadag/internal/model"
)

// Drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// File names inside the state directory.
const (
	LedgerFile     = "meta_dag_memory.json"
	VetoIndexFile  = "veto_index.json"
	AuditLogFile   = "pra_log.json"
	DriftLogFile   = "drift_log.json"
	TranslationLog = "tul_log.json"
	SQLiteFile     = "metadag.db"
	SnapshotSubdir = "drift_snapshots"
)

// Config selects where the governance state lives.
type Config struct {
	Driver     string
	StateDir   string
	SQLitePath string
}

// Stores bundles the documents the pipeline persists and the lock every
// writer of them holds.
type Stores struct {
	Nodes        Document[model.LedgerNode]
	VetoIndex    Document[string]
	Audit        Document[model.AuditEntry]
	Drift        Document[model.DriftEntry]
	Translations Document[model.Event]
	Lock         Locker

	db *sql.DB
}

// Open builds the documents for cfg, creating the state directory if needed.
func Open(cfg Config) (*Stores, error) {
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("store: state directory is required")
	}
	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create state directory: %w", err)
	}

	// SQLite transactions cover one Replace, not the Load before it, so
	// both drivers share the state directory lock.
	lock := NewFileLock(filepath.Join(cfg.StateDir, LockFile))

	switch cfg.Driver {
	case "", DriverJSON:
		return &Stores{
			Nodes:        NewJSONFile[model.LedgerNode](filepath.Join(cfg.StateDir, LedgerFile)),
			VetoIndex:    NewJSONFile[string](filepath.Join(cfg.StateDir, VetoIndexFile)),
			Audit:        NewJSONFile[model.AuditEntry](filepath.Join(cfg.StateDir, AuditLogFile)),
			Drift:        NewJSONFile[model.DriftEntry](filepath.Join(cfg.StateDir, DriftLogFile)),
			Translations: NewJSONFile[model.Event](filepath.Join(cfg.StateDir, TranslationLog)),
			Lock:         lock,
		}, nil
	case DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.StateDir, SQLiteFile)
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Nodes:        NewSQLite[model.LedgerNode](db, "ledger_nodes"),
			VetoIndex:    NewSQLite[string](db, "veto_index"),
			Audit:        NewSQLite[model.AuditEntry](db, "audit_log"),
			Drift:        NewSQLite[model.DriftEntry](db, "drift_log"),
			Translations: NewSQLite[model.Event](db, "translation_log"),
			Lock:         lock,
			db:           db,
		}, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// NewMemoryStores returns in-memory documents for tests and dry runs.
func NewMemoryStores() *Stores {
	return &Stores{
		Nodes:        NewMemory[model.LedgerNode](),
		VetoIndex:    NewMemory[string](),
		Audit:        NewMemory[model.AuditEntry](),
		Drift:        NewMemory[model.DriftEntry](),
		Translations: NewMemory[model.Event](),
		Lock:         NewMutexLock(),
	}
}

// Close releases the SQLite handle, if any.
func (s *Stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
