package store

import (
	"errors"
	"fmt"
	"path/filepath"

	"kbexport/internal/catalog"
)

// ErrNotFound is returned when a snapshot or change report does not exist.
// Callers use it to detect a first run; it is not a hard failure.
var ErrNotFound = errors.New("not found")

// Name identifies a persisted snapshot.
type Name string

// Primary is the snapshot written by every listing run.
const Primary Name = "kb_articles"

// PreviousOf returns the sibling name a snapshot is rotated to.
func PreviousOf(n Name) Name { return n + ".previous" }

// Store is the persistence facade for catalog snapshots and the change report.
// The reconciliation controller uses only this interface; implementations are
// JSON files, SQLite, or in-memory.
type Store interface {
	// Load returns the named snapshot, or ErrNotFound.
	Load(name Name) (catalog.Snapshot, error)
	// Save writes the full snapshot under name, replacing any existing one.
	Save(name Name, snap catalog.Snapshot) error
	// Rotate moves the named snapshot to PreviousOf(name), replacing any
	// existing previous snapshot. Returns ErrNotFound if name does not exist.
	Rotate(name Name) (Name, error)
	// Exists reports whether the named snapshot is present.
	Exists(name Name) (bool, error)
	// Remove deletes the named snapshot; a missing snapshot is not an error.
	Remove(name Name) error

	// SaveReport persists the change report together with the human-readable
	// listing diff, replacing the previous report.
	SaveReport(report *catalog.ChangeReport, listing string) error
	// LoadReport returns the last change report, or ErrNotFound.
	LoadReport() (*catalog.ChangeReport, error)
	// LoadListing returns the listing diff saved with the last report, or
	// ErrNotFound. An empty listing is stored as absent.
	LoadListing() (string, error)
	// RemoveReport deletes the change report; a missing report is not an error.
	RemoveReport() error

	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// DefaultDBName is the SQLite database file created inside the output directory.
const DefaultDBName = "kbexport.db"

// Open returns the Store for backend rooted at dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendSQLite:
		return OpenSQL(filepath.Join(dir, DefaultDBName))
	case BackendMemory:
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func checkUnique(name Name, snap catalog.Snapshot) error {
	if id := snap.DuplicateIdentity(); id != "" {
		return fmt.Errorf("save %s: duplicate sys_id %q", name, id)
	}
	return nil
}
