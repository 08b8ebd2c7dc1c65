// Package lock provides the advisory session lock that keeps two exports
// from writing the same output directory.
//
// The lock is a marker file. Presence means locked. A process that dies
// without releasing it leaves the marker behind; an operator removes it by
// hand. No staleness check is attempted.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileName is the marker created inside the locked directory.
const FileName = ".kbexport.lock"

// ErrLocked is returned by Acquire when the marker already exists.
var ErrLocked = errors.New("session lock held")

// Info is the marker payload. It is informational only.
type Info struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Host      string    `json:"host,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held session lock.
type Lock struct {
	path string
	info Info
}

// Acquire creates the marker in dir. It fails with ErrLocked, without
// touching anything, when the marker is already present.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	host, _ := os.Hostname()
	info := Info{
		RunID:     uuid.NewString(),
		PID:       os.Getpid(),
		Host:      host,
		StartedAt: time.Now().UTC(),
	}
	werr := json.NewEncoder(f).Encode(info)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lock: %w", werr)
	}
	return &Lock{path: path, info: info}, nil
}

// Info returns the payload written at acquisition.
func (l *Lock) Info() Info { return l.info }

// Path returns the marker path.
func (l *Lock) Path() string { return l.path }

// Release removes the marker. Releasing twice is not an error.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Read returns the payload of the marker in dir, or an error wrapping
// os.ErrNotExist when dir is unlocked.
func Read(dir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &info, nil
}
