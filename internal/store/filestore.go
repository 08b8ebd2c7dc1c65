package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kbexport/internal/catalog"
)

const (
	reportFileName  = "kb_changes.json"
	listingFileName = "kb_changes.diff"
)

// FileStore keeps snapshots and the change report as JSON files in one directory.
//
// Layout:
//   - <dir>/<name>.json        snapshot
//   - <dir>/kb_changes.json    change report
//   - <dir>/kb_changes.diff    unified listing diff
//
// Every write goes to a temporary sibling first and is renamed into place, so
// readers never observe a partially written file.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file backing the named snapshot.
func (s *FileStore) Path(name Name) string {
	return filepath.Join(s.dir, string(name)+".json")
}

// Load implements Store.
func (s *FileStore) Load(name Name) (catalog.Snapshot, error) {
	var snap catalog.Snapshot
	if err := s.readJSON(s.Path(name), &snap); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if snap == nil {
		snap = catalog.Snapshot{}
	}
	return snap, nil
}

// Save implements Store.
func (s *FileStore) Save(name Name, snap catalog.Snapshot) error {
	if err := checkUnique(name, snap); err != nil {
		return err
	}
	if snap == nil {
		snap = catalog.Snapshot{}
	}
	if err := s.writeJSON(s.Path(name), snap); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Rotate implements Store.
func (s *FileStore) Rotate(name Name) (Name, error) {
	prev := PreviousOf(name)
	if err := os.Rename(s.Path(name), s.Path(prev)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("rotate %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("rotate %s: %w", name, err)
	}
	return prev, nil
}

// Exists implements Store.
func (s *FileStore) Exists(name Name) (bool, error) {
	_, err := os.Stat(s.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

// Remove implements Store.
func (s *FileStore) Remove(name Name) error {
	return removeIfExists(s.Path(name))
}

// SaveReport implements Store.
func (s *FileStore) SaveReport(report *catalog.ChangeReport, listing string) error {
	if report == nil {
		return errors.New("save report: report is nil")
	}
	if err := s.writeJSON(filepath.Join(s.dir, reportFileName), report); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	listingPath := filepath.Join(s.dir, listingFileName)
	if listing == "" {
		return removeIfExists(listingPath)
	}
	if err := writeAtomic(listingPath, []byte(listing+"\n")); err != nil {
		return fmt.Errorf("save listing diff: %w", err)
	}
	return nil
}

// LoadReport implements Store.
func (s *FileStore) LoadReport() (*catalog.ChangeReport, error) {
	var r catalog.ChangeReport
	if err := s.readJSON(filepath.Join(s.dir, reportFileName), &r); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	return &r, nil
}

// LoadListing implements Store.
func (s *FileStore) LoadListing() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, listingFileName))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("load listing: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load listing: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

// RemoveReport implements Store.
func (s *FileStore) RemoveReport() error {
	if err := removeIfExists(filepath.Join(s.dir, reportFileName)); err != nil {
		return err
	}
	return removeIfExists(filepath.Join(s.dir, listingFileName))
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *FileStore) writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, append(raw, '\n'))
}

// writeAtomic writes data to a temporary file in the target directory, syncs
// it and renames it over path.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
