package store

import (
	"errors"
	"fmt"
	"sync"

	"kbexport/internal/catalog"
)

// MemStore is an in-memory Store. Values are copied on the way in and out so
// callers cannot alias stored state.
type MemStore struct {
	mu      sync.Mutex
	snaps   map[Name]catalog.Snapshot
	report  *catalog.ChangeReport
	listing string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{snaps: make(map[Name]catalog.Snapshot)}
}

// Load implements Store.
func (s *MemStore) Load(name Name) (catalog.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[name]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", name, ErrNotFound)
	}
	return copySnapshot(snap), nil
}

// Save implements Store.
func (s *MemStore) Save(name Name, snap catalog.Snapshot) error {
	if err := checkUnique(name, snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[name] = copySnapshot(snap)
	return nil
}

// Rotate implements Store.
func (s *MemStore) Rotate(name Name) (Name, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[name]
	if !ok {
		return "", fmt.Errorf("rotate %s: %w", name, ErrNotFound)
	}
	prev := PreviousOf(name)
	s.snaps[prev] = snap
	delete(s.snaps, name)
	return prev, nil
}

// Exists implements Store.
func (s *MemStore) Exists(name Name) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.snaps[name]
	return ok, nil
}

// Remove implements Store.
func (s *MemStore) Remove(name Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, name)
	return nil
}

// SaveReport implements Store.
func (s *MemStore) SaveReport(report *catalog.ChangeReport, listing string) error {
	if report == nil {
		return errors.New("save report: report is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = copyReport(report)
	s.listing = listing
	return nil
}

// LoadReport implements Store.
func (s *MemStore) LoadReport() (*catalog.ChangeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return nil, fmt.Errorf("load report: %w", ErrNotFound)
	}
	return copyReport(s.report), nil
}

// LoadListing implements Store.
func (s *MemStore) LoadListing() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil || s.listing == "" {
		return "", fmt.Errorf("load listing: %w", ErrNotFound)
	}
	return s.listing, nil
}

// RemoveReport implements Store.
func (s *MemStore) RemoveReport() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = nil
	s.listing = ""
	return nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

func copySnapshot(snap catalog.Snapshot) catalog.Snapshot {
	out := make(catalog.Snapshot, len(snap))
	copy(out, snap)
	return out
}

func copyReport(r *catalog.ChangeReport) *catalog.ChangeReport {
	cp := *r
	cp.Changes = catalog.Changes{
		Added:   append([]string{}, r.Changes.Added...),
		Updated: append([]string{}, r.Changes.Updated...),
		Removed: append([]string{}, r.Changes.Removed...),
	}
	return &cp
}
