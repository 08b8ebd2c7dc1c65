package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kbexport/internal/catalog"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// OpenSQL opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory if it does not exist.
func OpenSQL(path string) (*SqlStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Load implements Store.
func (s *SqlStore) Load(name Name) (catalog.Snapshot, error) {
	ok, err := s.Exists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("load %s: %w", name, ErrNotFound)
	}
	rows, err := s.db.Query(`SELECT sys_id, number, version, title, kb_knowledge_base, sys_domain,
		sys_updated_on, sys_updated_on_millis FROM snapshot_entry WHERE name = ? ORDER BY position`, string(name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	defer rows.Close()

	snap := catalog.Snapshot{}
	for rows.Next() {
		var r catalog.ArticleRecord
		if err := rows.Scan(&r.SysID, &r.Number, &r.Version, &r.Title, &r.KnowledgeBase,
			&r.Domain, &r.UpdatedOn, &r.UpdatedOnMillis); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		snap = append(snap, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return snap, nil
}

// Save implements Store.
func (s *SqlStore) Save(name Name, snap catalog.Snapshot) error {
	if err := checkUnique(name, snap); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save %s: begin: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteSnapshot(tx, name); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if _, err := tx.Exec("INSERT INTO snapshot(name, saved_at) VALUES(?, ?)", string(name), nowUTC()); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO snapshot_entry(name, position, sys_id, number, version, title,
		kb_knowledge_base, sys_domain, sys_updated_on, sys_updated_on_millis) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save %s: prepare: %w", name, err)
	}
	defer stmt.Close()
	for i, r := range snap {
		if _, err := stmt.Exec(string(name), i, r.SysID, r.Number, r.Version, r.Title,
			r.KnowledgeBase, r.Domain, r.UpdatedOn, r.UpdatedOnMillis); err != nil {
			return fmt.Errorf("save %s: insert %s: %w", name, r.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s: commit: %w", name, err)
	}
	return nil
}

// Rotate implements Store.
func (s *SqlStore) Rotate(name Name) (Name, error) {
	prev := PreviousOf(name)
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("rotate %s: begin: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRow("SELECT COUNT(*) FROM snapshot WHERE name = ?", string(name)).Scan(&n); err != nil {
		return "", fmt.Errorf("rotate %s: %w", name, err)
	}
	if n == 0 {
		return "", fmt.Errorf("rotate %s: %w", name, ErrNotFound)
	}
	if err := deleteSnapshot(tx, prev); err != nil {
		return "", fmt.Errorf("rotate %s: %w", name, err)
	}
	for _, q := range []string{
		"UPDATE snapshot SET name = ? WHERE name = ?",
		"UPDATE snapshot_entry SET name = ? WHERE name = ?",
	} {
		if _, err := tx.Exec(q, string(prev), string(name)); err != nil {
			return "", fmt.Errorf("rotate %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("rotate %s: commit: %w", name, err)
	}
	return prev, nil
}

// Exists implements Store.
func (s *SqlStore) Exists(name Name) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshot WHERE name = ?", string(name)).Scan(&n); err != nil {
		return false, fmt.Errorf("exists %s: %w", name, err)
	}
	return n > 0, nil
}

// Remove implements Store.
func (s *SqlStore) Remove(name Name) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("remove %s: begin: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := deleteSnapshot(tx, name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return tx.Commit()
}

// SaveReport implements Store.
func (s *SqlStore) SaveReport(report *catalog.ChangeReport, listing string) error {
	if report == nil {
		return errors.New("save report: report is nil")
	}
	changes, err := json.Marshal(report.Changes)
	if err != nil {
		return fmt.Errorf("save report: marshal: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO change_report(id, last_updated_on, changes, listing) VALUES(1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_updated_on = excluded.last_updated_on,
		changes = excluded.changes, listing = excluded.listing`,
		report.LastUpdatedOn.UTC().Format(time.RFC3339Nano), string(changes), listing)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// LoadReport implements Store.
func (s *SqlStore) LoadReport() (*catalog.ChangeReport, error) {
	var ts, changes string
	err := s.db.QueryRow("SELECT last_updated_on, changes FROM change_report WHERE id = 1").Scan(&ts, &changes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load report: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("load report: parse timestamp: %w", err)
	}
	r := &catalog.ChangeReport{LastUpdatedOn: at}
	if err := json.Unmarshal([]byte(changes), &r.Changes); err != nil {
		return nil, fmt.Errorf("load report: parse changes: %w", err)
	}
	return r, nil
}

// LoadListing implements Store.
func (s *SqlStore) LoadListing() (string, error) {
	var listing string
	err := s.db.QueryRow("SELECT listing FROM change_report WHERE id = 1").Scan(&listing)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && listing == "") {
		return "", fmt.Errorf("load listing: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load listing: %w", err)
	}
	return listing, nil
}

// RemoveReport implements Store.
func (s *SqlStore) RemoveReport() error {
	if _, err := s.db.Exec("DELETE FROM change_report"); err != nil {
		return fmt.Errorf("remove report: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SqlStore) Close() error { return s.db.Close() }

func deleteSnapshot(tx *sql.Tx, name Name) error {
	if _, err := tx.Exec("DELETE FROM snapshot_entry WHERE name = ?", string(name)); err != nil {
		return err
	}
	_, err := tx.Exec("DELETE FROM snapshot WHERE name = ?", string(name))
	return err
}
