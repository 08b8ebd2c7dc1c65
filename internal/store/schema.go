package store

// schemaVersion is the target schema version for this build.
const schemaVersion = 1

// schemaV1 stores snapshots row-per-article, ordered by position. The snapshot
// table records existence separately so an empty snapshot is still present.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS snapshot (
	name     TEXT PRIMARY KEY,
	saved_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_entry (
	name                  TEXT NOT NULL,
	position              INTEGER NOT NULL,
	sys_id                TEXT NOT NULL,
	number                TEXT NOT NULL,
	version               TEXT NOT NULL,
	title                 TEXT NOT NULL,
	kb_knowledge_base     TEXT NOT NULL,
	sys_domain            TEXT NOT NULL,
	sys_updated_on        TEXT NOT NULL,
	sys_updated_on_millis INTEGER NOT NULL,
	PRIMARY KEY (name, position),
	UNIQUE (name, sys_id)
);
CREATE TABLE IF NOT EXISTS change_report (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	last_updated_on TEXT NOT NULL,
	changes         TEXT NOT NULL,
	listing         TEXT NOT NULL
);
`
