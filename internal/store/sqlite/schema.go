package sqlite

import (
	"database/sql"
	"fmt"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	modified INTEGER NOT NULL,
	hash TEXT NOT NULL,
	last_indexed_at INTEGER NOT NULL,
	content TEXT
);

CREATE TABLE IF NOT EXISTS file_chunks (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	embedding_model TEXT NOT NULL,
	byte_start INTEGER,
	byte_end INTEGER,
	line_start INTEGER,
	line_end INTEGER,
	hits INTEGER NOT NULL DEFAULT 0,
	UNIQUE(path, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_file_chunks_path ON file_chunks(path);
CREATE INDEX IF NOT EXISTS idx_file_chunks_model ON file_chunks(embedding_model);
CREATE INDEX IF NOT EXISTS idx_file_chunks_hits ON file_chunks(hits);

CREATE VIRTUAL TABLE IF NOT EXISTS file_chunks_fts USING fts5(
	id UNINDEXED,
	content,
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS file_chunks_ai AFTER INSERT ON file_chunks BEGIN
	INSERT INTO file_chunks_fts(id, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS file_chunks_ad AFTER DELETE ON file_chunks BEGIN
	DELETE FROM file_chunks_fts WHERE id = old.id;
END;

CREATE TRIGGER IF NOT EXISTS file_chunks_au AFTER UPDATE ON file_chunks BEGIN
	UPDATE file_chunks_fts SET content = new.content WHERE id = old.id;
END;

CREATE TABLE IF NOT EXISTS code_graph_nodes (
	id TEXT PRIMARY KEY,
	path TEXT,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	signature TEXT,
	range_start INTEGER,
	range_end INTEGER,
	metadata TEXT,
	hits INTEGER NOT NULL DEFAULT 0,
	UNIQUE(path, kind, name)
);

CREATE INDEX IF NOT EXISTS idx_code_graph_nodes_path ON code_graph_nodes(path);
CREATE INDEX IF NOT EXISTS idx_code_graph_nodes_name ON code_graph_nodes(name);

CREATE TABLE IF NOT EXISTS code_graph_edges (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL REFERENCES code_graph_nodes(id) ON DELETE CASCADE,
	target_id TEXT NOT NULL REFERENCES code_graph_nodes(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	source_path TEXT,
	target_path TEXT,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_code_graph_edges_source ON code_graph_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_code_graph_edges_target ON code_graph_edges(target_id);

CREATE TABLE IF NOT EXISTS ingestions (
	id TEXT PRIMARY KEY,
	root TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	file_count INTEGER NOT NULL,
	skipped_count INTEGER NOT NULL,
	deleted_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingestions_started_at ON ingestions(started_at);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// migrationColumns lists columns that may be missing from a database
// created by an earlier schema version, keyed by table. initSchema adds
// them with ALTER TABLE after checking PRAGMA table_info.
var migrationColumns = map[string][]string{
	"file_chunks": {
		"byte_start INTEGER",
		"byte_end INTEGER",
		"line_start INTEGER",
		"line_end INTEGER",
		"hits INTEGER NOT NULL DEFAULT 0",
	},
	"code_graph_nodes": {
		"hits INTEGER NOT NULL DEFAULT 0",
	},
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	for table, columns := range migrationColumns {
		if err := migrateColumns(db, table, columns); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

func migrateColumns(db *sql.DB, table string, columnDefs []string) error {
	existing := make(map[string]bool)
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, def := range columnDefs {
		name := def
		if idx := indexOfSpace(def); idx >= 0 {
			name = def[:idx]
		}
		if existing[name] {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def)); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
	}
	return nil
}

func indexOfSpace(s string) int {
	for i, c := range s {
		if c == ' ' {
			return i
		}
	}
	return -1
}
