package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"github.com/mosif16/index-mcp/internal/security"
)

// Store wraps a single SQLite database file implementing the schema in
// §3: files, file_chunks (+ FTS5 shadow table), code_graph_nodes,
// code_graph_edges, ingestions, meta.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Open opens (and for a writer, creates/migrates) the database at path.
// Writers get a single connection, since SQLite allows exactly one
// writer and modernc.org/sqlite's pooled connections would otherwise
// each believe they hold a private :memory: database. Readers get
// `mode=ro` and never mutate schema.
func Open(path string, readOnly bool) (*Store, error) {
	dsn := path
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open database %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if !readOnly {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if err := initSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &Store{db: db, path: path, readOnly: readOnly}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path this Store was opened against.
func (s *Store) Path() string {
	return s.path
}

// SizeBytes reports the on-disk size of the database file via SQLite's
// page accounting, which is accurate even when the OS file size lags
// behind (WAL not yet checkpointed).
func (s *Store) SizeBytes() (int64, error) {
	var size int64
	err := s.db.QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("compute database size: %w", err)
	}
	return size, nil
}

// packVector encodes a float32 vector as little-endian bytes, per
// spec.md's "packed little-endian float32" embedding storage format.
func packVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// unpackVector decodes a little-endian float32 vector previously
// produced by packVector.
func unpackVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

func marshalMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalMetadata(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// validateWithinRoot is a defense-in-depth guard: every absolute path
// this package reads from disk (e.g. when reconstructing file content
// from on-disk sources) must resolve inside the workspace root.
func validateWithinRoot(absPath, root string) error {
	_, err := security.ValidatePathWithinBase(absPath, root)
	return err
}
