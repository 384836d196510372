package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// FilesInScope returns the stored files rows whose path is in paths, or
// every row when paths is empty — the diff-base C9 step 3 reads before
// walking.
func (s *Store) FilesInScope(ctx context.Context, paths []string) (map[string]File, error) {
	var rows *sql.Rows
	var err error

	if len(paths) == 0 {
		rows, err = s.db.QueryContext(ctx, "SELECT path, size, modified, hash, last_indexed_at, content FROM files")
	} else {
		placeholders := make([]string, len(paths))
		args := make([]any, len(paths))
		for i, p := range paths {
			placeholders[i] = "?"
			args[i] = p
		}
		query := fmt.Sprintf("SELECT path, size, modified, hash, last_indexed_at, content FROM files WHERE path IN (%s)", joinPlaceholders(placeholders))
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("query files in scope: %w", err)
	}
	defer rows.Close()

	out := make(map[string]File)
	for rows.Next() {
		var f File
		var content sql.NullString
		if err := rows.Scan(&f.Path, &f.Size, &f.Modified, &f.Hash, &f.LastIndexed, &content); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		if content.Valid {
			v := content.String
			f.Content = &v
		}
		out[f.Path] = f
	}
	return out, rows.Err()
}

func joinPlaceholders(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += "," + p
	}
	return out
}

// AllPaths returns every path currently in the files table.
func (s *Store) AllPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// FileByPath returns a single files row, or (nil, nil) if absent.
func (s *Store) FileByPath(ctx context.Context, path string) (*File, error) {
	var f File
	var content sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT path, size, modified, hash, last_indexed_at, content FROM files WHERE path = ?", path,
	).Scan(&f.Path, &f.Size, &f.Modified, &f.Hash, &f.LastIndexed, &content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query file %s: %w", path, err)
	}
	if content.Valid {
		v := content.String
		f.Content = &v
	}
	return &f, nil
}

// DistinctEmbeddingModels returns every embedding_model value present in
// file_chunks.
func (s *Store) DistinctEmbeddingModels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT embedding_model FROM file_chunks ORDER BY embedding_model")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// ChunksForFile returns every chunk for path, ordered by (hits desc, byte_start asc).
func (s *Store) ChunksForFile(ctx context.Context, path string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, chunk_index, content, embedding, embedding_model, byte_start, byte_end, line_start, line_end, hits
		FROM file_chunks
		WHERE path = ?
		ORDER BY hits DESC, byte_start ASC`, path)
	if err != nil {
		return nil, fmt.Errorf("query chunks for %s: %w", path, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var c Chunk
		var embedding []byte
		var byteStart, byteEnd, lineStart, lineEnd sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Path, &c.ChunkIndex, &c.Content, &embedding, &c.EmbeddingModel,
			&byteStart, &byteEnd, &lineStart, &lineEnd, &c.Hits); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		c.Embedding = unpackVector(embedding)
		c.ByteStart = intPtr(byteStart)
		c.ByteEnd = intPtr(byteEnd)
		c.LineStart = intPtr(lineStart)
		c.LineEnd = intPtr(lineEnd)
		out = append(out, c)
	}
	return out, rows.Err()
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// NodesForFile returns every graph node for path, ordered by (hits desc, range_start asc).
func (s *Store) NodesForFile(ctx context.Context, path string) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, kind, name, signature, range_start, range_end, metadata, hits
		FROM code_graph_nodes
		WHERE path = ?
		ORDER BY hits DESC, range_start ASC`, path)
	if err != nil {
		return nil, fmt.Errorf("query nodes for %s: %w", path, err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	var out []Node
	for rows.Next() {
		var n Node
		var path, signature sql.NullString
		var rangeStart, rangeEnd sql.NullInt64
		var metaStr sql.NullString
		var kind string
		if err := rows.Scan(&n.ID, &path, &kind, &n.Name, &signature, &rangeStart, &rangeEnd, &metaStr, &n.Hits); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		n.Kind = NodeKind(kind)
		if path.Valid {
			v := path.String
			n.Path = &v
		}
		if signature.Valid {
			v := signature.String
			n.Signature = &v
		}
		n.RangeStart = intPtr(rangeStart)
		n.RangeEnd = intPtr(rangeEnd)
		meta, err := unmarshalMetadata(metaStr)
		if err != nil {
			return nil, fmt.Errorf("unmarshal node metadata %s: %w", n.ID, err)
		}
		n.Metadata = meta
		out = append(out, n)
	}
	return out, rows.Err()
}

// BumpChunkHits increments hits for the given chunk ids in one statement.
func (s *Store) BumpChunkHits(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("UPDATE file_chunks SET hits = hits + 1 WHERE id IN (%s)", joinPlaceholders(placeholders))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// BumpNodeHits increments hits for the given node ids in one statement.
func (s *Store) BumpNodeHits(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("UPDATE code_graph_nodes SET hits = hits + 1 WHERE id IN (%s)", joinPlaceholders(placeholders))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// MetaValue reads a single meta row's value, or ("", false) if absent.
func (s *Store) MetaValue(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// RecentIngestions returns up to limit most recent ingestions rows, newest first.
func (s *Store) RecentIngestions(ctx context.Context, limit int) ([]Ingestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root, started_at, finished_at, file_count, skipped_count, deleted_count
		FROM ingestions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ingestion
	for rows.Next() {
		var ing Ingestion
		if err := rows.Scan(&ing.ID, &ing.Root, &ing.StartedAt, &ing.FinishedAt, &ing.FileCount, &ing.SkippedCount, &ing.DeletedCount); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// Counts returns row counts for the four primary tables, used by index_status.
type Counts struct {
	Files     int64
	Chunks    int64
	Nodes     int64
	Edges     int64
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&c.Files); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_chunks").Scan(&c.Chunks); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM code_graph_nodes").Scan(&c.Nodes); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM code_graph_edges").Scan(&c.Edges); err != nil {
		return c, err
	}
	return c, nil
}
