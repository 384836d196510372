package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// IngestWrite bundles everything one ingest transaction commits.
type IngestWrite struct {
	RefreshPaths []string // changed + deleted paths: wipe their chunks/nodes first
	Files        []File   // upserted (changed files only; unchanged ones are untouched)
	Chunks       []Chunk  // freshly produced chunks for refreshed files
	Nodes        []Node   // graph nodes touched by refreshed files, plus any symbol targets
	Edges        []Edge   // graph edges touched by refreshed files
	DeletedPaths []string // paths no longer present; their files rows are removed
	Ingestion    Ingestion
	CommitSHA    *string
	IndexedAtMS  int64
}

// WriteIngest runs the 7-step ingest transaction from spec.md §4.C8:
// delete refresh-path rows, upsert files, insert chunks, upsert graph
// nodes/edges, delete removed files, append an ingestions row, and
// upsert meta. Either everything commits or nothing does.
func (s *Store) WriteIngest(ctx context.Context, w IngestWrite) error {
	if s.readOnly {
		return fmt.Errorf("store opened read-only")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteRefreshRows(ctx, tx, w.RefreshPaths); err != nil {
		return fmt.Errorf("step 1 (delete refresh rows): %w", err)
	}
	if err := upsertFiles(ctx, tx, w.Files); err != nil {
		return fmt.Errorf("step 2 (upsert files): %w", err)
	}
	if err := insertChunks(ctx, tx, w.Chunks); err != nil {
		return fmt.Errorf("step 3 (insert chunks): %w", err)
	}
	if err := upsertNodes(ctx, tx, w.Nodes); err != nil {
		return fmt.Errorf("step 4a (upsert nodes): %w", err)
	}
	if err := upsertEdges(ctx, tx, w.Edges); err != nil {
		return fmt.Errorf("step 4b (upsert edges): %w", err)
	}
	if err := deleteFiles(ctx, tx, w.DeletedPaths); err != nil {
		return fmt.Errorf("step 5 (delete removed files): %w", err)
	}
	if err := insertIngestion(ctx, tx, w.Ingestion); err != nil {
		return fmt.Errorf("step 6 (append ingestions row): %w", err)
	}
	if err := upsertMeta(ctx, tx, w.CommitSHA, w.IndexedAtMS); err != nil {
		return fmt.Errorf("step 7 (upsert meta): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest transaction: %w", err)
	}
	return nil
}

func deleteRefreshRows(ctx context.Context, tx *sql.Tx, paths []string) error {
	for _, p := range paths {
		if _, err := tx.ExecContext(ctx, "DELETE FROM file_chunks WHERE path = ?", p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM code_graph_nodes WHERE path = ?", p); err != nil {
			return err
		}
	}
	return nil
}

func upsertFiles(ctx context.Context, tx *sql.Tx, files []File) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (path, size, modified, hash, last_indexed_at, content)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			modified = excluded.modified,
			hash = excluded.hash,
			last_indexed_at = excluded.last_indexed_at,
			content = excluded.content`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range files {
		var content sql.NullString
		if f.Content != nil {
			content = sql.NullString{String: *f.Content, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, f.Path, f.Size, f.Modified, f.Hash, f.LastIndexed, content); err != nil {
			return fmt.Errorf("upsert file %s: %w", f.Path, err)
		}
	}
	return nil
}

// TouchFiles bumps last_indexed_at for unchanged files carried forward
// without a full re-read, per spec.md §4.C9 step 4's "carry forward"
// behavior for unchanged paths.
func (s *Store) TouchFiles(ctx context.Context, paths []string, indexedAtMS int64) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE files SET last_indexed_at = ? WHERE path = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, indexedAtMS, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO file_chunks (id, path, chunk_index, content, embedding, embedding_model, byte_start, byte_end, line_start, line_end, hits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(path, chunk_index) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			byte_start = excluded.byte_start,
			byte_end = excluded.byte_end,
			line_start = excluded.line_start,
			line_end = excluded.line_end`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Path, c.ChunkIndex, c.Content, packVector(c.Embedding), c.EmbeddingModel,
			nullableInt(c.ByteStart), nullableInt(c.ByteEnd), nullableInt(c.LineStart), nullableInt(c.LineEnd)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

func upsertNodes(ctx context.Context, tx *sql.Tx, nodes []Node) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO code_graph_nodes (id, path, kind, name, signature, range_start, range_end, metadata, hits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			kind = excluded.kind,
			name = excluded.name,
			signature = excluded.signature,
			range_start = excluded.range_start,
			range_end = excluded.range_end,
			metadata = excluded.metadata`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range nodes {
		meta, err := marshalMetadata(n.Metadata)
		if err != nil {
			return fmt.Errorf("marshal node metadata %s: %w", n.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, n.ID, nullableString(n.Path), string(n.Kind), n.Name, nullableString(n.Signature),
			nullableInt(n.RangeStart), nullableInt(n.RangeEnd), meta); err != nil {
			return fmt.Errorf("upsert node %s: %w", n.ID, err)
		}
	}
	return nil
}

func upsertEdges(ctx context.Context, tx *sql.Tx, edges []Edge) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO code_graph_edges (id, source_id, target_id, type, source_path, target_path, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			metadata = excluded.metadata`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range edges {
		meta, err := marshalMetadata(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal edge metadata %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.SourceID, e.TargetID, string(e.Type),
			nullableString(e.SourcePath), nullableString(e.TargetPath), meta); err != nil {
			return fmt.Errorf("upsert edge %s: %w", e.ID, err)
		}
	}
	return nil
}

func deleteFiles(ctx context.Context, tx *sql.Tx, paths []string) error {
	for _, p := range paths {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", p); err != nil {
			return err
		}
	}
	return nil
}

func insertIngestion(ctx context.Context, tx *sql.Tx, ing Ingestion) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingestions (id, root, started_at, finished_at, file_count, skipped_count, deleted_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ing.ID, ing.Root, ing.StartedAt, ing.FinishedAt, ing.FileCount, ing.SkippedCount, ing.DeletedCount)
	return err
}

func upsertMeta(ctx context.Context, tx *sql.Tx, commitSHA *string, indexedAtMS int64) error {
	upsert := `INSERT INTO meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if commitSHA != nil {
		if _, err := tx.ExecContext(ctx, upsert, "commit_sha", *commitSHA, indexedAtMS); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, upsert, "indexed_at", fmt.Sprintf("%d", indexedAtMS), indexedAtMS)
	return err
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
