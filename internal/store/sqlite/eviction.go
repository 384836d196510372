package sqlite

import (
	"context"
	"fmt"
)

// targetRatio is the fraction of maxSizeBytes eviction aims for, per
// spec.md §4.C14 step 1.
const targetRatio = 0.8

// EvictionResult reports one eviction pass's effect.
type EvictionResult struct {
	EvictedChunks int64
	EvictedNodes  int64
	SizeBefore    int64
	SizeAfter     int64
	WasNeeded     bool
}

// Evict runs one eviction pass: proportionally delete the least-hit
// chunks, then (if still over target) the least-hit graph nodes, then
// VACUUM. A single pass is best-effort; the caller may re-run.
func (s *Store) Evict(ctx context.Context, maxSizeBytes int64) (EvictionResult, error) {
	var res EvictionResult

	sizeBefore, err := s.SizeBytes()
	if err != nil {
		return res, fmt.Errorf("measure size before eviction: %w", err)
	}
	res.SizeBefore = sizeBefore

	if sizeBefore <= maxSizeBytes {
		res.SizeAfter = sizeBefore
		return res, nil
	}
	res.WasNeeded = true

	target := int64(float64(maxSizeBytes) * targetRatio)
	bytesToFree := sizeBefore - target
	freeFraction := float64(bytesToFree) / float64(sizeBefore)

	var totalChunks int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_chunks").Scan(&totalChunks); err != nil {
		return res, fmt.Errorf("count chunks: %w", err)
	}
	// Row-count heuristic: delete a count proportional to the byte gap,
	// roughly half of it per spec.md's "≈ 50% of the gap".
	chunksToDelete := int64(float64(totalChunks) * freeFraction * 0.5)
	if chunksToDelete > 0 {
		result, err := s.db.ExecContext(ctx, `
			DELETE FROM file_chunks WHERE id IN (
				SELECT id FROM file_chunks ORDER BY hits ASC, chunk_index ASC LIMIT ?
			)`, chunksToDelete)
		if err != nil {
			return res, fmt.Errorf("delete low-hit chunks: %w", err)
		}
		res.EvictedChunks, _ = result.RowsAffected()
	}

	sizeAfterChunks, err := s.SizeBytes()
	if err != nil {
		return res, fmt.Errorf("measure size after chunk eviction: %w", err)
	}

	if sizeAfterChunks > target {
		var totalNodes int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM code_graph_nodes").Scan(&totalNodes); err != nil {
			return res, fmt.Errorf("count nodes: %w", err)
		}
		nodesToDelete := int64(float64(totalNodes) * freeFraction * 0.3)
		if nodesToDelete > 0 {
			result, err := s.db.ExecContext(ctx, `
				DELETE FROM code_graph_nodes WHERE id IN (
					SELECT id FROM code_graph_nodes ORDER BY hits ASC LIMIT ?
				)`, nodesToDelete)
			if err != nil {
				return res, fmt.Errorf("delete low-hit nodes: %w", err)
			}
			res.EvictedNodes, _ = result.RowsAffected()
		}
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return res, fmt.Errorf("vacuum: %w", err)
	}

	sizeAfter, err := s.SizeBytes()
	if err != nil {
		return res, fmt.Errorf("measure size after eviction: %w", err)
	}
	res.SizeAfter = sizeAfter

	return res, nil
}
