package sqlite

import (
	"container/heap"
	"context"
	"fmt"
	"math"
)

// ScoredChunk is one semantic_search hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// topKHeap is a bounded min-heap on Score: the smallest-scoring survivor
// sits at the root, so a new candidate only needs to beat heap[0] to earn
// a spot once the heap is full. This is spec.md §4.C10 step 3's "bounded
// top-k min-heap" requirement, not a collect-then-sort.
type topKHeap []ScoredChunk

func (h topKHeap) Len() int            { return len(h) }
func (h topKHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h topKHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x any)         { *h = append(*h, x.(ScoredChunk)) }
func (h *topKHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SearchVector streams file_chunks rows for model through cosine
// similarity against queryVector, keeping only the top limit matches.
// bm25Scores, when non-nil, blends a normalized BM25 score in at weight
// 0.35 (vector similarity carries the remaining 0.65) — spec.md §4.C10
// explicitly allows an implementation-defined, documented blend.
func (s *Store) SearchVector(ctx context.Context, model string, queryVector []float32, limit int, bm25Scores map[string]float32) ([]ScoredChunk, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, chunk_index, content, embedding, embedding_model, byte_start, byte_end, line_start, line_end, hits
		FROM file_chunks WHERE embedding_model = ?`, model)
	if err != nil {
		return nil, 0, fmt.Errorf("query chunks for model %s: %w", model, err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, 0, err
	}

	queryNorm := magnitude(queryVector)
	h := &topKHeap{}
	heap.Init(h)
	evaluated := 0

	for _, c := range chunks {
		select {
		case <-ctx.Done():
			return nil, evaluated, ctx.Err()
		default:
		}
		if len(c.Embedding) != len(queryVector) {
			continue
		}
		evaluated++

		score := cosineSimilarity(queryVector, c.Embedding, queryNorm)
		if bm25Scores != nil {
			// A chunk with no BM25 match contributes 0 to the blend.
			score = 0.65*score + 0.35*bm25Scores[c.ID]
		}

		if h.Len() < limit {
			heap.Push(h, ScoredChunk{Chunk: c, Score: score})
		} else if h.Len() > 0 && score > (*h)[0].Score {
			heap.Pop(h)
			heap.Push(h, ScoredChunk{Chunk: c, Score: score})
		}
	}

	results := make([]ScoredChunk, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(ScoredChunk)
	}
	return results, evaluated, nil
}

// SearchBM25 scores chunk content against query using the FTS5 shadow
// table's built-in bm25() ranking function, returning scores by chunk id
// normalized into [0,1] with 1 for the best match (bm25() itself is
// more-negative-is-better per SQLite's convention).
func (s *Store) SearchBM25(ctx context.Context, model, query string, limit int) (map[string]float32, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fc.id, bm25(file_chunks_fts) AS rank
		FROM file_chunks_fts
		JOIN file_chunks fc ON fc.id = file_chunks_fts.id
		WHERE file_chunks_fts MATCH ? AND fc.embedding_model = ?
		ORDER BY rank LIMIT ?`, query, model, limit*4)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	defer rows.Close()

	var raw []struct {
		id   string
		rank float64
	}
	minRank, maxRank := math.Inf(1), math.Inf(-1)
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		raw = append(raw, struct {
			id   string
			rank float64
		}{id, rank})
		if rank < minRank {
			minRank = rank
		}
		if rank > maxRank {
			maxRank = rank
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]float32, len(raw))
	spread := maxRank - minRank
	for _, r := range raw {
		// bm25() is smaller-is-better; invert and normalize into [0,1].
		if spread == 0 {
			out[r.id] = 1
			continue
		}
		out[r.id] = float32(1 - (r.rank-minRank)/spread)
	}
	return out, nil
}

func cosineSimilarity(a, b []float32, aNorm float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	bNorm := magnitude(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	sim := dot / (aNorm * bNorm)
	if sim < -1 {
		sim = -1
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}

func magnitude(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}
