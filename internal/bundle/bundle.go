// Package bundle assembles a context_bundle result: a file's ranked
// definitions, a focused symbol, its graph neighbors, and a token-budgeted
// set of snippets (spec.md §4.C11).
package bundle

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/mosif16/index-mcp/internal/indexmcperr"
	"github.com/mosif16/index-mcp/internal/store/sqlite"
)

const (
	defaultMaxSnippets  = 3
	capMaxSnippets      = 10
	defaultMaxNeighbors = 12
	capMaxNeighbors     = 50
	defaultBudgetTokens = 3000
	minBudgetTokens     = 500
	maxDefinitions      = 24
	metadataReserveTokens = 200
)

// SymbolRef names the focus symbol a caller is asking about.
type SymbolRef struct {
	Name string
	Kind string
	Path string
}

// Request is one context_bundle call's parameters, after alias
// normalization and default/cap application by the MCP layer.
type Request struct {
	Root         string
	File         string
	Symbol       *SymbolRef
	MaxSnippets  int
	MaxNeighbors int
	BudgetTokens int
}

// Snippet is one selected chunk of file content in the response.
type Snippet struct {
	Content   string
	ByteStart *int
	ByteEnd   *int
	LineStart *int
	LineEnd   *int
}

// Result is the full context_bundle response shape.
type Result struct {
	DatabasePath     string
	File             sqlite.File
	Definitions      []sqlite.Node
	FocusDefinition  *sqlite.Node
	Related          []sqlite.NeighborEdge
	Snippets         []Snippet
	LatestIngestion  *sqlite.Ingestion
	Warnings         []string
}

// normalize applies defaults and caps from spec.md §4.C11's input spec.
func (r *Request) normalize() {
	if r.MaxSnippets <= 0 {
		r.MaxSnippets = defaultMaxSnippets
	}
	if r.MaxSnippets > capMaxSnippets {
		r.MaxSnippets = capMaxSnippets
	}
	if r.MaxNeighbors <= 0 {
		r.MaxNeighbors = defaultMaxNeighbors
	}
	if r.MaxNeighbors > capMaxNeighbors {
		r.MaxNeighbors = capMaxNeighbors
	}
	if r.BudgetTokens <= 0 {
		r.BudgetTokens = defaultBudgetTokens
	}
	if r.BudgetTokens < minBudgetTokens {
		r.BudgetTokens = minBudgetTokens
	}
}

// Assemble runs the 7-step algorithm from spec.md §4.C11 against store.
func Assemble(ctx context.Context, store *sqlite.Store, req Request) (*Result, error) {
	req.normalize()

	file, err := store.FileByPath(ctx, req.File)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, "context_bundle", "load file row", err)
	}
	if file == nil {
		return nil, indexmcperr.New(indexmcperr.NotIndexed, "context_bundle", "file not present in index: "+req.File)
	}

	allNodes, err := store.NodesForFile(ctx, req.File)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, "context_bundle", "load graph nodes", err)
	}
	definitions := allNodes
	if len(definitions) > maxDefinitions {
		definitions = definitions[:maxDefinitions]
	}

	focus := resolveFocus(definitions, req.Symbol)

	var related []sqlite.NeighborEdge
	if focus != nil {
		related, err = store.Neighbors(ctx, focus.ID, "both", req.MaxNeighbors)
		if err != nil {
			return nil, indexmcperr.Wrap(indexmcperr.Internal, "context_bundle", "load graph neighbors", err)
		}
	}

	chunks, err := store.ChunksForFile(ctx, req.File)
	if err != nil {
		return nil, indexmcperr.Wrap(indexmcperr.Internal, "context_bundle", "load chunks", err)
	}

	snippets, bumpedChunkIDs, warnings := selectSnippets(chunks, focus, req.MaxSnippets, req.BudgetTokens)

	if len(bumpedChunkIDs) > 0 {
		if err := store.BumpChunkHits(ctx, bumpedChunkIDs); err != nil {
			return nil, indexmcperr.Wrap(indexmcperr.Internal, "context_bundle", "bump chunk hits", err)
		}
	}
	if focus != nil {
		if err := store.BumpNodeHits(ctx, []string{focus.ID}); err != nil {
			return nil, indexmcperr.Wrap(indexmcperr.Internal, "context_bundle", "bump focus hits", err)
		}
	}

	var latest *sqlite.Ingestion
	if ingestions, err := store.RecentIngestions(ctx, 1); err == nil && len(ingestions) > 0 {
		latest = &ingestions[0]
	}

	return &Result{
		DatabasePath:    store.Path(),
		File:            *file,
		Definitions:     definitions,
		FocusDefinition: focus,
		Related:         related,
		Snippets:        snippets,
		LatestIngestion: latest,
		Warnings:        warnings,
	}, nil
}

func resolveFocus(definitions []sqlite.Node, symbol *SymbolRef) *sqlite.Node {
	if symbol != nil && symbol.Name != "" {
		for i := range definitions {
			n := &definitions[i]
			if !strings.EqualFold(n.Name, symbol.Name) {
				continue
			}
			if symbol.Kind != "" && string(n.Kind) != symbol.Kind {
				continue
			}
			if symbol.Path != "" && (n.Path == nil || *n.Path != symbol.Path) {
				continue
			}
			return n
		}
		return nil
	}
	if len(definitions) > 0 {
		return &definitions[0]
	}
	return nil
}

// selectSnippets implements step 5: prioritize the chunk overlapping
// focus's byte range, then greedily add remaining chunks (already
// hits-desc/byte-asc ordered) while staying within budget.
func selectSnippets(chunks []sqlite.Chunk, focus *sqlite.Node, maxSnippets, budgetTokens int) ([]Snippet, []string, []string) {
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	ordered := make([]sqlite.Chunk, 0, len(chunks))
	if focus != nil && focus.RangeStart != nil {
		var rest []sqlite.Chunk
		placed := false
		for _, c := range chunks {
			if !placed && overlaps(c, focus) {
				ordered = append(ordered, c)
				placed = true
				continue
			}
			rest = append(rest, c)
		}
		ordered = append(ordered, rest...)
	} else {
		ordered = append(ordered, chunks...)
	}

	remaining := budgetTokens - metadataReserveTokens
	if remaining < 0 {
		remaining = 0
	}

	var snippets []Snippet
	var bumped []string
	var warnings []string

	for _, c := range ordered {
		if len(snippets) >= maxSnippets {
			break
		}
		cost := estimateTokens(c.Content)
		if len(snippets) > 0 && cost > remaining {
			warnings = append(warnings, "snippet budget exhausted; omitted chunk "+c.ID+" covering bytes "+rangeLabel(c.ByteStart, c.ByteEnd))
			continue
		}
		snippets = append(snippets, Snippet{
			Content: c.Content, ByteStart: c.ByteStart, ByteEnd: c.ByteEnd,
			LineStart: c.LineStart, LineEnd: c.LineEnd,
		})
		bumped = append(bumped, c.ID)
		remaining -= cost
	}

	if len(snippets) == 0 && len(ordered) > 0 {
		c := ordered[0]
		snippets = append(snippets, Snippet{
			Content: c.Content, ByteStart: c.ByteStart, ByteEnd: c.ByteEnd,
			LineStart: c.LineStart, LineEnd: c.LineEnd,
		})
		bumped = append(bumped, c.ID)
	}

	return snippets, bumped, warnings
}

func overlaps(c sqlite.Chunk, focus *sqlite.Node) bool {
	if c.ByteStart == nil || c.ByteEnd == nil || focus.RangeStart == nil || focus.RangeEnd == nil {
		return false
	}
	return *c.ByteStart < *focus.RangeEnd && *focus.RangeStart < *c.ByteEnd
}

func estimateTokens(content string) int {
	return int(math.Ceil(float64(len(content)) / 4))
}

func rangeLabel(start, end *int) string {
	if start == nil || end == nil {
		return "unknown"
	}
	return strconv.Itoa(*start) + "-" + strconv.Itoa(*end)
}
