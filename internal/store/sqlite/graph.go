package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// NodeDescriptor identifies a graph node either by id, or by an exact
// (name[, kind][, path]) match.
type NodeDescriptor struct {
	ID   string
	Name string
	Kind string
	Path string
}

// ErrNodeNotFound and ErrNodeAmbiguous signal the two resolution
// failures graph_neighbors must distinguish (spec.md §4.C12).
var (
	ErrNodeNotFound  = fmt.Errorf("node not found")
	ErrNodeAmbiguous = fmt.Errorf("node matches more than one row")
)

// ResolveNode looks up exactly one node by id or by (name[, kind][, path]).
func (s *Store) ResolveNode(ctx context.Context, d NodeDescriptor) (*Node, error) {
	if d.ID != "" {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, path, kind, name, signature, range_start, range_end, metadata, hits
			FROM code_graph_nodes WHERE id = ?`, d.ID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		nodes, err := scanNodes(rows)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return nil, ErrNodeNotFound
		}
		return &nodes[0], nil
	}

	query := "SELECT id, path, kind, name, signature, range_start, range_end, metadata, hits FROM code_graph_nodes WHERE name = ?"
	args := []any{d.Name}
	if d.Kind != "" {
		query += " AND kind = ?"
		args = append(args, d.Kind)
	}
	if d.Path != "" {
		query += " AND path = ?"
		args = append(args, d.Path)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, ErrNodeNotFound
	case 1:
		return &nodes[0], nil
	default:
		return nil, ErrNodeAmbiguous
	}
}

// NeighborEdge is one graph_neighbors result row.
type NeighborEdge struct {
	ID        string
	Type      EdgeType
	Direction string // "incoming" | "outgoing"
	Metadata  map[string]any
	Neighbor  Node
}

// Neighbors returns edges touching nodeID in the requested direction(s),
// each limited independently to limit rows.
func (s *Store) Neighbors(ctx context.Context, nodeID string, direction string, limit int) ([]NeighborEdge, error) {
	var out []NeighborEdge

	if direction == "outgoing" || direction == "both" {
		rows, err := s.neighborRows(ctx, `
			SELECT e.id, e.type, e.metadata, n.id, n.path, n.kind, n.name, n.signature, n.range_start, n.range_end, n.metadata, n.hits
			FROM code_graph_edges e JOIN code_graph_nodes n ON n.id = e.target_id
			WHERE e.source_id = ? LIMIT ?`, nodeID, limit, "outgoing")
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	if direction == "incoming" || direction == "both" {
		rows, err := s.neighborRows(ctx, `
			SELECT e.id, e.type, e.metadata, n.id, n.path, n.kind, n.name, n.signature, n.range_start, n.range_end, n.metadata, n.hits
			FROM code_graph_edges e JOIN code_graph_nodes n ON n.id = e.source_id
			WHERE e.target_id = ? LIMIT ?`, nodeID, limit, "incoming")
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *Store) neighborRows(ctx context.Context, query string, nodeID string, limit int, direction string) ([]NeighborEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, nodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s neighbors: %w", direction, err)
	}
	defer rows.Close()

	var out []NeighborEdge
	for rows.Next() {
		var e NeighborEdge
		var edgeType, nodePath, signature sql.NullString
		var edgeMeta, nodeMeta sql.NullString
		var rangeStart, rangeEnd sql.NullInt64
		var kind, name string
		var nodeID string

		if err := rows.Scan(&e.ID, &edgeType, &edgeMeta, &nodeID, &nodePath, &kind, &name, &signature, &rangeStart, &rangeEnd, &nodeMeta, &e.Neighbor.Hits); err != nil {
			return nil, fmt.Errorf("scan neighbor row: %w", err)
		}
		e.Type = EdgeType(edgeType.String)
		e.Direction = direction
		if m, err := unmarshalMetadata(edgeMeta); err == nil {
			e.Metadata = m
		}

		e.Neighbor.ID = nodeID
		e.Neighbor.Kind = NodeKind(kind)
		e.Neighbor.Name = name
		if nodePath.Valid {
			v := nodePath.String
			e.Neighbor.Path = &v
		}
		if signature.Valid {
			v := signature.String
			e.Neighbor.Signature = &v
		}
		e.Neighbor.RangeStart = intPtr(rangeStart)
		e.Neighbor.RangeEnd = intPtr(rangeEnd)
		if m, err := unmarshalMetadata(nodeMeta); err == nil {
			e.Neighbor.Metadata = m
		}

		out = append(out, e)
	}
	return out, rows.Err()
}
