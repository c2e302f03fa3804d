package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Node struct {
	ID       int64
	ParentID int64
	Title    string
	State    int
	Access   int
	Ordering int
}

const nodeColumns = "id, parent_id, title, state, access, ordering"

func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	var n Node
	err := row.Scan(&n.ID, &n.ParentID, &n.Title, &n.State, &n.Access, &n.Ordering)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (q *Queries) Node(ctx context.Context, parentID int64, title string) (*Node, error) {
	n, err := scanNode(q.q.QueryRowContext(ctx,
		"SELECT "+nodeColumns+" FROM "+q.t.taxonomy+" WHERE parent_id = ? AND title = ?",
		parentID, title,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to query taxonomy node %q: %w", title, err)
	}
	return n, err
}

// UpsertNode inserts a node under parentID, or updates state and access of
// the existing node with the same title, and returns its id.
func (q *Queries) UpsertNode(ctx context.Context, parentID int64, title string, state, access int) (int64, error) {
	var id int64
	err := q.q.QueryRowContext(ctx,
		"INSERT INTO "+q.t.taxonomy+" (parent_id, title, state, access) VALUES (?, ?, ?, ?)"+
			" ON CONFLICT (parent_id, title) DO UPDATE SET state = excluded.state, access = excluded.access"+
			" RETURNING id",
		parentID, title, state, access,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to store taxonomy node %q: %w", title, err)
	}
	return id, nil
}

// AddMap links a document to a taxonomy node, replacing an existing pair.
func (q *Queries) AddMap(ctx context.Context, linkID, nodeID int64) error {
	_, err := q.q.ExecContext(ctx,
		"INSERT OR REPLACE INTO "+q.t.taxonomyMap+" (link_id, node_id) VALUES (?, ?)",
		linkID, nodeID,
	)
	if err != nil {
		return fmt.Errorf("failed to map link %d to node %d: %w", linkID, nodeID, err)
	}
	return nil
}

func (q *Queries) RemoveMaps(ctx context.Context, linkID int64) (int64, error) {
	result, err := q.q.ExecContext(ctx, "DELETE FROM "+q.t.taxonomyMap+" WHERE link_id = ?", linkID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove taxonomy maps of link %d: %w", linkID, err)
	}
	return result.RowsAffected()
}

// RemoveOrphanNodes deletes the nodes no document maps to. Branches are kept.
func (q *Queries) RemoveOrphanNodes(ctx context.Context) (int64, error) {
	result, err := q.q.ExecContext(ctx,
		"DELETE FROM "+q.t.taxonomy+" WHERE parent_id > ?"+
			" AND NOT EXISTS (SELECT 1 FROM "+q.t.taxonomyMap+" AS m WHERE m.node_id = "+q.t.taxonomy+".id)",
		RootNodeID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove orphan taxonomy nodes: %w", err)
	}
	return result.RowsAffected()
}

// BranchTitles lists the published branches visible at maxAccess.
func (q *Queries) BranchTitles(ctx context.Context, maxAccess int) ([]string, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT title FROM "+q.t.taxonomy+" WHERE parent_id = ? AND state = 1 AND access <= ? ORDER BY title",
		RootNodeID, maxAccess,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query branch titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan branch title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// NodeByTitle finds the first published node of a published branch whose
// title starts with prefix.
func (q *Queries) NodeByTitle(ctx context.Context, branch, prefix string, maxAccess int) (*Node, error) {
	n, err := scanNode(q.q.QueryRowContext(ctx,
		"SELECT t1.id, t1.parent_id, t1.title, t1.state, t1.access, t1.ordering"+
			" FROM "+q.t.taxonomy+" AS t1"+
			" JOIN "+q.t.taxonomy+" AS t2 ON t2.id = t1.parent_id"+
			" WHERE t1.access <= ? AND t1.state = 1 AND t1.title LIKE ? ESCAPE '\\'"+
			" AND t2.access <= ? AND t2.state = 1 AND t2.title = ? AND t2.parent_id = ?"+
			" ORDER BY t1.title LIMIT 1",
		maxAccess, escapeLike(prefix)+"%", maxAccess, branch, RootNodeID,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to query taxonomy node %q: %w", prefix, err)
	}
	return n, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
