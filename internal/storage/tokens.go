package storage

import (
	"context"
	"fmt"
)

// TokenRow is one token occurrence spilled to the tokens table.
type TokenRow struct {
	Term     string
	Stem     string
	Common   bool
	Phrase   bool
	Weight   float64
	Context  int
	Language string
}

// TokenCount is a distinct term of one context with its number of
// occurrences. Term attributes come from the term's first row.
type TokenCount struct {
	Term   string
	Stem   string
	Common bool
	Phrase bool
	Weight float64
	Count  int
}

func (q *Queries) InsertTokens(ctx context.Context, runID string, rows []TokenRow) error {
	stmt, err := q.q.PrepareContext(ctx, "INSERT INTO "+q.t.tokens+
		" (run_id, term, stem, common, phrase, weight, context, language) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare token insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, r.Term, r.Stem, boolInt(r.Common), boolInt(r.Phrase), r.Weight, r.Context, r.Language); err != nil {
			return fmt.Errorf("failed to insert token %q: %w", r.Term, err)
		}
	}
	return nil
}

// CountTokens groups the run's tokens of one context by term, in order of
// first appearance.
func (q *Queries) CountTokens(ctx context.Context, runID string, group int) ([]TokenCount, error) {
	// SQLite takes the bare columns from the row holding MIN(rowid).
	rows, err := q.q.QueryContext(ctx,
		"SELECT term, stem, common, phrase, weight, MIN(rowid) AS first_row, COUNT(*) FROM "+q.t.tokens+
			" WHERE run_id = ? AND context = ?"+
			" GROUP BY term ORDER BY first_row",
		runID, group,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tokens: %w", err)
	}
	defer rows.Close()

	var counts []TokenCount
	for rows.Next() {
		var c TokenCount
		var common, phrase int
		var first int64
		if err := rows.Scan(&c.Term, &c.Stem, &common, &phrase, &c.Weight, &first, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan token count: %w", err)
		}
		c.Common = common != 0
		c.Phrase = phrase != 0
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token counts: %w", err)
	}
	return counts, nil
}

// DeleteTokens clears the run's scratch rows.
func (q *Queries) DeleteTokens(ctx context.Context, runID string) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM "+q.t.tokens+" WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}

// TokenRunCount returns the number of scratch rows held for a run.
func (q *Queries) TokenRunCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.t.tokens+" WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return n, nil
}
