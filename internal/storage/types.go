package storage

import (
	"context"
	"fmt"
)

// ContentTypes returns every registered content type id keyed by title.
func (q *Queries) ContentTypes(ctx context.Context) (map[string]int64, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT id, title FROM "+q.t.types)
	if err != nil {
		return nil, fmt.Errorf("failed to query content types: %w", err)
	}
	defer rows.Close()

	types := make(map[string]int64)
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("failed to scan content type: %w", err)
		}
		types[title] = id
	}
	return types, rows.Err()
}

// AddContentType registers a content type and returns its id. Titles are
// unique; registering one twice returns the first id.
func (q *Queries) AddContentType(ctx context.Context, title, mime string) (int64, error) {
	if _, err := q.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+q.t.types+" (title, mime) VALUES (?, ?)",
		title, mime,
	); err != nil {
		return 0, fmt.Errorf("failed to insert content type %q: %w", title, err)
	}

	var id int64
	if err := q.q.QueryRowContext(ctx, "SELECT id FROM "+q.t.types+" WHERE title = ?", title).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query content type %q: %w", title, err)
	}
	return id, nil
}

// CommonTerms returns the common word list of a language.
func (q *Queries) CommonTerms(ctx context.Context, lang string) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT term FROM "+q.t.common+" WHERE language = ?", lang)
	if err != nil {
		return nil, fmt.Errorf("failed to query common terms: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("failed to scan common term: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

func (q *Queries) AddCommonTerms(ctx context.Context, lang string, terms ...string) error {
	stmt, err := q.q.PrepareContext(ctx, "INSERT OR IGNORE INTO "+q.t.common+" (term, language) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare common term insert: %w", err)
	}
	defer stmt.Close()

	for _, term := range terms {
		if _, err := stmt.ExecContext(ctx, term, lang); err != nil {
			return fmt.Errorf("failed to insert common term %q: %w", term, err)
		}
	}
	return nil
}
