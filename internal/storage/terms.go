package storage

import (
	"context"
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

type Term struct {
	ID      int64
	Term    string
	Stem    string
	Common  bool
	Phrase  bool
	Weight  float64
	Soundex string
	Links   int
}

// Mapping is one link-term row.
type Mapping struct {
	TermID int64
	Term   string
	Weight float64
	Shard  int
}

// Shard picks the mapping table of a term: the first hex digit of the md5 of
// its first character. Every document maps a given term to the same shard.
func Shard(term string) int {
	first := term
	if _, size := utf8.DecodeRuneInString(term); size > 0 {
		first = term[:size]
	}
	sum := md5.Sum([]byte(first))
	return int(sum[0] >> 4)
}

// InsertTerms adds the terms missing from the dictionary. Terms that already
// exist are left untouched, so concurrent writers never collide.
func (q *Queries) InsertTerms(ctx context.Context, terms []Term) error {
	stmt, err := q.q.PrepareContext(ctx, "INSERT OR IGNORE INTO "+q.t.terms+
		" (term, stem, common, phrase, weight, soundex, links) VALUES (?, ?, ?, ?, ?, ?, 0)")
	if err != nil {
		return fmt.Errorf("failed to prepare term insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range terms {
		if _, err := stmt.ExecContext(ctx, t.Term, t.Stem, boolInt(t.Common), boolInt(t.Phrase), t.Weight, Soundex(t.Term)); err != nil {
			return fmt.Errorf("failed to insert term %q: %w", t.Term, err)
		}
	}
	return nil
}

// TermIDs looks up the id of every given term.
func (q *Queries) TermIDs(ctx context.Context, terms []string) (map[string]int64, error) {
	stmt, err := q.q.PrepareContext(ctx, "SELECT term_id FROM "+q.t.terms+" WHERE term = ?")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare term lookup: %w", err)
	}
	defer stmt.Close()

	ids := make(map[string]int64, len(terms))
	for _, term := range terms {
		var id int64
		if err := stmt.QueryRowContext(ctx, term).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to query term %q: %w", term, err)
		}
		ids[term] = id
	}
	return ids, nil
}

// IncrementLinks adds one reference to each term.
func (q *Queries) IncrementLinks(ctx context.Context, termIDs []int64) error {
	stmt, err := q.q.PrepareContext(ctx, "UPDATE "+q.t.terms+" SET links = links + 1 WHERE term_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare link count update: %w", err)
	}
	defer stmt.Close()

	for _, id := range termIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to update link count for term %d: %w", id, err)
		}
	}
	return nil
}

// DecrementLinks drops one reference from every term mapped to the link.
func (q *Queries) DecrementLinks(ctx context.Context, linkID int64) error {
	for i, shard := range q.t.shards {
		_, err := q.q.ExecContext(ctx,
			"UPDATE "+q.t.terms+" SET links = links - 1"+
				" WHERE term_id IN (SELECT term_id FROM "+shard+" WHERE link_id = ?)",
			linkID,
		)
		if err != nil {
			return fmt.Errorf("failed to update link counts from shard %x: %w", i, err)
		}
	}
	return nil
}

// DeleteMappings removes the link's rows from all shards.
func (q *Queries) DeleteMappings(ctx context.Context, linkID int64) error {
	for i, shard := range q.t.shards {
		if _, err := q.q.ExecContext(ctx, "DELETE FROM "+shard+" WHERE link_id = ?", linkID); err != nil {
			return fmt.Errorf("failed to delete mappings from shard %x: %w", i, err)
		}
	}
	return nil
}

// DeleteOrphanTerms removes terms no document references anymore.
func (q *Queries) DeleteOrphanTerms(ctx context.Context) (int64, error) {
	result, err := q.q.ExecContext(ctx, "DELETE FROM "+q.t.terms+" WHERE links <= 0")
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan terms: %w", err)
	}
	return result.RowsAffected()
}

// InsertMappings writes the link's mappings, each into its term's shard.
func (q *Queries) InsertMappings(ctx context.Context, linkID int64, mappings []Mapping) error {
	var stmts [ShardCount]*sql.Stmt
	defer func() {
		for _, stmt := range stmts {
			if stmt != nil {
				stmt.Close()
			}
		}
	}()

	for _, m := range mappings {
		if m.Shard < 0 || m.Shard >= ShardCount {
			return fmt.Errorf("invalid shard %d for term %q", m.Shard, m.Term)
		}
		stmt := stmts[m.Shard]
		if stmt == nil {
			var err error
			stmt, err = q.q.PrepareContext(ctx, "INSERT INTO "+q.t.shards[m.Shard]+" (link_id, term_id, weight) VALUES (?, ?, ?)")
			if err != nil {
				return fmt.Errorf("failed to prepare mapping insert for shard %x: %w", m.Shard, err)
			}
			stmts[m.Shard] = stmt
		}
		if _, err := stmt.ExecContext(ctx, linkID, m.TermID, m.Weight); err != nil {
			return fmt.Errorf("failed to map term %q: %w", m.Term, err)
		}
	}
	return nil
}

func (q *Queries) Term(ctx context.Context, term string) (*Term, error) {
	var t Term
	var common, phrase int
	err := q.q.QueryRowContext(ctx,
		"SELECT term_id, term, stem, common, phrase, weight, soundex, links FROM "+q.t.terms+" WHERE term = ?",
		term,
	).Scan(&t.ID, &t.Term, &t.Stem, &common, &phrase, &t.Weight, &t.Soundex, &t.Links)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query term %q: %w", term, err)
	}
	t.Common = common != 0
	t.Phrase = phrase != 0
	return &t, nil
}

// LinkTerms returns the mappings of a link across all shards, ordered by
// term.
func (q *Queries) LinkTerms(ctx context.Context, linkID int64) ([]Mapping, error) {
	var mappings []Mapping
	for i, shard := range q.t.shards {
		rows, err := q.q.QueryContext(ctx,
			"SELECT m.term_id, t.term, m.weight FROM "+shard+" AS m"+
				" JOIN "+q.t.terms+" AS t ON t.term_id = m.term_id"+
				" WHERE m.link_id = ?",
			linkID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query shard %x: %w", i, err)
		}
		for rows.Next() {
			m := Mapping{Shard: i}
			if err := rows.Scan(&m.TermID, &m.Term, &m.Weight); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan mapping: %w", err)
			}
			mappings = append(mappings, m)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating shard %x: %w", i, err)
		}
	}
	slices.SortFunc(mappings, func(a, b Mapping) int {
		return strings.Compare(a.Term, b.Term)
	})
	return mappings, nil
}
