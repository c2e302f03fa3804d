package search

import (
	"context"

	"github.com/deidaraiorek/deindex/internal/storage"
	"github.com/deidaraiorek/deindex/internal/tokenizer"
	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"
)

// spillBatch is the number of rows written to the tokens table at once after
// a workspace spilled.
const spillBatch = 1000

// workspace collects the tokens of one AddDocument call. Tokens stay in
// memory until there are more than limit of them; after that they go to the
// tokens table under the workspace's run id and are grouped by SQLite.
type workspace struct {
	runID   string
	q       *storage.Queries
	limit   int
	count   int
	spilled bool
	rows    []storage.TokenRow
}

func newWorkspace(q *storage.Queries, limit int) *workspace {
	return &workspace{
		runID: uuid.NewString(),
		q:     q,
		limit: limit,
	}
}

func (w *workspace) add(ctx context.Context, tokens []tokenizer.Token, c Context, lang string) error {
	for _, t := range tokens {
		w.rows = append(w.rows, storage.TokenRow{
			Term:     t.Term,
			Stem:     t.Stem,
			Common:   t.Common,
			Phrase:   t.Phrase,
			Weight:   t.Weight,
			Context:  int(c),
			Language: lang,
		})
	}
	w.count += len(tokens)

	if !w.spilled && w.count > w.limit {
		slogctx.Debug(ctx, "Token workspace spilling to disk", "tokens", w.count, "limit", w.limit)
		w.spilled = true
	}
	if w.spilled && len(w.rows) >= spillBatch {
		return w.flush(ctx)
	}
	return nil
}

func (w *workspace) flush(ctx context.Context) error {
	if len(w.rows) == 0 {
		return nil
	}
	if err := w.q.InsertTokens(ctx, w.runID, w.rows); err != nil {
		return err
	}
	w.rows = w.rows[:0]
	return nil
}

// counts groups the tokens of one context by term, in order of first
// appearance, each with its number of occurrences.
func (w *workspace) counts(ctx context.Context, c Context) ([]storage.TokenCount, error) {
	if w.spilled {
		if err := w.flush(ctx); err != nil {
			return nil, err
		}
		return w.q.CountTokens(ctx, w.runID, int(c))
	}

	index := make(map[string]int)
	var counts []storage.TokenCount
	for _, r := range w.rows {
		if r.Context != int(c) {
			continue
		}
		if i, ok := index[r.Term]; ok {
			counts[i].Count++
			continue
		}
		index[r.Term] = len(counts)
		counts = append(counts, storage.TokenCount{
			Term:   r.Term,
			Stem:   r.Stem,
			Common: r.Common,
			Phrase: r.Phrase,
			Weight: r.Weight,
			Count:  1,
		})
	}
	return counts, nil
}

// close drops whatever the workspace wrote to the tokens table.
func (w *workspace) close(ctx context.Context) error {
	w.rows = nil
	if !w.spilled {
		return nil
	}
	return w.q.DeleteTokens(ctx, w.runID)
}
