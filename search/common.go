package search

import (
	"context"
	"sync"

	"github.com/deidaraiorek/deindex/internal/storage"
	slogctx "github.com/veqryn/slog-context"
)

// commonWords answers common-word lookups from the per-language lists in the
// store. Each list is read once per engine.
type commonWords struct {
	q *storage.Queries

	mu    sync.RWMutex
	lists map[string]map[string]struct{}
}

func newCommonWords(q *storage.Queries) *commonWords {
	return &commonWords{q: q, lists: make(map[string]map[string]struct{})}
}

// load returns the word list of lang, reading it from the store the first
// time.
func (c *commonWords) load(ctx context.Context, lang string) (map[string]struct{}, error) {
	c.mu.RLock()
	list, ok := c.lists[lang]
	c.mu.RUnlock()
	if ok {
		return list, nil
	}

	terms, err := c.q.CommonTerms(ctx, lang)
	if err != nil {
		return nil, err
	}
	list = make(map[string]struct{}, len(terms))
	for _, term := range terms {
		list[term] = struct{}{}
	}

	c.mu.Lock()
	c.lists[lang] = list
	c.mu.Unlock()
	return list, nil
}

// IsCommon reports whether term is on the list of lang. Lists that cannot be
// read count as empty.
func (c *commonWords) IsCommon(term, lang string) bool {
	ctx := context.Background()
	list, err := c.load(ctx, lang)
	if err != nil {
		slogctx.Warn(ctx, "Failed to load common words", "language", lang, "error", err)
		return false
	}
	_, ok := list[term]
	return ok
}

func (c *commonWords) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.lists)
}
