// Package search is an embedded full-text indexing engine. Documents are
// parsed, tokenized, weighted per context and mapped to a term dictionary
// spread over sixteen link-term shards in a SQLite database.
package search

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/deidaraiorek/deindex/internal/parser"
	"github.com/deidaraiorek/deindex/internal/stemmer"
	"github.com/deidaraiorek/deindex/internal/storage"
	"github.com/deidaraiorek/deindex/internal/taxonomy"
	"github.com/deidaraiorek/deindex/internal/tokenizer"
	slogctx "github.com/veqryn/slog-context"
)

// Token is one indexable unit produced by Tokenize.
type Token = tokenizer.Token

type Engine struct {
	db        *storage.IndexDB
	opts      Options
	stemmer   *stemmer.Stemmer
	parsers   *parser.Registry
	tokenizer *tokenizer.Tokenizer
	taxonomy  *taxonomy.Tree
	common    *commonWords
	locks     *keyedMutex

	typesMu sync.Mutex
	types   map[string]int64
}

// New creates an engine over db. The stemmer named in opts must be
// registered; otherwise ErrUnknownStemmer is returned.
func New(db *storage.IndexDB, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	st, err := stemmer.NewRegistry().New(opts.Stemmer, opts.CacheSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		db:      db,
		opts:    opts,
		stemmer: st,
		parsers: parser.NewRegistry(),
		common:  newCommonWords(db.Queries()),
		locks:   newKeyedMutex(),
		types:   make(map[string]int64),
	}

	var ts tokenizer.Stemmer
	if opts.Stem {
		ts = st
	}
	e.tokenizer = tokenizer.New(ts, e.common, tokenizer.WithCacheSize(opts.CacheSize))
	e.taxonomy = taxonomy.New(db.Queries(), e.tokenizer.Filter, opts.CacheSize)
	return e, nil
}

func (e *Engine) Options() Options {
	return e.opts
}

// AddDocument indexes doc, parsing its fields as format, and returns the id
// of its link. A document whose signature matches the stored one is not
// re-indexed; only a larger view count is recorded.
//
// All writes of one call happen in a single transaction. On failure nothing
// is kept and the error is a *StoreError unless the input itself was
// rejected.
func (e *Engine) AddDocument(ctx context.Context, doc *Document, format string) (int64, error) {
	if _, err := e.parsers.Get(format); err != nil {
		return 0, err
	}

	d := *doc
	if d.Language == "" {
		d.Language = DefaultLanguage
	}
	lang := e.tokenizer.PrimaryLanguage(d.Language)

	ctx = slogctx.Append(ctx, "url", d.URL)
	unlock := e.locks.Lock(d.URL)
	defer unlock()

	signature := d.Signature(e.opts)
	if _, err := e.common.load(ctx, lang); err != nil {
		return 0, storeErr("load common words", err)
	}

	var linkID int64
	var tree *taxonomy.Tree
	err := e.db.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		tree = e.taxonomy.Begin(q)
		linkID, err = e.index(ctx, q, tree, &d, format, lang, signature)
		return err
	})
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) || isInputError(err) {
			return 0, err
		}
		return 0, storeErr("add document", err)
	}
	tree.Commit()
	return linkID, nil
}

func isInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrUnicodeUnsupported) ||
		errors.Is(err, ErrInvalidDocument)
}

func (e *Engine) index(ctx context.Context, q *storage.Queries, tree *taxonomy.Tree, d *Document, format, lang, signature string) (int64, error) {
	existing, err := q.LinkByURL(ctx, d.URL)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, storeErr("lookup link", err)
	}
	isNew := existing == nil

	if !isNew && existing.Signature == signature {
		slogctx.Debug(ctx, "Document unchanged", "linkId", existing.ID)
		if err := q.RaiseViews(ctx, existing.ID, d.Views); err != nil {
			return 0, storeErr("update views", err)
		}
		return existing.ID, nil
	}

	if !isNew {
		if err := q.DecrementLinks(ctx, existing.ID); err != nil {
			return 0, storeErr("release terms", err)
		}
		if err := q.DeleteMappings(ctx, existing.ID); err != nil {
			return 0, storeErr("delete mappings", err)
		}
		if err := tree.RemoveMaps(ctx, existing.ID); err != nil {
			return 0, storeErr("remove taxonomy maps", err)
		}
	}

	description, err := e.parsers.Parse(d.Summary, "html")
	if err != nil {
		return 0, err
	}
	object, err := d.object()
	if err != nil {
		return 0, err
	}
	link := &storage.Link{
		URL:              d.URL,
		Route:            d.Route,
		Title:            d.Title,
		Author:           d.Author,
		Description:      description,
		State:            d.State,
		Access:           d.Access,
		Language:         d.Language,
		Size:             d.Size,
		TypeID:           d.TypeID,
		PublishStartDate: normalizeDate(d.PublishStartDate),
		PublishEndDate:   normalizeDate(d.PublishEndDate),
		StartDate:        normalizeDate(d.StartDate),
		EndDate:          normalizeDate(d.EndDate),
		ListPrice:        d.ListPrice,
		SalePrice:        d.SalePrice,
		Ordering:         d.Ordering,
		Views:            d.Views,
		Object:           object,
	}

	var linkID int64
	if isNew {
		if linkID, err = q.InsertLink(ctx, link); err != nil {
			return 0, storeErr("insert link", err)
		}
	} else {
		linkID = existing.ID
		link.ID = linkID
		if err := q.UpdateLink(ctx, link); err != nil {
			return 0, storeErr("update link", err)
		}
	}
	ctx = slogctx.Append(ctx, "linkId", linkID)

	ws := newWorkspace(q, e.opts.MemoryTableLimit)
	ctx = slogctx.Append(ctx, "runId", ws.runID)
	defer func() {
		if err := ws.close(ctx); err != nil {
			slogctx.Warn(ctx, "Failed to clear token workspace", "error", err)
		}
	}()

	instructions := d.Instructions()
	for _, c := range Contexts {
		for _, field := range instructions[c] {
			for _, value := range d.Field(field) {
				if c == PathContext {
					value = normalizePath(value)
				}
				if err := e.tokenizeInto(ctx, ws, value, c, lang, format); err != nil {
					return 0, err
				}
			}
		}
	}

	for _, branch := range slices.Sorted(maps.Keys(d.taxonomy)) {
		for _, node := range d.Branch(branch) {
			nodeID, err := tree.AddNode(ctx, branch, node.Title, node.State, node.Access)
			if err != nil {
				return 0, storeErr("add taxonomy node", err)
			}
			if err := tree.AddMap(ctx, linkID, nodeID); err != nil {
				return 0, storeErr("add taxonomy map", err)
			}
			if err := e.tokenizeInto(ctx, ws, node.Title, MetaContext, lang, format); err != nil {
				return 0, err
			}
		}
	}

	terms, mappings, err := e.aggregate(ctx, ws)
	if err != nil {
		return 0, storeErr("aggregate tokens", err)
	}
	slogctx.Debug(ctx, "Aggregated tokens", "tokens", ws.count, "terms", len(terms))

	if err := q.InsertTerms(ctx, terms); err != nil {
		return 0, storeErr("insert terms", err)
	}
	names := make([]string, len(terms))
	for i, t := range terms {
		names[i] = t.Term
	}
	ids, err := q.TermIDs(ctx, names)
	if err != nil {
		return 0, storeErr("lookup terms", err)
	}
	termIDs := make([]int64, len(names))
	for i, name := range names {
		termIDs[i] = ids[name]
	}
	if err := q.IncrementLinks(ctx, termIDs); err != nil {
		return 0, storeErr("count terms", err)
	}

	for i := range mappings {
		mappings[i].TermID = ids[mappings[i].Term]
	}
	if err := q.InsertMappings(ctx, linkID, mappings); err != nil {
		return 0, storeErr("insert mappings", err)
	}

	if !isNew {
		n, err := q.DeleteOrphanTerms(ctx)
		if err != nil {
			return 0, storeErr("delete orphan terms", err)
		}
		if n > 0 {
			slogctx.Debug(ctx, "Deleted orphan terms", "count", n)
		}
	}

	if err := q.SetSignature(ctx, linkID, signature); err != nil {
		return 0, storeErr("stamp signature", err)
	}
	return linkID, nil
}

func (e *Engine) tokenizeInto(ctx context.Context, ws *workspace, value string, c Context, lang, format string) error {
	text, err := e.parsers.Parse(value, format)
	if err != nil {
		return err
	}
	tokens, err := e.tokenizer.Tokenize(text, lang, false)
	if err != nil {
		return err
	}
	if err := ws.add(ctx, tokens, c, lang); err != nil {
		return storeErr("store tokens", err)
	}
	return nil
}

// aggregate weighs every distinct term of each context by its occurrences and
// the context multiplier, then sums a term's weights across contexts. Terms
// and mappings come out in order of first appearance.
func (e *Engine) aggregate(ctx context.Context, ws *workspace) ([]storage.Term, []storage.Mapping, error) {
	var terms []storage.Term
	var mappings []storage.Mapping
	index := make(map[string]int)

	for _, c := range Contexts {
		counts, err := ws.counts(ctx, c)
		if err != nil {
			return nil, nil, err
		}
		multiplier := e.opts.Weight.Multiplier(c)
		for _, tc := range counts {
			weight := tokenizer.Round(tc.Weight*float64(tc.Count)*multiplier, 8)
			if i, ok := index[tc.Term]; ok {
				mappings[i].Weight += weight
				continue
			}
			index[tc.Term] = len(terms)
			terms = append(terms, storage.Term{
				Term:   tc.Term,
				Stem:   tc.Stem,
				Common: tc.Common,
				Phrase: tc.Phrase,
				Weight: tc.Weight,
			})
			mappings = append(mappings, storage.Mapping{
				Term:   tc.Term,
				Weight: weight,
				Shard:  storage.Shard(tc.Term),
			})
		}
	}

	for i := range mappings {
		mappings[i].Weight = tokenizer.Round(mappings[i].Weight, 8)
	}
	return terms, mappings, nil
}

// RemoveDocument drops a link with its mappings, the terms and taxonomy
// nodes nothing references anymore. Unknown ids are ignored.
func (e *Engine) RemoveDocument(ctx context.Context, linkID int64) error {
	ctx = slogctx.Append(ctx, "linkId", linkID)
	var tree *taxonomy.Tree
	err := e.db.WithTx(ctx, func(q *storage.Queries) error {
		tree = e.taxonomy.Begin(q)
		if err := q.DecrementLinks(ctx, linkID); err != nil {
			return storeErr("release terms", err)
		}
		if err := q.DeleteMappings(ctx, linkID); err != nil {
			return storeErr("delete mappings", err)
		}
		if _, err := q.DeleteOrphanTerms(ctx); err != nil {
			return storeErr("delete orphan terms", err)
		}
		if err := q.DeleteLink(ctx, linkID); err != nil {
			return storeErr("delete link", err)
		}
		if err := tree.RemoveMaps(ctx, linkID); err != nil {
			return storeErr("remove taxonomy maps", err)
		}
		if _, err := tree.RemoveOrphanNodes(ctx); err != nil {
			return storeErr("remove orphan nodes", err)
		}
		return nil
	})
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) {
			return err
		}
		return storeErr("remove document", err)
	}
	tree.Commit()
	slogctx.Debug(ctx, "Removed document")
	return nil
}

// Optimize purges unreferenced terms and taxonomy nodes and compacts the
// database. It should not run while documents are being added or removed.
func (e *Engine) Optimize(ctx context.Context) error {
	var terms, nodes int64
	var tree *taxonomy.Tree
	err := e.db.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		if terms, err = q.DeleteOrphanTerms(ctx); err != nil {
			return err
		}
		tree = e.taxonomy.Begin(q)
		nodes, err = tree.RemoveOrphanNodes(ctx)
		return err
	})
	if err != nil {
		return storeErr("optimize", err)
	}
	tree.Commit()
	if err := e.db.Compact(ctx); err != nil {
		return storeErr("compact", err)
	}
	slogctx.Info(ctx, "Optimized index", "orphanTerms", terms, "orphanNodes", nodes)
	return nil
}

func (e *Engine) Taxonomy() *taxonomy.Tree {
	return e.taxonomy
}

// Stem returns the root of token in lang with the configured stemmer,
// regardless of whether stemming is enabled for indexing.
func (e *Engine) Stem(token, lang string) string {
	return e.stemmer.Stem(token, e.tokenizer.PrimaryLanguage(lang))
}

func (e *Engine) Parse(input, format string) (string, error) {
	return e.parsers.Parse(input, format)
}

// Tokenize splits input the way AddDocument does.
func (e *Engine) Tokenize(ctx context.Context, input, lang string, phrase bool) ([]Token, error) {
	if _, err := e.common.load(ctx, e.tokenizer.PrimaryLanguage(lang)); err != nil {
		return nil, storeErr("load common words", err)
	}
	return e.tokenizer.Tokenize(input, lang, phrase)
}

// AddContentType returns the id of the content type title, registering it
// on first use.
func (e *Engine) AddContentType(ctx context.Context, title, mime string) (int64, error) {
	e.typesMu.Lock()
	defer e.typesMu.Unlock()

	if id, ok := e.types[title]; ok {
		return id, nil
	}
	id, err := e.db.Queries().AddContentType(ctx, title, mime)
	if err != nil {
		return 0, storeErr("add content type", err)
	}
	e.types[title] = id
	return id, nil
}

// IsCommonToken reports whether term is a common word of lang.
func (e *Engine) IsCommonToken(ctx context.Context, term, lang string) (bool, error) {
	list, err := e.common.load(ctx, e.tokenizer.PrimaryLanguage(lang))
	if err != nil {
		return false, storeErr("load common words", err)
	}
	_, ok := list[term]
	return ok, nil
}

// AddCommonWords extends the common word list of lang. Tokens already
// memoized keep their old flags until the engine is recreated.
func (e *Engine) AddCommonWords(ctx context.Context, lang string, terms ...string) error {
	if err := e.db.Queries().AddCommonTerms(ctx, e.tokenizer.PrimaryLanguage(lang), terms...); err != nil {
		return storeErr("add common words", err)
	}
	e.common.reset()
	e.tokenizer.Reset()
	return nil
}

// normalizeDate maps dates without a leading non-zero number to
// storage.NullDate.
func normalizeDate(date string) string {
	s := strings.TrimSpace(date)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if n, err := strconv.Atoi(s[:end]); err != nil || n == 0 {
		return storage.NullDate
	}
	return s
}

// normalizePath turns a path into words: the extension is dropped, slashes
// and dashes become spaces.
func normalizePath(p string) string {
	p = strings.TrimSuffix(p, path.Ext(p))
	return strings.NewReplacer("/", " ", "-", " ").Replace(p)
}
