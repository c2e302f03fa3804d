// Package taxonomy maintains the two level branch/node classification that
// documents are mapped to. Lookups go through process-local caches that heal
// themselves when the stored state or access drifts from what callers ask for.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deidaraiorek/deindex/internal/cache"
	"github.com/deidaraiorek/deindex/internal/storage"
)

var ErrEmptyTitle = errors.New("empty taxonomy title")

// Store is the persistence the tree needs; *storage.Queries implements it.
type Store interface {
	Node(ctx context.Context, parentID int64, title string) (*storage.Node, error)
	UpsertNode(ctx context.Context, parentID int64, title string, state, access int) (int64, error)
	AddMap(ctx context.Context, linkID, nodeID int64) error
	RemoveMaps(ctx context.Context, linkID int64) (int64, error)
	RemoveOrphanNodes(ctx context.Context) (int64, error)
	BranchTitles(ctx context.Context, maxAccess int) ([]string, error)
	NodeByTitle(ctx context.Context, branch, prefix string, maxAccess int) (*storage.Node, error)
}

type nodeKey struct {
	branch string
	title  string
}

type Tree struct {
	store    Store
	filter   func(string) string
	branches cache.Cache[string, storage.Node]
	nodes    cache.Cache[nodeKey, storage.Node]

	mu  *sync.Mutex
	gen *uint64
	tx  *pending
}

// pending holds the cache writes of a transaction until it commits. Rows
// written in a transaction that rolls back must never reach the shared
// caches.
type pending struct {
	gen        uint64
	branches   map[string]storage.Node
	nodes      map[nodeKey]storage.Node
	nodesReset bool
}

// New creates a tree over store. filter cleans titles before they are looked
// up or stored; nil keeps titles as given.
func New(store Store, filter func(string) string, cacheSize int) *Tree {
	if filter == nil {
		filter = func(s string) string { return s }
	}
	return &Tree{
		store:    store,
		filter:   filter,
		branches: cache.New[string, storage.Node](cacheSize),
		nodes:    cache.New[nodeKey, storage.Node](cacheSize),
		mu:       &sync.Mutex{},
		gen:      new(uint64),
	}
}

// Begin returns a tree that runs its statements on store, typically a
// transaction. It reads through this tree's caches but keeps its own writes
// aside until Commit.
func (t *Tree) Begin(store Store) *Tree {
	t.mu.Lock()
	gen := *t.gen
	t.mu.Unlock()

	c := *t
	c.store = store
	c.tx = &pending{
		gen:      gen,
		branches: make(map[string]storage.Node),
		nodes:    make(map[nodeKey]storage.Node),
	}
	return &c
}

// Commit publishes the cache writes of a tree returned by Begin. Call it only
// once the transaction has committed. Writes staged before another commit
// removed nodes are dropped, since they may name deleted rows.
func (t *Tree) Commit() {
	p := t.tx
	if p == nil {
		return
	}
	t.tx = nil

	t.mu.Lock()
	defer t.mu.Unlock()
	if p.nodesReset {
		t.nodes.Clear()
		*t.gen++
	} else if *t.gen != p.gen {
		return
	}
	for title, b := range p.branches {
		t.branches.Put(title, b)
	}
	for key, n := range p.nodes {
		t.nodes.Put(key, n)
	}
}

// Reset empties the caches.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.branches.Clear()
	t.nodes.Clear()
	*t.gen++
}

func (t *Tree) getBranch(title string) (storage.Node, bool) {
	if t.tx != nil {
		if b, ok := t.tx.branches[title]; ok {
			return b, true
		}
	}
	return t.branches.Get(title)
}

func (t *Tree) putBranch(title string, b storage.Node) {
	if t.tx != nil {
		t.tx.branches[title] = b
		return
	}
	t.branches.Put(title, b)
}

func (t *Tree) getNode(key nodeKey) (storage.Node, bool) {
	if t.tx != nil {
		if n, ok := t.tx.nodes[key]; ok {
			return n, true
		}
		if t.tx.nodesReset {
			return storage.Node{}, false
		}
	}
	return t.nodes.Get(key)
}

func (t *Tree) putNode(key nodeKey, n storage.Node) {
	if t.tx != nil {
		t.tx.nodes[key] = n
		return
	}
	t.nodes.Put(key, n)
}

func (t *Tree) resetNodes() {
	if t.tx != nil {
		t.tx.nodes = make(map[nodeKey]storage.Node)
		t.tx.nodesReset = true
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes.Clear()
	*t.gen++
}

// AddBranch returns the id of the branch with the given title, creating it or
// bringing its state and access up to date as needed.
func (t *Tree) AddBranch(ctx context.Context, title string, state, access int) (int64, error) {
	title = t.filter(title)
	if title == "" {
		return 0, ErrEmptyTitle
	}

	if b, ok := t.getBranch(title); ok && b.State == state && b.Access == access {
		return b.ID, nil
	}

	b, err := t.store.Node(ctx, storage.RootNodeID, title)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	if b != nil && b.State == state && b.Access == access {
		t.putBranch(title, *b)
		return b.ID, nil
	}

	id, err := t.store.UpsertNode(ctx, storage.RootNodeID, title, state, access)
	if err != nil {
		return 0, err
	}
	t.putBranch(title, storage.Node{ID: id, ParentID: storage.RootNodeID, Title: title, State: state, Access: access})
	return id, nil
}

// branchID finds or creates a branch without touching the state or access of
// an existing one.
func (t *Tree) branchID(ctx context.Context, title string) (int64, error) {
	if b, ok := t.getBranch(title); ok {
		return b.ID, nil
	}

	b, err := t.store.Node(ctx, storage.RootNodeID, title)
	if err == nil {
		t.putBranch(title, *b)
		return b.ID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	return t.AddBranch(ctx, title, 1, 0)
}

// AddNode returns the id of the node titled title under branch, creating the
// branch and node as needed.
func (t *Tree) AddNode(ctx context.Context, branch, title string, state, access int) (int64, error) {
	branch = t.filter(branch)
	title = t.filter(title)
	if branch == "" || title == "" {
		return 0, ErrEmptyTitle
	}

	key := nodeKey{branch: branch, title: title}
	if n, ok := t.getNode(key); ok && n.State == state && n.Access == access {
		return n.ID, nil
	}

	branchID, err := t.branchID(ctx, branch)
	if err != nil {
		return 0, fmt.Errorf("failed to add branch %q: %w", branch, err)
	}

	n, err := t.store.Node(ctx, branchID, title)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	if n != nil && n.State == state && n.Access == access {
		t.putNode(key, *n)
		return n.ID, nil
	}

	id, err := t.store.UpsertNode(ctx, branchID, title, state, access)
	if err != nil {
		return 0, err
	}
	t.putNode(key, storage.Node{ID: id, ParentID: branchID, Title: title, State: state, Access: access})
	return id, nil
}

func (t *Tree) AddMap(ctx context.Context, linkID, nodeID int64) error {
	return t.store.AddMap(ctx, linkID, nodeID)
}

func (t *Tree) RemoveMaps(ctx context.Context, linkID int64) error {
	_, err := t.store.RemoveMaps(ctx, linkID)
	return err
}

// RemoveOrphanNodes deletes nodes without any mapped document and returns how
// many were removed.
func (t *Tree) RemoveOrphanNodes(ctx context.Context) (int64, error) {
	n, err := t.store.RemoveOrphanNodes(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.resetNodes()
	}
	return n, nil
}

func (t *Tree) BranchTitles(ctx context.Context, maxAccess int) ([]string, error) {
	return t.store.BranchTitles(ctx, maxAccess)
}

// NodeByTitle returns the first node of branch whose title starts with
// prefix, or storage.ErrNotFound.
func (t *Tree) NodeByTitle(ctx context.Context, branch, prefix string, maxAccess int) (*storage.Node, error) {
	return t.store.NodeByTitle(ctx, t.filter(branch), t.filter(prefix), maxAccess)
}
