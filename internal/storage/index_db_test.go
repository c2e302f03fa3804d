package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/deidaraiorek/deindex/internal/storage"
)

func openTestDB(t *testing.T) (*storage.IndexDB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	db, err := storage.NewIndexDB(dbPath, "search")
	if err != nil {
		t.Fatalf("Failed to create index DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dbPath
}

func TestNewIndexDB(t *testing.T) {
	db, _ := openTestDB(t)

	count, err := db.GetLinkCount()
	if err != nil {
		t.Fatalf("Failed to get link count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 links, got %d", count)
	}

	lastID, err := db.GetLastIndexedPageID()
	if err != nil {
		t.Fatalf("Failed to get last indexed page id: %v", err)
	}
	if lastID != 0 {
		t.Errorf("Expected last indexed page 0, got %d", lastID)
	}

	common, err := db.Queries().CommonTerms(context.Background(), "en")
	if err != nil {
		t.Fatalf("Failed to load common terms: %v", err)
	}
	if !slices.Contains(common, "the") {
		t.Error("Expected seeded english common terms to contain \"the\"")
	}
}

func TestNewIndexDBRejectsPrefix(t *testing.T) {
	for _, prefix := range []string{"", "1abc", "x; DROP TABLE y", "Search"} {
		if _, err := storage.NewIndexDB(filepath.Join(t.TempDir(), "bad.db"), prefix); err == nil {
			t.Errorf("NewIndexDB(prefix %q) succeeded, want error", prefix)
		}
	}
}

func TestSchemaCreatesShards(t *testing.T) {
	_, dbPath := openTestDB(t)

	raw, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer raw.Close()

	var shards int
	err = raw.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'search\\_links\\_terms_' ESCAPE '\\'",
	).Scan(&shards)
	if err != nil {
		t.Fatalf("Failed to count shard tables: %v", err)
	}
	if shards != storage.ShardCount {
		t.Errorf("Expected %d shard tables, got %d", storage.ShardCount, shards)
	}
}

func TestMetadata(t *testing.T) {
	db, _ := openTestDB(t)

	if err := db.SetLastIndexedPageID(42); err != nil {
		t.Fatalf("Failed to set last indexed page id: %v", err)
	}
	lastID, err := db.GetLastIndexedPageID()
	if err != nil {
		t.Fatalf("Failed to get last indexed page id: %v", err)
	}
	if lastID != 42 {
		t.Errorf("Expected last indexed page 42, got %d", lastID)
	}

	if _, err := db.GetMetadata("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMetadata(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCompact(t *testing.T) {
	db, _ := openTestDB(t)

	if err := db.Compact(context.Background()); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	value, err := db.GetMetadata("last_optimized")
	if err != nil {
		t.Fatalf("Failed to get last_optimized: %v", err)
	}
	if value == "" {
		t.Error("Expected last_optimized to be set")
	}
}

func TestLinks(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	var id int64
	err := db.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		id, err = q.InsertLink(ctx, &storage.Link{
			URL:              "https://example.com/a",
			Title:            "A",
			Language:         "en-GB",
			PublishStartDate: storage.NullDate,
			PublishEndDate:   storage.NullDate,
			StartDate:        storage.NullDate,
			EndDate:          storage.NullDate,
			Views:            3,
		})
		if err != nil {
			return err
		}
		return q.SetSignature(ctx, id, "abc")
	})
	if err != nil {
		t.Fatalf("Failed to insert link: %v", err)
	}

	link, err := db.Link(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("Failed to get link: %v", err)
	}
	if link.ID != id || link.Signature != "abc" || !link.Published || link.Views != 3 {
		t.Errorf("Unexpected link %+v", link)
	}

	q := db.Queries()
	if err := q.RaiseViews(ctx, id, 2); err != nil {
		t.Fatalf("RaiseViews failed: %v", err)
	}
	if err := q.RaiseViews(ctx, id, 9); err != nil {
		t.Fatalf("RaiseViews failed: %v", err)
	}
	link, _ = q.LinkByID(ctx, id)
	if link.Views != 9 {
		t.Errorf("Expected 9 views, got %d", link.Views)
	}

	link.Title = "B"
	if err := q.UpdateLink(ctx, link); err != nil {
		t.Fatalf("UpdateLink failed: %v", err)
	}
	link, _ = q.LinkByID(ctx, id)
	if link.Title != "B" {
		t.Errorf("Expected title B, got %q", link.Title)
	}

	if err := q.DeleteLink(ctx, id); err != nil {
		t.Fatalf("DeleteLink failed: %v", err)
	}
	if _, err := db.Link(ctx, "https://example.com/a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Link after delete error = %v, want ErrNotFound", err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.InsertLink(ctx, &storage.Link{URL: "https://example.com/rollback"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	if _, err := db.Link(ctx, "https://example.com/rollback"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected rolled back link to be absent, got %v", err)
	}
}

func TestTermsAndMappings(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	terms := []storage.Term{
		{Term: "red", Stem: "red", Weight: 0.2},
		{Term: "bicycle", Stem: "bicycl", Weight: 0.4667},
		{Term: "red bicycle", Stem: "red bicycl", Phrase: true, Weight: 1.3667},
	}
	if err := q.InsertTerms(ctx, terms); err != nil {
		t.Fatalf("InsertTerms failed: %v", err)
	}
	if err := q.InsertTerms(ctx, terms[:1]); err != nil {
		t.Fatalf("InsertTerms of an existing term failed: %v", err)
	}

	ids, err := q.TermIDs(ctx, []string{"red", "bicycle", "red bicycle"})
	if err != nil {
		t.Fatalf("TermIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 term ids, got %d", len(ids))
	}

	const linkID = 7
	var mappings []storage.Mapping
	var termIDs []int64
	for term, id := range ids {
		mappings = append(mappings, storage.Mapping{TermID: id, Term: term, Weight: 0.5, Shard: storage.Shard(term)})
		termIDs = append(termIDs, id)
	}
	if err := q.IncrementLinks(ctx, termIDs); err != nil {
		t.Fatalf("IncrementLinks failed: %v", err)
	}
	if err := q.InsertMappings(ctx, linkID, mappings); err != nil {
		t.Fatalf("InsertMappings failed: %v", err)
	}

	got, err := db.LinkTerms(ctx, linkID)
	if err != nil {
		t.Fatalf("LinkTerms failed: %v", err)
	}
	if len(got) != 3 || got[0].Term != "bicycle" || got[0].Shard != storage.Shard("bicycle") {
		t.Errorf("Unexpected mappings %+v", got)
	}

	red, err := db.Term(ctx, "red")
	if err != nil {
		t.Fatalf("Term failed: %v", err)
	}
	if red.Links != 1 || red.Soundex != "R300" {
		t.Errorf("Unexpected term %+v", red)
	}

	if err := q.DecrementLinks(ctx, linkID); err != nil {
		t.Fatalf("DecrementLinks failed: %v", err)
	}
	if err := q.DeleteMappings(ctx, linkID); err != nil {
		t.Fatalf("DeleteMappings failed: %v", err)
	}
	deleted, err := q.DeleteOrphanTerms(ctx)
	if err != nil {
		t.Fatalf("DeleteOrphanTerms failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 orphan terms deleted, got %d", deleted)
	}
	if got, _ := db.LinkTerms(ctx, linkID); len(got) != 0 {
		t.Errorf("Expected no mappings left, got %d", len(got))
	}
}

func TestShard(t *testing.T) {
	seen := make(map[int]bool)
	for _, term := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z", "中", "é"} {
		shard := storage.Shard(term)
		if shard < 0 || shard >= storage.ShardCount {
			t.Fatalf("Shard(%q) = %d, out of range", term, shard)
		}
		seen[shard] = true
	}
	if len(seen) < 4 {
		t.Errorf("Expected terms to spread over shards, got %d distinct", len(seen))
	}

	if storage.Shard("bicycle") != storage.Shard("b") || storage.Shard("bicycle") != storage.Shard("blue sky") {
		t.Error("Expected terms with the same first character to share a shard")
	}
	// md5("a") = 0cc175b9...
	if storage.Shard("apple") != 0 {
		t.Errorf("Shard(apple) = %d, want 0", storage.Shard("apple"))
	}
	// md5("b") = 92eb5ffe...
	if storage.Shard("bicycle") != 9 {
		t.Errorf("Shard(bicycle) = %d, want 9", storage.Shard("bicycle"))
	}
}

func TestSoundex(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Ashcraft", "A261"},
		{"Tymczak", "T522"},
		{"Pfister", "P236"},
		{"red", "R300"},
		{"a", "A000"},
		{"中文", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if result := storage.Soundex(tt.input); result != tt.expected {
			t.Errorf("Soundex(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestTokens(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	rows := []storage.TokenRow{
		{Term: "sale", Weight: 0.2667, Context: 2},
		{Term: "red", Weight: 0.2, Context: 2},
		{Term: "sale", Weight: 0.2667, Context: 2},
		{Term: "red", Weight: 0.2, Context: 1},
	}
	if err := q.InsertTokens(ctx, "run-a", rows); err != nil {
		t.Fatalf("InsertTokens failed: %v", err)
	}
	if err := q.InsertTokens(ctx, "run-b", rows[:1]); err != nil {
		t.Fatalf("InsertTokens failed: %v", err)
	}

	counts, err := q.CountTokens(ctx, "run-a", 2)
	if err != nil {
		t.Fatalf("CountTokens failed: %v", err)
	}
	if len(counts) != 2 || counts[0].Term != "sale" || counts[0].Count != 2 || counts[1].Term != "red" || counts[1].Count != 1 {
		t.Errorf("Unexpected counts %+v", counts)
	}

	if err := q.DeleteTokens(ctx, "run-a"); err != nil {
		t.Fatalf("DeleteTokens failed: %v", err)
	}
	if n, _ := q.TokenRunCount(ctx, "run-a"); n != 0 {
		t.Errorf("Expected run-a to be empty, got %d rows", n)
	}
	if n, _ := q.TokenRunCount(ctx, "run-b"); n != 1 {
		t.Errorf("Expected run-b to keep 1 row, got %d", n)
	}
}

func TestTaxonomyNodes(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	branch, err := q.UpsertNode(ctx, storage.RootNodeID, "Color", 1, 0)
	if err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	again, err := q.UpsertNode(ctx, storage.RootNodeID, "Color", 0, 2)
	if err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if again != branch {
		t.Errorf("Expected upsert to keep id %d, got %d", branch, again)
	}
	stored, err := q.Node(ctx, storage.RootNodeID, "Color")
	if err != nil {
		t.Fatalf("Node failed: %v", err)
	}
	if stored.State != 0 || stored.Access != 2 {
		t.Errorf("Expected state/access 0/2, got %d/%d", stored.State, stored.Access)
	}
	if _, err := q.UpsertNode(ctx, storage.RootNodeID, "Color", 1, 0); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	red, _ := q.UpsertNode(ctx, branch, "Red", 1, 0)
	blue, _ := q.UpsertNode(ctx, branch, "Blue", 1, 0)

	if err := q.AddMap(ctx, 1, red); err != nil {
		t.Fatalf("AddMap failed: %v", err)
	}
	if err := q.AddMap(ctx, 1, red); err != nil {
		t.Fatalf("AddMap twice failed: %v", err)
	}

	removed, err := q.RemoveOrphanNodes(ctx)
	if err != nil {
		t.Fatalf("RemoveOrphanNodes failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 orphan removed, got %d", removed)
	}
	if _, err := q.Node(ctx, branch, "Blue"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected node %d to be gone, got %v", blue, err)
	}

	node, err := q.NodeByTitle(ctx, "Color", "Re", 0)
	if err != nil {
		t.Fatalf("NodeByTitle failed: %v", err)
	}
	if node.ID != red {
		t.Errorf("NodeByTitle = %d, want %d", node.ID, red)
	}
	if _, err := q.NodeByTitle(ctx, "Color", "%", 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("NodeByTitle(%%) error = %v, want ErrNotFound", err)
	}

	titles, err := q.BranchTitles(ctx, 0)
	if err != nil {
		t.Fatalf("BranchTitles failed: %v", err)
	}
	if len(titles) != 1 || titles[0] != "Color" {
		t.Errorf("BranchTitles = %q, want [Color]", titles)
	}

	if _, err := q.RemoveMaps(ctx, 1); err != nil {
		t.Fatalf("RemoveMaps failed: %v", err)
	}
	if removed, _ := q.RemoveOrphanNodes(ctx); removed != 1 {
		t.Errorf("Expected the unmapped node to be removed, got %d", removed)
	}
	if removed, _ := q.RemoveOrphanNodes(ctx); removed != 0 {
		t.Errorf("Expected RemoveOrphanNodes to be idempotent, got %d", removed)
	}
	if _, err := q.Node(ctx, storage.RootNodeID, "Color"); err != nil {
		t.Errorf("Expected branch to survive orphan removal, got %v", err)
	}
}

func TestContentTypes(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	first, err := q.AddContentType(ctx, "Article", "text/html")
	if err != nil {
		t.Fatalf("AddContentType failed: %v", err)
	}
	second, err := q.AddContentType(ctx, "Article", "")
	if err != nil {
		t.Fatalf("AddContentType failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected same id for the same title, got %d and %d", first, second)
	}

	types, err := q.ContentTypes(ctx)
	if err != nil {
		t.Fatalf("ContentTypes failed: %v", err)
	}
	if types["Article"] != first || len(types) != 1 {
		t.Errorf("Unexpected content types %v", types)
	}
}
