package spider_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/deidaraiorek/deindex/internal/spider"
	_ "github.com/mattn/go-sqlite3"
)

func createSpiderDB(t *testing.T, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spider.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		title TEXT,
		description TEXT,
		content TEXT,
		status_code INTEGER,
		crawled_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		t.Fatalf("Failed to create pages table: %v", err)
	}

	for i := 1; i <= pages; i++ {
		_, err := db.Exec(
			"INSERT INTO pages (url, title, description, content, status_code) VALUES (?, ?, ?, ?, ?)",
			fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("Page %d", i), nil, "content", 200,
		)
		if err != nil {
			t.Fatalf("Failed to insert page: %v", err)
		}
	}
	return path
}

func TestPagesAfter(t *testing.T) {
	r, err := spider.Open(createSpiderDB(t, 5))
	if err != nil {
		t.Fatalf("Failed to open spider DB: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	count, err := r.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count pages: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 pages, got %d", count)
	}

	pages, err := r.PagesAfter(ctx, 2, 2)
	if err != nil {
		t.Fatalf("Failed to read pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}
	if pages[0].ID != 3 || pages[1].ID != 4 {
		t.Errorf("Expected pages 3 and 4, got %d and %d", pages[0].ID, pages[1].ID)
	}
	if pages[0].Title != "Page 3" || pages[0].Description != "" || pages[0].StatusCode != 200 {
		t.Errorf("Unexpected page: %+v", pages[0])
	}
	if pages[0].CrawledAt == "" {
		t.Error("Expected crawl time to be set")
	}

	pages, err = r.PagesAfter(ctx, 5, 10)
	if err != nil {
		t.Fatalf("Failed to read pages: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("Expected no pages after the last one, got %d", len(pages))
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := spider.Open(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("Open(missing) succeeded, want error")
	}
}
