// Package spider reads crawled pages from a crawler's SQLite database so they
// can be fed to the index.
package spider

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type Page struct {
	ID          int
	URL         string
	Title       string
	Description string
	Content     string
	StatusCode  int
	CrawledAt   string
}

type Reader struct {
	db *sql.DB
}

// Open opens the crawler database at path read-only.
func Open(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open spider database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open spider database: %w", err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}

// PagesAfter returns up to limit pages with an id above afterID, in id order.
func (r *Reader) PagesAfter(ctx context.Context, afterID, limit int) ([]*Page, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, url, COALESCE(title, ''), COALESCE(description, ''), COALESCE(content, ''),"+
			" COALESCE(status_code, 0), COALESCE(crawled_at, '')"+
			" FROM pages WHERE id > ? ORDER BY id LIMIT ?",
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page := &Page{}
		err := rows.Scan(&page.ID, &page.URL, &page.Title, &page.Description, &page.Content, &page.StatusCode, &page.CrawledAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (r *Reader) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&count)
	return count, err
}
