package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/deidaraiorek/deindex/internal/spider"
	"github.com/deidaraiorek/deindex/internal/storage"
	"github.com/deidaraiorek/deindex/search"
	slogctx "github.com/veqryn/slog-context"
)

// indexer feeds crawled pages to the engine, remembering the last page it
// handled in the index metadata.
type indexer struct {
	db        *storage.IndexDB
	engine    *search.Engine
	pages     *spider.Reader
	batchSize int
	format    string
}

// Pass indexes every page crawled since the previous pass and returns the
// number of pages indexed.
func (ix *indexer) Pass(ctx context.Context) (int, error) {
	lastID, err := ix.db.GetLastIndexedPageID()
	if err != nil {
		return 0, fmt.Errorf("failed to read progress: %w", err)
	}
	typeID, err := ix.engine.AddContentType(ctx, "Web Page", "text/html")
	if err != nil {
		return 0, err
	}

	indexed := 0
	for {
		pages, err := ix.pages.PagesAfter(ctx, lastID, ix.batchSize)
		if err != nil {
			return indexed, err
		}
		if len(pages) == 0 {
			return indexed, nil
		}

		for _, page := range pages {
			if page.StatusCode < 200 || page.StatusCode >= 300 {
				continue
			}
			pageCtx := slogctx.Append(ctx, "pageId", page.ID)
			if _, err := ix.engine.AddDocument(pageCtx, pageDocument(page, typeID), ix.format); err != nil {
				var se *search.StoreError
				if errors.As(err, &se) {
					return indexed, err
				}
				slogctx.Warn(pageCtx, "Skipping page", "url", page.URL, "error", err)
				continue
			}
			indexed++
		}

		lastID = pages[len(pages)-1].ID
		if err := ix.db.SetLastIndexedPageID(lastID); err != nil {
			return indexed, fmt.Errorf("failed to save progress: %w", err)
		}
		slogctx.Info(ctx, "Indexed batch", "lastPageId", lastID, "indexed", indexed)
	}
}

func pageDocument(page *spider.Page, typeID int64) *search.Document {
	doc := search.NewDocument(page.URL)
	doc.Title = page.Title
	doc.Summary = page.Description
	doc.Body = page.Content
	doc.TypeID = typeID
	doc.StartDate = page.CrawledAt
	doc.Size = len(page.Content)

	if u, err := url.Parse(page.URL); err == nil {
		doc.Route = u.RequestURI()
		doc.Path = strings.Trim(u.Path, "/")
		if host := u.Hostname(); host != "" {
			doc.AddTaxonomy("Site", host, 1, 0)
		}
	}
	return doc
}
