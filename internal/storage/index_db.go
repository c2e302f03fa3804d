package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type IndexDB struct {
	db     *sql.DB
	prefix string
	t      tables
}

// NewIndexDB opens (creating if needed) the index database at dbPath. All
// tables are named "<prefix>_...". Write transactions take the database lock
// up front so concurrent writers queue on the busy timeout instead of failing
// on lock upgrade.
func NewIndexDB(dbPath, prefix string) (*IndexDB, error) {
	if !prefixRe.MatchString(prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", prefix)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_auto_vacuum=incremental", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	indexDB := &IndexDB{
		db:     db,
		prefix: prefix,
		t:      newTables(prefix),
	}

	if err := indexDB.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return indexDB, nil
}

func (idb *IndexDB) initSchema() error {
	if _, err := idb.db.Exec(Schema(idb.prefix)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := idb.Queries().AddCommonTerms(context.Background(), "en", englishCommonWords...); err != nil {
		return fmt.Errorf("failed to seed common terms: %w", err)
	}
	return nil
}

func (idb *IndexDB) Prefix() string {
	return idb.prefix
}

// Queries runs statements directly on the database, outside any transaction.
func (idb *IndexDB) Queries() *Queries {
	return &Queries{q: idb.db, t: &idb.t}
}

// WithTx runs fn inside one transaction, committing when fn returns nil and
// rolling back otherwise.
func (idb *IndexDB) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := idb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx, t: &idb.t}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (idb *IndexDB) SetMetadata(key, value string) error {
	_, err := idb.db.Exec(
		"INSERT OR REPLACE INTO "+idb.t.metadata+" (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		key, value,
	)
	return err
}

func (idb *IndexDB) GetMetadata(key string) (string, error) {
	var value string
	err := idb.db.QueryRow(
		"SELECT value FROM "+idb.t.metadata+" WHERE key = ?",
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// GetLastIndexedPageID returns the id of the last crawled page fed to the
// index.
func (idb *IndexDB) GetLastIndexedPageID() (int, error) {
	value, err := idb.GetMetadata("last_indexed_page_id")
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid last_indexed_page_id %q: %w", value, err)
	}
	return id, nil
}

func (idb *IndexDB) SetLastIndexedPageID(id int) error {
	return idb.SetMetadata("last_indexed_page_id", strconv.Itoa(id))
}

// GetLinkCount returns the number of indexed documents.
func (idb *IndexDB) GetLinkCount() (int, error) {
	var count int
	err := idb.db.QueryRow("SELECT COUNT(*) FROM " + idb.t.links).Scan(&count)
	return count, err
}

// Compact runs SQLite's own maintenance and hands free pages back to the
// filesystem, then stamps last_optimized.
func (idb *IndexDB) Compact(ctx context.Context) error {
	if _, err := idb.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize: %w", err)
	}
	if _, err := idb.db.ExecContext(ctx, "PRAGMA incremental_vacuum"); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	return idb.SetMetadata("last_optimized", time.Now().UTC().Format(time.RFC3339))
}

func (idb *IndexDB) Close() error {
	return idb.db.Close()
}

// Link returns the link row for url.
func (idb *IndexDB) Link(ctx context.Context, url string) (*Link, error) {
	return idb.Queries().LinkByURL(ctx, url)
}

// Term returns the dictionary row for term.
func (idb *IndexDB) Term(ctx context.Context, term string) (*Term, error) {
	return idb.Queries().Term(ctx, term)
}

// LinkTerms returns every mapping of a link across all shards.
func (idb *IndexDB) LinkTerms(ctx context.Context, linkID int64) ([]Mapping, error) {
	return idb.Queries().LinkTerms(ctx, linkID)
}

// Queries groups the statements used while indexing. It runs either on the
// database or inside the transaction handed out by WithTx.
type Queries struct {
	q querier
	t *tables
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
