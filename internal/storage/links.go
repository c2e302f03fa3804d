package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Link struct {
	ID               int64
	URL              string
	Route            string
	Title            string
	Author           string
	Description      string
	IndexDate        string
	Signature        string
	Published        bool
	State            int
	Access           int
	Language         string
	Size             int
	TypeID           int64
	PublishStartDate string
	PublishEndDate   string
	StartDate        string
	EndDate          string
	ListPrice        float64
	SalePrice        float64
	Ordering         int
	Views            int
	Object           []byte
}

const linkColumns = `link_id, url, route, title, author, description, indexdate, md5sum,
	published, state, access, language, size, type_id,
	publish_start_date, publish_end_date, start_date, end_date,
	list_price, sale_price, ordering, views, object`

func scanLink(row interface{ Scan(...any) error }) (*Link, error) {
	var l Link
	var published int
	var indexDate sql.NullString
	err := row.Scan(
		&l.ID, &l.URL, &l.Route, &l.Title, &l.Author, &l.Description, &indexDate, &l.Signature,
		&published, &l.State, &l.Access, &l.Language, &l.Size, &l.TypeID,
		&l.PublishStartDate, &l.PublishEndDate, &l.StartDate, &l.EndDate,
		&l.ListPrice, &l.SalePrice, &l.Ordering, &l.Views, &l.Object,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Published = published != 0
	l.IndexDate = indexDate.String
	return &l, nil
}

func (q *Queries) LinkByURL(ctx context.Context, url string) (*Link, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+linkColumns+" FROM "+q.t.links+" WHERE url = ?", url)
	l, err := scanLink(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to query link %q: %w", url, err)
	}
	return l, err
}

func (q *Queries) LinkByID(ctx context.Context, id int64) (*Link, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+linkColumns+" FROM "+q.t.links+" WHERE link_id = ?", id)
	l, err := scanLink(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to query link %d: %w", id, err)
	}
	return l, err
}

// InsertLink stores a new link and returns its id. The signature is stamped
// separately once the document's terms are mapped.
func (q *Queries) InsertLink(ctx context.Context, l *Link) (int64, error) {
	result, err := q.q.ExecContext(ctx, `INSERT INTO `+q.t.links+` (
		url, route, title, author, description, indexdate, published, state, access,
		language, size, type_id, publish_start_date, publish_end_date, start_date, end_date,
		list_price, sale_price, ordering, views, object
	) VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.URL, l.Route, l.Title, l.Author, l.Description, l.State, l.Access,
		l.Language, l.Size, l.TypeID, l.PublishStartDate, l.PublishEndDate, l.StartDate, l.EndDate,
		l.ListPrice, l.SalePrice, l.Ordering, l.Views, l.Object,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert link %q: %w", l.URL, err)
	}
	return result.LastInsertId()
}

func (q *Queries) UpdateLink(ctx context.Context, l *Link) error {
	_, err := q.q.ExecContext(ctx, `UPDATE `+q.t.links+` SET
		route = ?, title = ?, author = ?, description = ?, indexdate = CURRENT_TIMESTAMP,
		state = ?, access = ?, language = ?, size = ?, type_id = ?,
		publish_start_date = ?, publish_end_date = ?, start_date = ?, end_date = ?,
		list_price = ?, sale_price = ?, ordering = ?, views = ?, object = ?
		WHERE link_id = ?`,
		l.Route, l.Title, l.Author, l.Description,
		l.State, l.Access, l.Language, l.Size, l.TypeID,
		l.PublishStartDate, l.PublishEndDate, l.StartDate, l.EndDate,
		l.ListPrice, l.SalePrice, l.Ordering, l.Views, l.Object,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update link %d: %w", l.ID, err)
	}
	return nil
}

// RaiseViews sets the view count of a link when views is larger than the
// stored one.
func (q *Queries) RaiseViews(ctx context.Context, id int64, views int) error {
	_, err := q.q.ExecContext(ctx,
		"UPDATE "+q.t.links+" SET views = ? WHERE link_id = ? AND views < ?",
		views, id, views,
	)
	if err != nil {
		return fmt.Errorf("failed to update views of link %d: %w", id, err)
	}
	return nil
}

func (q *Queries) SetSignature(ctx context.Context, id int64, signature string) error {
	_, err := q.q.ExecContext(ctx,
		"UPDATE "+q.t.links+" SET md5sum = ? WHERE link_id = ?",
		signature, id,
	)
	if err != nil {
		return fmt.Errorf("failed to sign link %d: %w", id, err)
	}
	return nil
}

func (q *Queries) DeleteLink(ctx context.Context, id int64) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM "+q.t.links+" WHERE link_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete link %d: %w", id, err)
	}
	return nil
}
