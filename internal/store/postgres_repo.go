package store

import (
	"context"
	"errors"
	"fmt"

	"bookcatalog/internal/catalog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepo struct {
	q querier
}

const bookSelect = `
	SELECT b.id, b.title, b.subtitle, COALESCE(b.isbn, ''), COALESCE(b.open_library_id, ''),
		b.goodreads_id, b.google_books_id, b.library_thing_id, b.format, b.publish_date,
		b.summary, b.image_url, b.is_collected, b.publisher_id, COALESCE(p.name, ''),
		b.created_at, b.updated_at
	FROM books b
	LEFT JOIN publishers p ON p.id = b.publisher_id`

func scanBook(row pgx.Row) (catalog.Book, error) {
	var (
		b           catalog.Book
		format      string
		publisherID *string
		publisher   string
	)
	err := row.Scan(&b.ID, &b.Title, &b.Subtitle, &b.ISBN, &b.OpenLibraryID,
		&b.GoodreadsID, &b.GoogleBooksID, &b.LibraryThingID, &format, &b.PublishDate,
		&b.Summary, &b.ImageURL, &b.IsCollected, &publisherID, &publisher,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Book{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Book{}, err
	}
	b.Format = catalog.Format(format)
	if publisherID != nil {
		b.Publisher = &catalog.Publisher{ID: *publisherID, Name: publisher}
	}
	return b, nil
}

func (r *pgRepo) findBook(ctx context.Context, where string, args ...any) (catalog.Book, error) {
	b, err := scanBook(r.q.QueryRow(ctx, bookSelect+" WHERE "+where, args...))
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return catalog.Book{}, fmt.Errorf("find book: %w", err)
	}
	return b, err
}

func (r *pgRepo) GetBook(ctx context.Context, id string) (catalog.Book, error) {
	if uuid.Validate(id) != nil {
		return catalog.Book{}, catalog.ErrNotFound
	}
	b, err := r.findBook(ctx, "b.id = $1", id)
	if err != nil {
		return catalog.Book{}, err
	}
	if b.Credits, err = r.ListCredits(ctx, b.ID); err != nil {
		return catalog.Book{}, err
	}
	if b.Series, err = r.listSeries(ctx, b.ID); err != nil {
		return catalog.Book{}, err
	}
	return b, nil
}

func (r *pgRepo) FindBookByOpenLibraryID(ctx context.Context, olid string) (catalog.Book, error) {
	return r.findBook(ctx, "b.open_library_id = $1", olid)
}

func (r *pgRepo) FindBookByISBN(ctx context.Context, isbn string) (catalog.Book, error) {
	return r.findBook(ctx, "b.isbn = $1", isbn)
}

func (r *pgRepo) FindBookByTitle(ctx context.Context, title, subtitle string) (catalog.Book, error) {
	return r.findBook(ctx, "b.title = $1 AND b.subtitle = $2", title, subtitle)
}

func publisherID(b *catalog.Book) *string {
	if b.Publisher == nil || b.Publisher.ID == "" {
		return nil
	}
	return &b.Publisher.ID
}

func (r *pgRepo) CreateBook(ctx context.Context, b *catalog.Book) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO books (id, title, subtitle, isbn, open_library_id, goodreads_id, google_books_id,
			library_thing_id, format, publish_date, summary, image_url, is_collected, publisher_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`
	err := r.q.QueryRow(ctx, query, b.ID, b.Title, b.Subtitle, b.ISBN, b.OpenLibraryID,
		b.GoodreadsID, b.GoogleBooksID, b.LibraryThingID, string(b.Format), b.PublishDate,
		b.Summary, b.ImageURL, b.IsCollected, publisherID(b),
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *pgRepo) UpdateBook(ctx context.Context, b *catalog.Book) error {
	const query = `
		UPDATE books SET
			title = $2, subtitle = $3, isbn = NULLIF($4, ''), open_library_id = NULLIF($5, ''),
			goodreads_id = $6, google_books_id = $7, library_thing_id = $8, format = $9,
			publish_date = $10, summary = $11, image_url = $12, is_collected = $13,
			publisher_id = $14, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
	err := r.q.QueryRow(ctx, query, b.ID, b.Title, b.Subtitle, b.ISBN, b.OpenLibraryID,
		b.GoodreadsID, b.GoogleBooksID, b.LibraryThingID, string(b.Format), b.PublishDate,
		b.Summary, b.ImageURL, b.IsCollected, publisherID(b),
	).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

func (r *pgRepo) FindCreatorByName(ctx context.Context, name string) (catalog.Creator, error) {
	const query = `SELECT id, name, image_url FROM creators WHERE name_key = $1`
	var c catalog.Creator
	err := r.q.QueryRow(ctx, query, catalog.NormalizeKey(name)).Scan(&c.ID, &c.Name, &c.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Creator{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Creator{}, fmt.Errorf("find creator: %w", err)
	}
	return c, nil
}

func (r *pgRepo) CreateCreator(ctx context.Context, c *catalog.Creator) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Name = catalog.NormalizeName(c.Name)
	const query = `INSERT INTO creators (id, name, name_key, image_url) VALUES ($1, $2, $3, $4)`
	if _, err := r.q.Exec(ctx, query, c.ID, c.Name, catalog.NormalizeKey(c.Name), c.ImageURL); err != nil {
		return fmt.Errorf("insert creator: %w", err)
	}
	return nil
}

func (r *pgRepo) UpdateCreator(ctx context.Context, c *catalog.Creator) error {
	const query = `UPDATE creators SET image_url = $2, updated_at = now() WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, c.ID, c.ImageURL)
	if err != nil {
		return fmt.Errorf("update creator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// The lookup tables for publishers, roles and series share one shape.
func (r *pgRepo) findNamed(ctx context.Context, table, name string) (id, label string, err error) {
	query := fmt.Sprintf(`SELECT id, name FROM %s WHERE name_key = $1`, table)
	err = r.q.QueryRow(ctx, query, catalog.NormalizeKey(name)).Scan(&id, &label)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", catalog.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("find %s: %w", table, err)
	}
	return id, label, nil
}

func (r *pgRepo) createNamed(ctx context.Context, table, id, name string) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, name, name_key) VALUES ($1, $2, $3)`, table)
	if _, err := r.q.Exec(ctx, query, id, name, catalog.NormalizeKey(name)); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (r *pgRepo) FindPublisherByName(ctx context.Context, name string) (catalog.Publisher, error) {
	id, label, err := r.findNamed(ctx, "publishers", name)
	return catalog.Publisher{ID: id, Name: label}, err
}

func (r *pgRepo) CreatePublisher(ctx context.Context, p *catalog.Publisher) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Name = catalog.NormalizeName(p.Name)
	return r.createNamed(ctx, "publishers", p.ID, p.Name)
}

func (r *pgRepo) FindRoleByTitle(ctx context.Context, title string) (catalog.Role, error) {
	id, label, err := r.findNamed(ctx, "roles", title)
	return catalog.Role{ID: id, Title: label}, err
}

func (r *pgRepo) CreateRole(ctx context.Context, role *catalog.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.Title = catalog.NormalizeName(role.Title)
	return r.createNamed(ctx, "roles", role.ID, role.Title)
}

func (r *pgRepo) FindSeriesByTitle(ctx context.Context, title string) (catalog.Series, error) {
	id, label, err := r.findNamed(ctx, "series", title)
	return catalog.Series{ID: id, Title: label}, err
}

func (r *pgRepo) CreateSeries(ctx context.Context, s *catalog.Series) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Title = catalog.NormalizeName(s.Title)
	return r.createNamed(ctx, "series", s.ID, s.Title)
}

func (r *pgRepo) AddSeriesMembership(ctx context.Context, bookID, seriesID string) error {
	const query = `
		INSERT INTO book_series (book_id, series_id) VALUES ($1, $2)
		ON CONFLICT (book_id, series_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, query, bookID, seriesID); err != nil {
		return fmt.Errorf("insert series membership: %w", err)
	}
	return nil
}

func (r *pgRepo) listSeries(ctx context.Context, bookID string) ([]catalog.Series, error) {
	const query = `
		SELECT s.id, s.name FROM book_series bs
		JOIN series s ON s.id = bs.series_id
		WHERE bs.book_id = $1
		ORDER BY s.name`
	rows, err := r.q.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	series := []catalog.Series{}
	for rows.Next() {
		var s catalog.Series
		if err := rows.Scan(&s.ID, &s.Title); err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return series, rows.Err()
}

func (r *pgRepo) ListCredits(ctx context.Context, bookID string) ([]catalog.Credit, error) {
	const query = `
		SELECT c.id, c.name, c.image_url, r.id, r.name
		FROM credits cr
		JOIN creators c ON c.id = cr.creator_id
		JOIN roles r ON r.id = cr.role_id
		WHERE cr.book_id = $1
		ORDER BY cr.seq`
	rows, err := r.q.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	credits := []catalog.Credit{}
	for rows.Next() {
		cr := catalog.Credit{BookID: bookID}
		if err := rows.Scan(&cr.Creator.ID, &cr.Creator.Name, &cr.Creator.ImageURL, &cr.Role.ID, &cr.Role.Title); err != nil {
			return nil, err
		}
		credits = append(credits, cr)
	}
	return credits, rows.Err()
}

func (r *pgRepo) CreateCredit(ctx context.Context, c catalog.Credit) error {
	const query = `
		INSERT INTO credits (book_id, creator_id, role_id) VALUES ($1, $2, $3)
		ON CONFLICT (book_id, creator_id, role_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, query, c.BookID, c.Creator.ID, c.Role.ID); err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}
	return nil
}

func (r *pgRepo) DeleteCredits(ctx context.Context, bookID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM credits WHERE book_id = $1`, bookID); err != nil {
		return fmt.Errorf("delete credits: %w", err)
	}
	return nil
}

var _ catalog.Repository = (*pgRepo)(nil)
