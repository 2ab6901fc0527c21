package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Repository is the storage port used by reconciliation. Every Find method
// returns ErrNotFound when nothing matches. Name lookups compare
// NormalizeKey values.
type Repository interface {
	// GetBook loads the full aggregate: publisher, credits and series.
	GetBook(ctx context.Context, id string) (Book, error)
	FindBookByOpenLibraryID(ctx context.Context, olid string) (Book, error)
	FindBookByISBN(ctx context.Context, isbn string) (Book, error)
	FindBookByTitle(ctx context.Context, title, subtitle string) (Book, error)
	CreateBook(ctx context.Context, b *Book) error
	// UpdateBook persists scalar fields and the publisher reference.
	UpdateBook(ctx context.Context, b *Book) error

	FindCreatorByName(ctx context.Context, name string) (Creator, error)
	CreateCreator(ctx context.Context, c *Creator) error
	UpdateCreator(ctx context.Context, c *Creator) error

	FindPublisherByName(ctx context.Context, name string) (Publisher, error)
	CreatePublisher(ctx context.Context, p *Publisher) error

	FindRoleByTitle(ctx context.Context, title string) (Role, error)
	CreateRole(ctx context.Context, r *Role) error

	FindSeriesByTitle(ctx context.Context, title string) (Series, error)
	CreateSeries(ctx context.Context, s *Series) error
	AddSeriesMembership(ctx context.Context, bookID, seriesID string) error

	ListCredits(ctx context.Context, bookID string) ([]Credit, error)
	CreateCredit(ctx context.Context, c Credit) error
	DeleteCredits(ctx context.Context, bookID string) error
}

// TxFunc runs against a Repository bound to one transaction.
type TxFunc func(ctx context.Context, repo Repository) error

// Store opens all-or-nothing units of work over the catalogue.
type Store interface {
	WithinTx(ctx context.Context, fn TxFunc) error
	GetBook(ctx context.Context, id string) (Book, error)
}
