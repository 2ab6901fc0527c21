package identity

import (
	"context"
	"fmt"
	"strings"

	"bookcatalog/internal/catalog"
	apperrors "bookcatalog/internal/errors"
)

// BookKeys are the identifiers a book can be matched on.
type BookKeys struct {
	OpenLibraryID string
	ISBN          string
	Title         string
	Subtitle      string
}

// BookProbes orders book lookups from strongest to weakest signal:
// external id, then ISBN, then the (title, subtitle) pair.
func BookProbes(k BookKeys) []Probe {
	return []Probe{
		ExternalID(k.OpenLibraryID),
		ISBN(k.ISBN),
		TitlePair(k.Title, k.Subtitle),
	}
}

// Resolver finds or creates catalogue entities inside one transaction.
// It never changes an entity it found; merging is up to the caller.
type Resolver struct {
	repo catalog.Repository
}

func New(repo catalog.Repository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) findBook(ctx context.Context, p Probe) (catalog.Book, error) {
	switch p.Kind {
	case ByExternalID:
		return r.repo.FindBookByOpenLibraryID(ctx, p.Value)
	case ByISBN:
		return r.repo.FindBookByISBN(ctx, p.Value)
	case ByTitlePair:
		return r.repo.FindBookByTitle(ctx, p.Value, p.Secondary)
	default:
		return catalog.Book{}, fmt.Errorf("book lookup does not support %s probes", p.Kind)
	}
}

func (r *Resolver) FindBook(ctx context.Context, keys BookKeys) (catalog.Book, bool, error) {
	return Resolve(ctx, r.findBook, BookProbes(keys))
}

// CreateBook inserts a new book carrying whichever keys were supplied.
func (r *Resolver) CreateBook(ctx context.Context, keys BookKeys) (catalog.Book, error) {
	title := strings.TrimSpace(keys.Title)
	if title == "" {
		return catalog.Book{}, apperrors.NewValidationError("title", "must not be blank")
	}
	b := catalog.Book{
		Title:         title,
		Subtitle:      strings.TrimSpace(keys.Subtitle),
		ISBN:          strings.TrimSpace(keys.ISBN),
		OpenLibraryID: strings.TrimSpace(keys.OpenLibraryID),
		Format:        catalog.FormatPaperback,
	}
	if err := r.repo.CreateBook(ctx, &b); err != nil {
		return catalog.Book{}, err
	}
	return b, nil
}

// Book resolves keys, creating the book when nothing matches.
func (r *Resolver) Book(ctx context.Context, keys BookKeys) (b catalog.Book, created bool, err error) {
	b, found, err := r.FindBook(ctx, keys)
	if err != nil || found {
		return b, false, err
	}
	b, err = r.CreateBook(ctx, keys)
	return b, err == nil, err
}

func findOrCreate[T any](
	ctx context.Context,
	field, name string,
	find func(context.Context, string) (T, error),
	create func(context.Context, string) (T, error),
) (T, error) {
	var zero T
	if strings.TrimSpace(name) == "" {
		return zero, apperrors.NewValidationError(field, "must not be blank")
	}
	byName := func(ctx context.Context, p Probe) (T, error) {
		return find(ctx, p.Value)
	}
	v, found, err := Resolve(ctx, byName, []Probe{Name(name)})
	if err != nil || found {
		return v, err
	}
	return create(ctx, name)
}

func (r *Resolver) Creator(ctx context.Context, name string) (catalog.Creator, error) {
	return findOrCreate(ctx, "creator.name", name, r.repo.FindCreatorByName,
		func(ctx context.Context, name string) (catalog.Creator, error) {
			c := catalog.Creator{Name: name}
			err := r.repo.CreateCreator(ctx, &c)
			return c, err
		})
}

func (r *Resolver) Publisher(ctx context.Context, name string) (catalog.Publisher, error) {
	return findOrCreate(ctx, "publisher.name", name, r.repo.FindPublisherByName,
		func(ctx context.Context, name string) (catalog.Publisher, error) {
			p := catalog.Publisher{Name: name}
			err := r.repo.CreatePublisher(ctx, &p)
			return p, err
		})
}

func (r *Resolver) Role(ctx context.Context, title string) (catalog.Role, error) {
	return findOrCreate(ctx, "role.title", title, r.repo.FindRoleByTitle,
		func(ctx context.Context, title string) (catalog.Role, error) {
			role := catalog.Role{Title: title}
			err := r.repo.CreateRole(ctx, &role)
			return role, err
		})
}

func (r *Resolver) Series(ctx context.Context, title string) (catalog.Series, error) {
	return findOrCreate(ctx, "series.title", title, r.repo.FindSeriesByTitle,
		func(ctx context.Context, title string) (catalog.Series, error) {
			s := catalog.Series{Title: title}
			err := r.repo.CreateSeries(ctx, &s)
			return s, err
		})
}
