package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bookcatalog/internal/catalog"
	apperrors "bookcatalog/internal/errors"
	"bookcatalog/internal/identity"
	"bookcatalog/internal/platform/openlibrary"
)

var errNoWorks = errors.New("edition references no works")

type Service struct {
	source Source
	store  catalog.Store
	logger *slog.Logger
}

func NewService(source Source, store catalog.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, store: store, logger: logger}
}

// Import catalogues a book that is not yet in the store. It fails with a
// ConflictError when any of the edition's identifiers already resolve.
func (s *Service) Import(ctx context.Context, req ImportRequest) (catalog.Book, error) {
	req = req.normalized()
	if (req.ISBN == "") == (req.EditionID == "") {
		return catalog.Book{}, apperrors.NewValidationError("", "exactly one of isbn or open_library_id is required")
	}

	b, err := s.fetch(ctx, req.EditionID, req.ISBN)
	if err != nil {
		return catalog.Book{}, err
	}

	var out catalog.Book
	err = s.store.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		res := identity.New(repo)
		keys := b.keys()

		existing, found, err := res.FindBook(ctx, keys)
		if err != nil {
			return err
		}
		if found {
			return apperrors.NewConflictError("book", existing.ID, "a book with these identifiers is already catalogued")
		}

		book, err := res.CreateBook(ctx, keys)
		if err != nil {
			return err
		}
		book.IsCollected = req.MarkCollected

		if err := s.apply(ctx, repo, res, &book, b); err != nil {
			return err
		}
		out, err = repo.GetBook(ctx, book.ID)
		return err
	})
	if err != nil {
		return catalog.Book{}, err
	}

	s.logger.Info("Imported book", "book_id", out.ID, "title", out.Title, "open_library_id", out.OpenLibraryID)
	return out, nil
}

// Refresh re-applies provider data to an existing book and replaces its
// credits.
func (s *Service) Refresh(ctx context.Context, bookID string) (catalog.Book, error) {
	existing, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return catalog.Book{}, err
	}
	if existing.OpenLibraryID == "" && existing.ISBN == "" {
		return catalog.Book{}, apperrors.NewValidationError("book", "has neither an ISBN nor an Open Library id")
	}

	b, err := s.fetch(ctx, existing.OpenLibraryID, existing.ISBN)
	if err != nil {
		return catalog.Book{}, err
	}

	var out catalog.Book
	err = s.store.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		res := identity.New(repo)

		book, err := repo.GetBook(ctx, bookID)
		if err != nil {
			return err
		}

		match, found, err := res.FindBook(ctx, b.keys())
		if err != nil {
			return err
		}
		if found && match.ID != book.ID {
			return apperrors.NewConflictError("book", match.ID, "refreshed identifiers belong to another book")
		}

		if err := repo.DeleteCredits(ctx, book.ID); err != nil {
			return err
		}
		if err := s.apply(ctx, repo, res, &book, b); err != nil {
			return err
		}
		out, err = repo.GetBook(ctx, book.ID)
		return err
	})
	if err != nil {
		return catalog.Book{}, err
	}

	s.logger.Info("Refreshed book", "book_id", out.ID, "credits", len(out.Credits))
	return out, nil
}

// Search lists works whose title matches.
func (s *Service) Search(ctx context.Context, title string) ([]openlibrary.Work, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewValidationError("title", "must not be blank")
	}
	return s.source.SearchByTitle(ctx, title)
}

// fetch loads edition, first work and work authors, in that order. Nothing
// is fetched once the transaction is open.
func (s *Service) fetch(ctx context.Context, editionID, isbn string) (bundle, error) {
	var (
		b   = bundle{isbn: isbn}
		err error
	)
	if editionID != "" {
		b.edition, err = s.source.FetchEdition(ctx, editionID)
	} else {
		b.edition, err = s.source.FetchEditionByISBN(ctx, isbn)
	}
	if err != nil {
		return bundle{}, err
	}

	workID, ok := b.edition.WorkID()
	if !ok {
		return bundle{}, apperrors.NewServiceError(b.edition.Key, errNoWorks)
	}
	if b.work, err = s.source.FetchWork(ctx, workID); err != nil {
		return bundle{}, err
	}

	for _, authorID := range b.work.AuthorIDs() {
		author, err := s.source.FetchAuthor(ctx, authorID)
		if err != nil {
			return bundle{}, err
		}
		b.authors = append(b.authors, author)
	}
	return b, nil
}

// apply merges provider fields onto book, persists it and rebuilds its
// credits and series memberships.
func (s *Service) apply(ctx context.Context, repo catalog.Repository, res *identity.Resolver, book *catalog.Book, b bundle) error {
	if err := s.merge(ctx, res, book, b); err != nil {
		return err
	}
	if err := repo.UpdateBook(ctx, book); err != nil {
		return err
	}
	if err := s.credit(ctx, repo, res, book.ID, b); err != nil {
		return err
	}
	return s.linkSeries(ctx, repo, res, book.ID, b.edition.Series)
}

func (s *Service) credit(ctx context.Context, repo catalog.Repository, res *identity.Resolver, bookID string, b bundle) error {
	authorRole, err := res.Role(ctx, catalog.AuthorRoleTitle)
	if err != nil {
		return err
	}

	for _, a := range b.authors {
		if strings.TrimSpace(a.Name) == "" {
			s.logger.Warn("Skipping author without a name", "author", a.Key, "book_id", bookID)
			continue
		}
		creator, err := res.Creator(ctx, a.Name)
		if err != nil {
			return err
		}
		if creator.ImageURL == "" {
			if url, ok := a.PhotoURL(); ok {
				creator.ImageURL = url
				if err := repo.UpdateCreator(ctx, &creator); err != nil {
					return err
				}
			}
		}
		if err := repo.CreateCredit(ctx, catalog.Credit{BookID: bookID, Creator: creator, Role: authorRole}); err != nil {
			return err
		}
	}

	for _, c := range b.edition.Contributors {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Role) == "" {
			s.logger.Warn("Skipping incomplete contributor", "name", c.Name, "role", c.Role, "book_id", bookID)
			continue
		}
		creator, err := res.Creator(ctx, c.Name)
		if err != nil {
			return err
		}
		role, err := res.Role(ctx, c.Role)
		if err != nil {
			return err
		}
		if err := repo.CreateCredit(ctx, catalog.Credit{BookID: bookID, Creator: creator, Role: role}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) linkSeries(ctx context.Context, repo catalog.Repository, res *identity.Resolver, bookID string, titles []string) error {
	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		series, err := res.Series(ctx, title)
		if err != nil {
			return err
		}
		if err := repo.AddSeriesMembership(ctx, bookID, series.ID); err != nil {
			return err
		}
	}
	return nil
}
