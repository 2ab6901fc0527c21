package reconcile

import (
	"context"
	"strings"

	"bookcatalog/internal/identity"
	"bookcatalog/internal/platform/openlibrary"
)

// Source is the bibliographic provider the engine reconciles against.
type Source interface {
	FetchEdition(ctx context.Context, editionID string) (openlibrary.Edition, error)
	FetchEditionByISBN(ctx context.Context, isbn string) (openlibrary.Edition, error)
	FetchWork(ctx context.Context, workID string) (openlibrary.Work, error)
	FetchAuthor(ctx context.Context, authorID string) (openlibrary.Author, error)
	SearchByTitle(ctx context.Context, title string) ([]openlibrary.Work, error)
}

// ImportRequest must carry exactly one of ISBN or EditionID.
type ImportRequest struct {
	ISBN          string `json:"isbn"`
	EditionID     string `json:"open_library_id"`
	MarkCollected bool   `json:"mark_collected"`
}

func (r ImportRequest) normalized() ImportRequest {
	r.ISBN = strings.TrimSpace(r.ISBN)
	r.EditionID = strings.TrimSpace(r.EditionID)
	return r
}

// bundle is everything fetched for one reconciliation pass.
type bundle struct {
	edition openlibrary.Edition
	work    openlibrary.Work
	authors []openlibrary.Author
	// isbn is the ISBN the caller asked for, used when the edition lists none.
	isbn string
}

func (b bundle) keys() identity.BookKeys {
	isbn := b.edition.ISBN()
	if isbn == "" {
		isbn = b.isbn
	}
	title := b.edition.Title
	if strings.TrimSpace(title) == "" {
		title = b.work.Title
	}
	return identity.BookKeys{
		OpenLibraryID: b.edition.ID(),
		ISBN:          isbn,
		Title:         title,
		Subtitle:      b.edition.Subtitle,
	}
}
