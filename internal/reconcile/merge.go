package reconcile

import (
	"context"
	"strings"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/identity"
	"bookcatalog/internal/platform/openlibrary"
)

// merge copies provider fields onto book. Title and subtitle are identity
// keys and are left alone.
func (s *Service) merge(ctx context.Context, res *identity.Resolver, book *catalog.Book, b bundle) error {
	ed := b.edition

	format, ok := catalog.ParseFormat(ed.PhysicalFormat)
	if !ok {
		s.logger.Warn("Unrecognised physical format, defaulting to paperback",
			"format", ed.PhysicalFormat,
			"edition", ed.ID(),
		)
	}
	book.Format = format

	if v := first(ed.Identifiers.Goodreads); v != "" {
		book.GoodreadsID = v
	}
	if v := first(ed.Identifiers.Google); v != "" {
		book.GoogleBooksID = v
	}
	if v := first(ed.Identifiers.LibraryThing); v != "" {
		book.LibraryThingID = v
	}

	if book.ISBN == "" {
		book.ISBN = b.keys().ISBN
	}
	book.OpenLibraryID = ed.ID()
	book.ImageURL = ed.CoverURL()

	if name := first(ed.Publishers); name != "" {
		p, err := res.Publisher(ctx, name)
		if err != nil {
			return err
		}
		book.Publisher = &p
	}

	switch {
	case strings.TrimSpace(ed.Description.String()) != "":
		book.Summary = ed.Description.String()
	case strings.TrimSpace(b.work.Description.String()) != "":
		book.Summary = b.work.Description.String()
	}

	if raw := strings.TrimSpace(ed.PublishDate); raw != "" {
		published, err := openlibrary.ParsePublishDate(raw)
		if err != nil {
			s.logger.Warn("Ignoring unparseable publish date", "edition", ed.ID(), "error", err)
		} else {
			book.PublishDate = &published
		}
	}
	return nil
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
