package reconcile

import (
	"bytes"
	"context"
	stdErrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bookcatalog/internal/catalog"
	apperrors "bookcatalog/internal/errors"
	"bookcatalog/internal/platform/openlibrary"
	"bookcatalog/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchEdition(ctx context.Context, editionID string) (openlibrary.Edition, error) {
	args := m.Called(ctx, editionID)
	return args.Get(0).(openlibrary.Edition), args.Error(1)
}

func (m *mockSource) FetchEditionByISBN(ctx context.Context, isbn string) (openlibrary.Edition, error) {
	args := m.Called(ctx, isbn)
	return args.Get(0).(openlibrary.Edition), args.Error(1)
}

func (m *mockSource) FetchWork(ctx context.Context, workID string) (openlibrary.Work, error) {
	args := m.Called(ctx, workID)
	return args.Get(0).(openlibrary.Work), args.Error(1)
}

func (m *mockSource) FetchAuthor(ctx context.Context, authorID string) (openlibrary.Author, error) {
	args := m.Called(ctx, authorID)
	return args.Get(0).(openlibrary.Author), args.Error(1)
}

func (m *mockSource) SearchByTitle(ctx context.Context, title string) ([]openlibrary.Work, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]openlibrary.Work), args.Error(1)
}

const (
	drStoneISBN    = "9781974702619"
	drStoneEdition = "OL26399409M"
	drStoneWork    = "OL20036940W"
	inagakiID      = "OL7407357A"
)

func drStone() openlibrary.Edition {
	return openlibrary.Edition{
		Key:            "/books/" + drStoneEdition,
		Title:          "Dr. STONE, Vol. 1",
		ISBN13:         []string{drStoneISBN},
		PublishDate:    "September 4, 2018",
		Publishers:     []string{"VIZ Media LLC"},
		Works:          []openlibrary.Ref{{Key: "/works/" + drStoneWork}},
		PhysicalFormat: "Paperback",
		Series:         []string{"Dr. STONE"},
		Identifiers:    openlibrary.Identifiers{Goodreads: []string{"39704958"}},
	}
}

func drStoneWorkFixture() openlibrary.Work {
	return openlibrary.Work{
		Key:         "/works/" + drStoneWork,
		Title:       "Dr. Stone, Vol. 1",
		Description: "Senku wakes up in a world turned to stone.",
		Authors:     []openlibrary.WorkAuthor{{Author: openlibrary.Ref{Key: "/authors/" + inagakiID}}},
	}
}

func inagaki() openlibrary.Author {
	return openlibrary.Author{Key: "/authors/" + inagakiID, Name: "Riichiro Inagaki", Photos: []int{8383040}}
}

// provide wires the Dr. STONE fixtures for both lookup paths.
func provide(src *mockSource, edition openlibrary.Edition) {
	src.On("FetchEditionByISBN", mock.Anything, drStoneISBN).Return(edition, nil).Maybe()
	src.On("FetchEdition", mock.Anything, drStoneEdition).Return(edition, nil).Maybe()
	src.On("FetchWork", mock.Anything, drStoneWork).Return(drStoneWorkFixture(), nil).Maybe()
	src.On("FetchAuthor", mock.Anything, inagakiID).Return(inagaki(), nil).Maybe()
}

func newTestService(t *testing.T) (*Service, *mockSource, *store.Memory) {
	t.Helper()
	src := new(mockSource)
	mem := store.NewMemory()
	return NewService(src, mem, slog.New(slog.NewTextHandler(io.Discard, nil))), src, mem
}

// failingCredits rejects every credit write inside the transaction.
type failingCredits struct {
	*store.Memory
	err error
}

func (f failingCredits) WithinTx(ctx context.Context, fn catalog.TxFunc) error {
	return f.Memory.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		return fn(ctx, creditRejectingRepo{Repository: repo, err: f.err})
	})
}

type creditRejectingRepo struct {
	catalog.Repository
	err error
}

func (r creditRejectingRepo) CreateCredit(context.Context, catalog.Credit) error {
	return r.err
}

func creditPairs(b catalog.Book) []string {
	pairs := make([]string, 0, len(b.Credits))
	for _, c := range b.Credits {
		pairs = append(pairs, c.Creator.Name+", "+c.Role.Title)
	}
	return pairs
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh import by isbn", func(t *testing.T) {
		svc, src, mem := newTestService(t)
		provide(src, drStone())

		book, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN, MarkCollected: true})
		require.NoError(t, err)

		assert.NotEmpty(t, book.ID)
		assert.Equal(t, "Dr. STONE, Vol. 1", book.Title)
		assert.Equal(t, drStoneISBN, book.ISBN)
		assert.Equal(t, drStoneEdition, book.OpenLibraryID)
		assert.Equal(t, "39704958", book.GoodreadsID)
		assert.Equal(t, catalog.FormatPaperback, book.Format)
		assert.Equal(t, "Senku wakes up in a world turned to stone.", book.Summary)
		assert.Equal(t, openlibrary.CoverURL(drStoneEdition), book.ImageURL)
		assert.True(t, book.IsCollected)
		require.NotNil(t, book.PublishDate)
		assert.True(t, book.PublishDate.Equal(time.Date(2018, 9, 4, 0, 0, 0, 0, time.UTC)))
		require.NotNil(t, book.Publisher)
		assert.Equal(t, "VIZ Media LLC", book.Publisher.Name)
		require.Len(t, book.Series, 1)
		assert.Equal(t, "Dr. STONE", book.Series[0].Title)

		assert.Equal(t, []string{"Riichiro Inagaki, Author"}, creditPairs(book))
		assert.Equal(t, "https://covers.openlibrary.org/a/id/8383040-L.jpg", book.Credits[0].Creator.ImageURL)
		assert.Equal(t, 1, mem.CountBooks())
		src.AssertNotCalled(t, "FetchEdition", mock.Anything, mock.Anything)
	})

	t.Run("reimport conflicts", func(t *testing.T) {
		svc, src, mem := newTestService(t)
		provide(src, drStone())

		first, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		require.NoError(t, err)

		_, err = svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		var conflict *apperrors.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, first.ID, conflict.ExistingID)

		_, err = svc.Import(ctx, ImportRequest{EditionID: drStoneEdition})
		assert.True(t, apperrors.IsConflictError(err))
		assert.Equal(t, 1, mem.CountBooks())
	})

	t.Run("requires exactly one identifier", func(t *testing.T) {
		svc, src, _ := newTestService(t)

		for _, req := range []ImportRequest{
			{},
			{ISBN: "  "},
			{ISBN: drStoneISBN, EditionID: drStoneEdition},
		} {
			_, err := svc.Import(ctx, req)
			assert.True(t, apperrors.IsValidationError(err), "request %+v", req)
		}
		src.AssertNotCalled(t, "FetchEditionByISBN", mock.Anything, mock.Anything)
	})

	t.Run("edition without works", func(t *testing.T) {
		svc, src, mem := newTestService(t)
		edition := drStone()
		edition.Works = nil
		provide(src, edition)

		_, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		assert.True(t, apperrors.IsServiceError(err))
		assert.Equal(t, 0, mem.CountBooks())
	})

	t.Run("provider errors propagate unchanged", func(t *testing.T) {
		svc, src, mem := newTestService(t)
		upstream := apperrors.NewServiceStatusError("https://openlibrary.org/isbn/"+drStoneISBN+".json", 404, `{"error":"notfound"}`)
		src.On("FetchEditionByISBN", mock.Anything, drStoneISBN).Return(openlibrary.Edition{}, upstream)

		_, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		assert.Same(t, upstream, err)
		assert.Equal(t, 0, mem.CountBooks())
	})

	t.Run("contributors and skipped entries", func(t *testing.T) {
		svc, src, _ := newTestService(t)
		edition := drStone()
		edition.Contributors = []openlibrary.Contributor{
			{Name: "Boichi", Role: "Artist"},
			{Name: "", Role: "Translator"},
			{Name: "Caleb Cook", Role: ""},
		}
		provide(src, edition)

		book, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Riichiro Inagaki, Author", "Boichi, Artist"}, creditPairs(book))
	})

	t.Run("unknown format defaults to paperback with a warning", func(t *testing.T) {
		var logs bytes.Buffer
		src := new(mockSource)
		svc := NewService(src, store.NewMemory(), slog.New(slog.NewTextHandler(&logs, nil)))
		edition := drStone()
		edition.PhysicalFormat = "Scroll"
		edition.PublishDate = "sometime soon"
		provide(src, edition)

		book, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		require.NoError(t, err)
		assert.Equal(t, catalog.FormatPaperback, book.Format)
		assert.Nil(t, book.PublishDate)
		assert.Contains(t, logs.String(), "Unrecognised physical format")
		assert.Contains(t, logs.String(), "Ignoring unparseable publish date")
	})

	t.Run("failed credit write rolls back every insert", func(t *testing.T) {
		src := new(mockSource)
		mem := store.NewMemory()
		writeErr := stdErrors.New("credits unavailable")
		svc := NewService(src, failingCredits{Memory: mem, err: writeErr}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		provide(src, drStone())

		_, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		require.ErrorIs(t, err, writeErr)

		assert.Equal(t, 0, mem.CountBooks())
		require.NoError(t, mem.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
			_, err := repo.FindPublisherByName(ctx, "VIZ Media LLC")
			assert.ErrorIs(t, err, catalog.ErrNotFound)
			_, err = repo.FindCreatorByName(ctx, "Riichiro Inagaki")
			assert.ErrorIs(t, err, catalog.ErrNotFound)
			_, err = repo.FindSeriesByTitle(ctx, "Dr. STONE")
			assert.ErrorIs(t, err, catalog.ErrNotFound)
			return nil
		}))
	})

	t.Run("concurrent imports create one book", func(t *testing.T) {
		svc, src, mem := newTestService(t)
		provide(src, drStone())

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
			}()
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, apperrors.IsConflictError(err) || apperrors.IsStorageConflictError(err), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, mem.CountBooks())
	})
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		svc, src, _ := newTestService(t)
		provide(src, drStone())

		imported, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		require.NoError(t, err)

		once, err := svc.Refresh(ctx, imported.ID)
		require.NoError(t, err)
		twice, err := svc.Refresh(ctx, imported.ID)
		require.NoError(t, err)

		once.UpdatedAt, twice.UpdatedAt = time.Time{}, time.Time{}
		creditsOnce, creditsTwice := creditPairs(once), creditPairs(twice)
		once.Credits, twice.Credits = nil, nil
		assert.Equal(t, once, twice)
		assert.ElementsMatch(t, creditsOnce, creditsTwice)
		assert.Equal(t, []string{"Riichiro Inagaki, Author"}, creditsTwice)
	})

	t.Run("drops stale credits", func(t *testing.T) {
		svc, src, _ := newTestService(t)

		withArtist := drStone()
		withArtist.Contributors = []openlibrary.Contributor{{Name: "Boichi", Role: "Artist"}}
		src.On("FetchEditionByISBN", mock.Anything, drStoneISBN).Return(withArtist, nil).Once()
		src.On("FetchEdition", mock.Anything, drStoneEdition).Return(drStone(), nil)
		src.On("FetchWork", mock.Anything, drStoneWork).Return(drStoneWorkFixture(), nil)
		src.On("FetchAuthor", mock.Anything, inagakiID).Return(inagaki(), nil)

		imported, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"Riichiro Inagaki, Author", "Boichi, Artist"}, creditPairs(imported))

		refreshed, err := svc.Refresh(ctx, imported.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Riichiro Inagaki, Author"}, creditPairs(refreshed))
	})

	t.Run("keeps a manually set isbn", func(t *testing.T) {
		svc, src, mem := newTestService(t)
		provide(src, drStone())

		imported, err := svc.Import(ctx, ImportRequest{ISBN: drStoneISBN})
		require.NoError(t, err)

		require.NoError(t, mem.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
			b, err := repo.GetBook(ctx, imported.ID)
			if err != nil {
				return err
			}
			b.ISBN = "1974702614"
			return repo.UpdateBook(ctx, &b)
		}))

		refreshed, err := svc.Refresh(ctx, imported.ID)
		require.NoError(t, err)
		assert.Equal(t, "1974702614", refreshed.ISBN)
		src.AssertCalled(t, "FetchEdition", mock.Anything, drStoneEdition)
	})

	t.Run("identifiers owned by another book", func(t *testing.T) {
		svc, src, mem := newTestService(t)
		provide(src, drStone())

		_, err := svc.Import(ctx, ImportRequest{EditionID: drStoneEdition})
		require.NoError(t, err)

		// A second record whose ISBN resolves upstream to the first book's edition.
		var other catalog.Book
		require.NoError(t, mem.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
			other = catalog.Book{Title: "Dr. STONE (duplicate)", ISBN: "1974702614", Format: catalog.FormatPaperback}
			return repo.CreateBook(ctx, &other)
		}))
		src.On("FetchEditionByISBN", mock.Anything, "1974702614").Return(drStone(), nil)

		_, err = svc.Refresh(ctx, other.ID)
		assert.True(t, apperrors.IsConflictError(err))

		unchanged, err := mem.GetBook(ctx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, unchanged.OpenLibraryID)
	})

	t.Run("book without identifiers", func(t *testing.T) {
		svc, _, mem := newTestService(t)

		var bare catalog.Book
		require.NoError(t, mem.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
			bare = catalog.Book{Title: "Handwritten notes", Format: catalog.FormatPaperback}
			return repo.CreateBook(ctx, &bare)
		}))

		_, err := svc.Refresh(ctx, bare.ID)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("unknown book", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Refresh(ctx, "7f1c7a44-7c57-4c6c-9d55-1c2b8a1f3c11")
		assert.True(t, stdErrors.Is(err, catalog.ErrNotFound))
	})
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	svc, src, _ := newTestService(t)
	src.On("SearchByTitle", mock.Anything, "dr stone").Return([]openlibrary.Work{drStoneWorkFixture()}, nil)

	works, err := svc.Search(ctx, "  dr stone ")
	require.NoError(t, err)
	assert.Len(t, works, 1)

	_, err = svc.Search(ctx, " ")
	assert.True(t, apperrors.IsValidationError(err))
	src.AssertNumberOfCalls(t, "SearchByTitle", 1)
}
