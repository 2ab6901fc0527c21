package store

import (
	"context"
	"errors"
	"testing"

	"bookcatalog/internal/catalog"
	apperrors "bookcatalog/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBook(t *testing.T, m *Memory, b catalog.Book) catalog.Book {
	t.Helper()
	err := m.WithinTx(context.Background(), func(ctx context.Context, repo catalog.Repository) error {
		return repo.CreateBook(ctx, &b)
	})
	require.NoError(t, err)
	return b
}

func TestMemory_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	book := seedBook(t, m, catalog.Book{Title: "Dr. STONE, Vol. 1", ISBN: "9781974702619", Format: catalog.FormatPaperback})
	require.NotEmpty(t, book.ID)
	assert.Equal(t, 1, m.CountBooks())

	boom := errors.New("boom")
	err := m.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		if err := repo.CreateBook(ctx, &catalog.Book{Title: "Discarded"}); err != nil {
			return err
		}
		if err := repo.CreateCreator(ctx, &catalog.Creator{Name: "Nobody"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.CountBooks())

	err = m.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		_, err := repo.FindCreatorByName(ctx, "Nobody")
		return err
	})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestMemory_FirstCommitterWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
			if _, err := repo.FindBookByISBN(ctx, "9781974702619"); !errors.Is(err, catalog.ErrNotFound) {
				return err
			}
			close(inside)
			<-release
			return repo.CreateBook(ctx, &catalog.Book{Title: "Dr. STONE, Vol. 1", ISBN: "9781974702619"})
		})
	}()

	<-inside
	seedBook(t, m, catalog.Book{Title: "Dr. STONE, Vol. 1", ISBN: "9781974702619"})
	close(release)

	err := <-done
	assert.True(t, apperrors.IsStorageConflictError(err), "got %v", err)
	assert.Equal(t, 1, m.CountBooks())
}

func TestMemory_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedBook(t, m, catalog.Book{Title: "A", OpenLibraryID: "OL1M", ISBN: "111"})

	tests := []struct {
		name string
		book catalog.Book
	}{
		{"open library id", catalog.Book{Title: "B", OpenLibraryID: "OL1M"}},
		{"isbn", catalog.Book{Title: "C", ISBN: "111"}},
		{"title pair", catalog.Book{Title: "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.book
			err := m.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
				return repo.CreateBook(ctx, &b)
			})
			assert.True(t, apperrors.IsStorageConflictError(err))
		})
	}

	err := m.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		if err := repo.CreateCreator(ctx, &catalog.Creator{Name: "Boichi"}); err != nil {
			return err
		}
		return repo.CreateCreator(ctx, &catalog.Creator{Name: "  BOICHI "})
	})
	assert.True(t, apperrors.IsStorageConflictError(err))
}

func TestMemory_CreditsAndSeries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	book := seedBook(t, m, catalog.Book{Title: "Dr. STONE, Vol. 1"})

	err := m.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		creator := catalog.Creator{Name: "Riichiro Inagaki"}
		role := catalog.Role{Title: "Author"}
		series := catalog.Series{Title: "Dr. STONE"}
		require.NoError(t, repo.CreateCreator(ctx, &creator))
		require.NoError(t, repo.CreateRole(ctx, &role))
		require.NoError(t, repo.CreateSeries(ctx, &series))

		credit := catalog.Credit{BookID: book.ID, Creator: creator, Role: role}
		require.NoError(t, repo.CreateCredit(ctx, credit))
		require.NoError(t, repo.CreateCredit(ctx, credit))
		require.NoError(t, repo.AddSeriesMembership(ctx, book.ID, series.ID))
		return repo.AddSeriesMembership(ctx, book.ID, series.ID)
	})
	require.NoError(t, err)

	got, err := m.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, got.Credits, 1)
	assert.Equal(t, "Riichiro Inagaki", got.Credits[0].Creator.Name)
	assert.Equal(t, "Author", got.Credits[0].Role.Title)
	require.Len(t, got.Series, 1)
	assert.Equal(t, "Dr. STONE", got.Series[0].Title)

	err = m.WithinTx(ctx, func(ctx context.Context, repo catalog.Repository) error {
		return repo.DeleteCredits(ctx, book.ID)
	})
	require.NoError(t, err)
	got, err = m.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Credits)
}

func TestMemory_GetBookNotFound(t *testing.T) {
	_, err := NewMemory().GetBook(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
