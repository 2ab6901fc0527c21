package book

import (
	"context"

	"bookcatalog/internal/catalog"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

// Repository is the read side of the catalogue store.
type Repository interface {
	GetBook(ctx context.Context, id string) (catalog.Book, error)
}
