package book

import (
	"context"

	"bookcatalog/internal/catalog"
)

// Service provides read access to catalogued books.
type Service struct {
	repo Repository
}

// NewService creates a new book service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a book with its publisher, credits and series.
func (s *Service) Get(ctx context.Context, id string) (catalog.Book, error) {
	return s.repo.GetBook(ctx, id)
}
