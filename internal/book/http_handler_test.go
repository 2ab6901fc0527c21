package book

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookcatalog/internal/catalog"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func newRouter(h *HTTPHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/books/{id}", h.Get)
	return mux
}

func TestHTTPHandler_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	router := newRouter(NewHTTPHandler(NewService(mockRepo), nil))

	testBook := catalog.Book{
		ID:     "4b1f6f1e-4a8e-4f4e-9c38-2f3f4f0f0a01",
		Title:  "Dr. STONE, Vol. 1",
		ISBN:   "9781974702619",
		Format: catalog.FormatPaperback,
		Credits: []catalog.Credit{{
			Creator: catalog.Creator{ID: "c1", Name: "Riichiro Inagaki"},
			Role:    catalog.Role{ID: "r1", Title: catalog.AuthorRoleTitle},
		}},
	}

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().GetBook(gomock.Any(), testBook.ID).Return(testBook, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/books/"+testBook.ID, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Riichiro Inagaki")
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().GetBook(gomock.Any(), "missing").Return(catalog.Book{}, catalog.ErrNotFound)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/books/missing", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("error", func(t *testing.T) {
		mockRepo.EXPECT().GetBook(gomock.Any(), "slow").Return(catalog.Book{}, context.DeadlineExceeded)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/books/slow", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
