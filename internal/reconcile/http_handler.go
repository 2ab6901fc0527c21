package reconcile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bookcatalog/internal/catalog"
	apperrors "bookcatalog/internal/errors"
	"bookcatalog/internal/httpx"
)

type HTTPHandler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHTTPHandler(svc *Service, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{svc: svc, logger: logger}
}

// Import handles POST /v1/books/import
// @Summary Import a book from Open Library
// @Description Catalogue a book by ISBN or Open Library edition id
// @Tags books
// @Accept json
// @Produce json
// @Param body body ImportRequest true "exactly one of isbn or open_library_id"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /v1/books/import [post]
func (h *HTTPHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}

	book, err := h.svc.Import(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, book)
}

// Refresh handles POST /v1/books/{id}/refresh
// @Summary Refresh a catalogued book
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/books/{id}/refresh [post]
func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	book, err := h.svc.Refresh(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, book, nil)
}

// Search handles GET /v1/openlibrary/search
// @Summary Search Open Library works by title
// @Tags openlibrary
// @Produce json
// @Param title query string true "Title"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/openlibrary/search [get]
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	works, err := h.svc.Search(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, works, map[string]any{"total": len(works)})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *apperrors.ValidationError
		conflict   *apperrors.ConflictError
		service    *apperrors.ServiceError
	)
	switch {
	case errors.As(err, &validation):
		var details []httpx.ErrorDetail
		if validation.Field != "" {
			details = []httpx.ErrorDetail{{Field: validation.Field, Message: validation.Message}}
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", validation.Error(), details)
	case errors.As(err, &conflict):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", conflict.Error(), []httpx.ErrorDetail{
			{Field: "existing_id", Message: conflict.ExistingID},
		})
	case apperrors.IsStorageConflictError(err):
		httpx.JSONError(w, r, http.StatusConflict, "STORAGE_CONFLICT", "concurrent modification, retry the request", nil)
	case errors.Is(err, catalog.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "book not found", nil)
	case errors.As(err, &service):
		h.logger.Warn("Provider request failed", "request_id", httpx.RequestIDFrom(r), "url", service.URL, "status", service.StatusCode, "error", err)
		if service.Timeout() {
			httpx.JSONError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Open Library did not respond in time", nil)
			return
		}
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "Open Library request failed", nil)
	default:
		h.logger.Error("Request failed", "request_id", httpx.RequestIDFrom(r), "error", err)
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
