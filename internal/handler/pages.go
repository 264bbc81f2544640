package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/hotelier-system/internal/middleware"
	"github.com/mmeshcher/hotelier-system/internal/model"
)

type pageRequest struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
}

type pageResponse struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
	UpdatedAt string `json:"updated_at"`
}

func toPageResponse(p *model.Page) pageResponse {
	return pageResponse{
		ID:        p.ID,
		Slug:      p.Slug,
		Title:     p.Title,
		Body:      p.Body,
		Published: p.Published,
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

// CreatePage создаёт контентную страницу.
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Slug == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "slug and title are required")
		return
	}

	p := &model.Page{
		Slug:      req.Slug,
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
	}

	id, err := h.service.CreatePage(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	p.ID = id

	writeData(w, http.StatusCreated, toPageResponse(p))
}

// ListPages возвращает страницы. Неаутентифицированным клиентам доступны
// только опубликованные.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	publishedOnly := true
	if r.URL.Query().Get("all") != "" {
		if principal, ok := middleware.GetPrincipalFromContext(r.Context()); ok && principal.Role.IsStaff() {
			publishedOnly = false
		}
	}

	pages, err := h.service.ListPages(r.Context(), publishedOnly)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]pageResponse, 0, len(pages))
	for i := range pages {
		resp = append(resp, toPageResponse(&pages[i]))
	}
	writeData(w, http.StatusOK, resp)
}

// GetPage возвращает страницу по slug.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page slug")
		return
	}

	p, err := h.service.GetPageBySlug(r.Context(), slug)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toPageResponse(p))
}

// UpdatePage обновляет страницу.
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page id")
		return
	}

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Slug == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "slug and title are required")
		return
	}

	p := &model.Page{
		ID:        id,
		Slug:      req.Slug,
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
	}

	if err := h.service.UpdatePage(r.Context(), p); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toPageResponse(p))
}

// DeletePage удаляет страницу.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page id")
		return
	}

	if err := h.service.DeletePage(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
