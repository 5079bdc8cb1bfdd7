package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/aitrends-backend/internal/models"
)

type templateRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Badge         string `json:"badge"`
	IsNew         bool   `json:"is_new"`
	IsPopular     bool   `json:"is_popular"`
	DefaultPrompt string `json:"default_prompt"`
}

type templateResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Badge           string    `json:"badge,omitempty"`
	IsNew           bool      `json:"is_new"`
	IsPopular       bool      `json:"is_popular"`
	DefaultPrompt   string    `json:"default_prompt"`
	PreviewImageURL string    `json:"preview_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toTemplateResponse(t *models.Template) templateResponse {
	return templateResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Badge:           t.Badge,
		IsNew:           t.IsNew,
		IsPopular:       t.IsPopular,
		DefaultPrompt:   t.DefaultPrompt,
		PreviewImageURL: t.PreviewImageURL,
		CreatedAt:       t.CreatedAt,
	}
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, toTemplateResponse(&templates[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	tpl := &models.Template{
		Title:         req.Title,
		Description:   req.Description,
		Badge:         req.Badge,
		IsNew:         req.IsNew,
		IsPopular:     req.IsPopular,
		DefaultPrompt: req.DefaultPrompt,
	}
	if err := s.templates.Create(r.Context(), tpl); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toTemplateResponse(tpl))
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	tpl := &models.Template{
		ID:            chi.URLParam(r, "id"),
		Title:         req.Title,
		Description:   req.Description,
		Badge:         req.Badge,
		IsNew:         req.IsNew,
		IsPopular:     req.IsPopular,
		DefaultPrompt: req.DefaultPrompt,
	}
	if err := s.templates.Update(r.Context(), tpl); err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadPreview stores a template cover image in object storage and
// saves the public URL on the template.
func (s *Server) handleUploadPreview(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.badRequest(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.internalError(w, err)
		return
	}
	url, err := s.uploader.Upload(r.Context(), "previews", data, header.Header.Get("Content-Type"))
	if err != nil {
		s.internalError(w, err)
		return
	}

	tpl.PreviewImageURL = url
	if err := s.templates.Update(r.Context(), tpl); err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
}
