package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/aitrends-backend/internal/models"
	"github.com/digkill/aitrends-backend/internal/pricing"
	"github.com/digkill/aitrends-backend/internal/service"
)

const maxUploadBytes = 15 << 20

type generateRequest struct {
	Model        string   `json:"model"`
	Prompt       string   `json:"prompt"`
	AspectRatio  string   `json:"aspect_ratio"`
	Resolution   string   `json:"resolution"`
	OutputFormat string   `json:"output_format"`
	Quality      string   `json:"quality"`
	Duration     int      `json:"duration"`
	Sound        bool     `json:"sound"`
	TemplateID   string   `json:"template_id"`
	ImageURLs    []string `json:"image_urls"`
}

type generationResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Prompt     string    `json:"prompt"`
	Status     string    `json:"status"`
	ResultURL  string    `json:"result_url,omitempty"`
	TemplateID *string   `json:"template_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toGenerationResponse(g *models.Generation) generationResponse {
	return generationResponse{
		ID:         g.ID,
		Model:      g.Model,
		Prompt:     g.Prompt,
		Status:     string(g.Status),
		ResultURL:  g.ResultURL,
		TemplateID: g.TemplateID,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, pricing.Models())
}

// handleGenerate accepts both JSON bodies (image_urls already hosted
// somewhere) and multipart forms with raw reference images, which are pushed
// to object storage first.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	var err error

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = s.parseMultipartGenerate(r)
		if err != nil {
			s.badRequest(w, err)
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if req.Model == "" {
		s.writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	gen, err := s.generations.Create(r.Context(), userFrom(r.Context()), service.CreateGenerationRequest{
		Model:        req.Model,
		Prompt:       req.Prompt,
		AspectRatio:  req.AspectRatio,
		Resolution:   req.Resolution,
		OutputFormat: req.OutputFormat,
		Quality:      req.Quality,
		Duration:     req.Duration,
		Sound:        req.Sound,
		TemplateID:   req.TemplateID,
		ImageURLs:    req.ImageURLs,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toGenerationResponse(gen))
}

func (s *Server) parseMultipartGenerate(r *http.Request) (generateRequest, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return generateRequest{}, err
	}

	duration, _ := strconv.Atoi(r.FormValue("duration"))
	sound, _ := strconv.ParseBool(r.FormValue("sound"))
	req := generateRequest{
		Model:        r.FormValue("model"),
		Prompt:       r.FormValue("prompt"),
		AspectRatio:  r.FormValue("aspect_ratio"),
		Resolution:   r.FormValue("resolution"),
		OutputFormat: r.FormValue("output_format"),
		Quality:      r.FormValue("quality"),
		Duration:     duration,
		Sound:        sound,
		TemplateID:   r.FormValue("template_id"),
		ImageURLs:    r.Form["image_urls"],
	}

	if r.MultipartForm == nil {
		return req, nil
	}
	for _, header := range r.MultipartForm.File["images"] {
		file, err := header.Open()
		if err != nil {
			return generateRequest{}, err
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		file.Close()
		if err != nil {
			return generateRequest{}, err
		}
		url, err := s.uploader.Upload(r.Context(), "references", data, header.Header.Get("Content-Type"))
		if err != nil {
			return generateRequest{}, err
		}
		req.ImageURLs = append(req.ImageURLs, url)
	}
	return req, nil
}

// handleUploadFile hosts a raw file and returns its public URL. host=provider
// pushes to the provider's file host, which some endpoint families require
// for their reference inputs; the default is our own object storage.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
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

	var url string
	if r.FormValue("host") == "provider" {
		url, err = s.files.UploadFileStream(r.Context(), header.Filename, data)
	} else {
		url, err = s.uploader.Upload(r.Context(), "references", data, header.Header.Get("Content-Type"))
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	gen, err := s.generations.Advance(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toGenerationResponse(gen))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.generations.History(r.Context(), userFrom(r.Context()), limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]generationResponse, 0, len(items))
	for i := range items {
		out = append(out, toGenerationResponse(&items[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	gen, err := s.generations.Get(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toGenerationResponse(gen))
}
