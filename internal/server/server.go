package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/aitrends-backend/internal/config"
	"github.com/digkill/aitrends-backend/internal/kie"
	"github.com/digkill/aitrends-backend/internal/service"
	"github.com/digkill/aitrends-backend/internal/storage"
)

// fileHost pushes a raw file to the provider's upload host and returns the
// hosted URL. Satisfied by kie.Client.
type fileHost interface {
	UploadFileStream(ctx context.Context, filename string, data []byte) (string, error)
}

type Server struct {
	cfg         config.Config
	log         *slog.Logger
	users       *service.UserService
	generations *service.GenerationService
	payments    *service.PaymentService
	templates   *service.TemplateService
	promos      *service.PromoService
	uploader    *storage.Uploader
	files       fileHost
	router      *chi.Mux
}

func NewServer(cfg config.Config, log *slog.Logger, users *service.UserService, generations *service.GenerationService, payments *service.PaymentService, templates *service.TemplateService, promos *service.PromoService, uploader *storage.Uploader, files fileHost) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:         cfg,
		log:         log,
		users:       users,
		generations: generations,
		payments:    payments,
		templates:   templates,
		promos:      promos,
		uploader:    uploader,
		files:       files,
		router:      r,
	}

	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Post("/auth/telegram", s.handleAuthTelegram)
	r.Post("/payments/webhook", s.handlePaymentWebhook)

	r.Group(func(protected chi.Router) {
		protected.Use(s.authMiddleware)

		protected.Get("/auth/me", s.handleMe)

		protected.Get("/generate/models", s.handleListModels)
		protected.Post("/generate/image", s.handleGenerate)
		protected.Post("/uploads", s.handleUploadFile)
		protected.Get("/generate/poll/{id}", s.handlePoll)
		protected.Get("/history", s.handleHistory)
		protected.Get("/history/{id}", s.handleHistoryItem)

		protected.Get("/templates", s.handleListTemplates)
		protected.Get("/templates/{id}", s.handleGetTemplate)

		protected.Get("/payments/plans", s.handleListPlans)
		protected.Post("/payments/create", s.handleCreatePayment)
		protected.Get("/payments/status/{id}", s.handlePaymentStatus)
		protected.Get("/payments/history", s.handlePaymentHistory)

		protected.Post("/promo/redeem", s.handleRedeemPromo)

		protected.Group(func(admin chi.Router) {
			admin.Use(s.adminMiddleware)
			admin.Post("/templates", s.handleCreateTemplate)
			admin.Put("/templates/{id}", s.handleUpdateTemplate)
			admin.Delete("/templates/{id}", s.handleDeleteTemplate)
			admin.Post("/templates/{id}/preview", s.handleUploadPreview)
		})
	})

	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("handler error", "err", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

// serviceError maps the service and provider error taxonomy onto HTTP.
// Provider rejections that read like input validation come back as the
// caller's fault; everything else from the provider is a bad gateway.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	var insufficient *service.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		s.writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":     "insufficient balance",
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
		return
	}

	var rejected *kie.RejectedError
	if errors.As(err, &rejected) {
		if kie.IsValidationMessage(rejected.Message) {
			s.writeError(w, http.StatusBadRequest, rejected.Message)
			return
		}
		s.writeError(w, http.StatusBadGateway, "generation provider rejected the task")
		return
	}

	var adapter *kie.AdapterError
	if errors.As(err, &adapter) {
		s.badRequest(w, adapter)
		return
	}

	var unavailable *kie.UnavailableError
	var protocol *kie.ProtocolError
	if errors.As(err, &unavailable) || errors.As(err, &protocol) {
		s.log.Error("provider failure", "err", err)
		s.writeError(w, http.StatusBadGateway, "generation provider unavailable")
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrNoTask):
		s.writeError(w, http.StatusConflict, "generation has no provider task")
	case errors.Is(err, service.ErrPromoExhausted):
		s.writeError(w, http.StatusConflict, "promo code exhausted")
	default:
		s.internalError(w, err)
	}
}
