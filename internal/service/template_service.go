package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/digkill/aitrends-backend/internal/models"
)

type templateAdminStore interface {
	List(ctx context.Context) ([]models.Template, error)
	GetByID(ctx context.Context, id string) (*models.Template, error)
	Create(ctx context.Context, tpl *models.Template) error
	Update(ctx context.Context, tpl *models.Template) error
	Delete(ctx context.Context, id string) error
}

type TemplateService struct {
	templates templateAdminStore
}

func NewTemplateService(templates templateAdminStore) *TemplateService {
	return &TemplateService{templates: templates}
}

func (s *TemplateService) List(ctx context.Context) ([]models.Template, error) {
	return s.templates.List(ctx)
}

func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return tpl, nil
}

func (s *TemplateService) Create(ctx context.Context, tpl *models.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	return s.templates.Create(ctx, tpl)
}

func (s *TemplateService) Update(ctx context.Context, tpl *models.Template) error {
	existing, err := s.templates.GetByID(ctx, tpl.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("template %s: %w", tpl.ID, ErrNotFound)
	}
	return s.templates.Update(ctx, tpl)
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id)
}
