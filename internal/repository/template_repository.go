package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/aitrends-backend/internal/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `
id, title, description, COALESCE(badge, ''), is_new, is_popular,
COALESCE(default_prompt, ''), COALESCE(preview_image_url, ''), created_at`

func (r *TemplateRepository) List(ctx context.Context) ([]models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *tpl)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = ?`
	return scanTemplate(r.db.QueryRowContext(ctx, query, id))
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *models.Template) error {
	const query = `
INSERT INTO templates (id, title, description, badge, is_new, is_popular, default_prompt, preview_image_url)
VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), NULLIF(?, ''))`
	_, err := r.db.ExecContext(ctx, query,
		tpl.ID, tpl.Title, tpl.Description, tpl.Badge, tpl.IsNew, tpl.IsPopular,
		tpl.DefaultPrompt, tpl.PreviewImageURL)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Update(ctx context.Context, tpl *models.Template) error {
	const query = `
UPDATE templates
SET title = ?, description = ?, badge = NULLIF(?, ''), is_new = ?, is_popular = ?,
    default_prompt = NULLIF(?, ''), preview_image_url = NULLIF(?, '')
WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		tpl.Title, tpl.Description, tpl.Badge, tpl.IsNew, tpl.IsPopular,
		tpl.DefaultPrompt, tpl.PreviewImageURL, tpl.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM templates WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var t models.Template
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Badge, &t.IsNew, &t.IsPopular,
		&t.DefaultPrompt, &t.PreviewImageURL, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return &t, nil
}
