package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/aitrends-backend/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

const generationColumns = `
id, tgid, template_id, model, COALESCE(aspect_ratio, ''), COALESCE(resolution, ''),
COALESCE(output_format, ''), COALESCE(quality, ''), duration, sound, prompt, status,
COALESCE(kie_task_id, ''), COALESCE(result_url, ''), created_at, updated_at`

func (r *GenerationRepository) Create(ctx context.Context, gen *models.Generation) error {
	const query = `
INSERT INTO generations (id, tgid, template_id, model, aspect_ratio, resolution, output_format, quality, duration, sound, prompt, status, kie_task_id, result_url)
VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`
	sound := 0
	if gen.Sound {
		sound = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		gen.ID, gen.TGID, gen.TemplateID, gen.Model, gen.AspectRatio, gen.Resolution,
		gen.OutputFormat, gen.Quality, gen.Duration, sound, gen.Prompt, gen.Status,
		gen.TaskID, gen.ResultURL)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// GetForUser returns the generation only when owned by the given user.
func (r *GenerationRepository) GetForUser(ctx context.Context, id string, tgid int64) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ? AND tgid = ?`
	row := r.db.QueryRowContext(ctx, query, id, tgid)
	return scanGeneration(row)
}

func (r *GenerationRepository) ListForUser(ctx context.Context, tgid int64, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + generationColumns + ` FROM generations WHERE tgid = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, tgid, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var gens []models.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, *gen)
	}
	return gens, rows.Err()
}

// UpdateProgress writes a status transition, attaching the result URL when the
// task finished.
func (r *GenerationRepository) UpdateProgress(ctx context.Context, id string, status models.GenerationStatus, resultURL string) error {
	const query = `
UPDATE generations SET status = ?, result_url = COALESCE(NULLIF(?, ''), result_url), updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, resultURL, id); err != nil {
		return fmt.Errorf("update generation progress: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*models.Generation, error) {
	var g models.Generation
	var templateID sql.NullString
	var sound int
	err := row.Scan(&g.ID, &g.TGID, &templateID, &g.Model, &g.AspectRatio, &g.Resolution,
		&g.OutputFormat, &g.Quality, &g.Duration, &sound, &g.Prompt, &g.Status,
		&g.TaskID, &g.ResultURL, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan generation: %w", err)
	}
	if templateID.Valid {
		g.TemplateID = &templateID.String
	}
	g.Sound = sound != 0
	return &g, nil
}
