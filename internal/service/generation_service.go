package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/digkill/aitrends-backend/internal/config"
	"github.com/digkill/aitrends-backend/internal/kie"
	"github.com/digkill/aitrends-backend/internal/models"
	"github.com/digkill/aitrends-backend/internal/pricing"
)

type balanceStore interface {
	FindByTGID(ctx context.Context, tgid int64) (*models.User, error)
	DebitBalanceIfEnough(ctx context.Context, tgid int64, amount decimal.Decimal) (bool, error)
	CreditBalance(ctx context.Context, tgid int64, amount decimal.Decimal) error
}

type generationStore interface {
	Create(ctx context.Context, gen *models.Generation) error
	GetForUser(ctx context.Context, id string, tgid int64) (*models.Generation, error)
	ListForUser(ctx context.Context, tgid int64, limit int) ([]models.Generation, error)
	UpdateProgress(ctx context.Context, id string, status models.GenerationStatus, resultURL string) error
}

type templateStore interface {
	GetByID(ctx context.Context, id string) (*models.Template, error)
}

type taskGateway interface {
	CreateTask(ctx context.Context, p kie.Payload) (string, error)
	PollTask(ctx context.Context, taskID string, target kie.DispatchTarget) (map[string]any, error)
}

type automationSender interface {
	Send(ctx context.Context, urls []string, payload any) error
}

type GenerationService struct {
	cfg         config.Config
	log         *slog.Logger
	users       balanceStore
	generations generationStore
	templates   templateStore
	gateway     taskGateway
	automation  automationSender
}

func NewGenerationService(cfg config.Config, log *slog.Logger, users balanceStore, generations generationStore, templates templateStore, gateway taskGateway, automation automationSender) *GenerationService {
	return &GenerationService{
		cfg:         cfg,
		log:         log,
		users:       users,
		generations: generations,
		templates:   templates,
		gateway:     gateway,
		automation:  automation,
	}
}

type CreateGenerationRequest struct {
	Model        string
	Prompt       string
	AspectRatio  string
	Resolution   string
	OutputFormat string
	Quality      string
	Duration     int
	Sound        bool
	TemplateID   string
	ImageURLs    []string
}

// Create runs the submission pipeline: balance precheck, payload adaptation,
// dispatch, persistence, debit. The ordering is deliberate — nothing is
// persisted or debited until the provider (or the automation workflow)
// accepted the task, so a rejected request leaves no trace.
func (s *GenerationService) Create(ctx context.Context, user *models.User, req CreateGenerationRequest) (*models.Generation, error) {
	var templateID *string
	if req.TemplateID != "" {
		tpl, err := s.templates.GetByID(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, fmt.Errorf("template %s: %w", req.TemplateID, ErrNotFound)
		}
		templateID = &tpl.ID
		if req.Prompt == "" && tpl.DefaultPrompt != "" {
			req.Prompt = tpl.DefaultPrompt
		}
	}

	price := pricing.ForGeneration(req.Model, req.Duration, req.Quality)
	threshold := pricing.MinBalance(req.Model)
	if threshold.LessThan(price) {
		threshold = price
	}
	if user.Balance.LessThan(threshold) {
		return nil, &InsufficientBalanceError{Required: threshold, Available: user.Balance}
	}

	payload, err := kie.BuildPayload(kie.Request{
		Model:        req.Model,
		Prompt:       req.Prompt,
		AspectRatio:  req.AspectRatio,
		Resolution:   req.Resolution,
		OutputFormat: req.OutputFormat,
		Quality:      req.Quality,
		Duration:     req.Duration,
		Sound:        req.Sound,
		ImageURLs:    req.ImageURLs,
	})
	if err != nil {
		return nil, err
	}
	if payload.DroppedRefs > 0 {
		s.log.Warn("image references truncated to family cap",
			"model", req.Model, "dropped", payload.DroppedRefs)
	}

	gen := &models.Generation{
		ID:           uuid.NewString(),
		TGID:         user.TGID,
		TemplateID:   templateID,
		Model:        req.Model,
		AspectRatio:  req.AspectRatio,
		Resolution:   req.Resolution,
		OutputFormat: req.OutputFormat,
		Quality:      req.Quality,
		Duration:     req.Duration,
		Sound:        req.Sound,
		Prompt:       req.Prompt,
	}

	if payload.Target == kie.TargetAutomation {
		return s.dispatchToAutomation(ctx, user, gen, payload)
	}

	taskID, err := s.gateway.CreateTask(ctx, payload)
	if err != nil {
		return nil, err
	}

	gen.Status = models.GenerationQueued
	gen.TaskID = taskID
	if err := s.generations.Create(ctx, gen); err != nil {
		s.log.Error("generation accepted by provider but not persisted", "task_id", taskID, "err", err)
		return nil, err
	}

	// Debit strictly after acceptance: compute was spent even if the artifact
	// later fails, so the charge stays.
	ok, err := s.users.DebitBalanceIfEnough(ctx, user.TGID, price)
	if err != nil {
		s.log.Error("debit after acceptance failed", "tgid", user.TGID, "generation_id", gen.ID, "err", err)
	} else if !ok {
		s.log.Warn("balance dropped below price between precheck and debit", "tgid", user.TGID, "generation_id", gen.ID)
	}

	return gen, nil
}

// dispatchToAutomation hands the request to the n8n workflow instead of the
// provider. No debit here: the workflow owns pricing for these models.
func (s *GenerationService) dispatchToAutomation(ctx context.Context, user *models.User, gen *models.Generation, payload kie.Payload) (*models.Generation, error) {
	body := make(map[string]any, len(payload.Body)+2)
	for k, v := range payload.Body {
		body[k] = v
	}
	body["tgid"] = user.TGID
	body["generation_id"] = gen.ID

	if err := s.automation.Send(ctx, s.cfg.N8NGenerationWebhooks, body); err != nil {
		return nil, err
	}

	gen.Status = models.GenerationSentToN8N
	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, err
	}
	return gen, nil
}

// Advance polls the provider for a generation and applies the status
// transition. A populated artifact URL forces done regardless of the
// provider's own status field: providers are seen reporting a stale
// "processing" next to a final result.
func (s *GenerationService) Advance(ctx context.Context, user *models.User, generationID string) (*models.Generation, error) {
	gen, err := s.generations.GetForUser(ctx, generationID, user.TGID)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("generation %s: %w", generationID, ErrNotFound)
	}
	if gen.Status.IsTerminal() {
		return gen, nil
	}
	if gen.TaskID == "" {
		return nil, ErrNoTask
	}

	target := kie.TargetForModel(gen.Model)
	raw, err := s.gateway.PollTask(ctx, gen.TaskID, target)
	if err != nil {
		return nil, err
	}

	status := gen.Status
	resultURL := ""
	if url, found := kie.ExtractFor(target, raw); found {
		status = models.GenerationDone
		resultURL = url
	} else {
		switch state := kie.State(raw); {
		case kie.IsFailedState(state):
			status = models.GenerationFailed
			s.log.Warn("generation failed at provider",
				"generation_id", gen.ID, "task_id", gen.TaskID, "reason", kie.FailMessage(raw))
		case state == "waiting" || state == "queued" || state == "queueing":
			status = models.GenerationQueued
		case state != "":
			status = models.GenerationProcessing
		}
	}

	if status != gen.Status || resultURL != "" {
		if err := s.generations.UpdateProgress(ctx, gen.ID, status, resultURL); err != nil {
			return nil, err
		}
	}
	gen.Status = status
	if resultURL != "" {
		gen.ResultURL = resultURL
	}
	return gen, nil
}

func (s *GenerationService) Get(ctx context.Context, user *models.User, id string) (*models.Generation, error) {
	gen, err := s.generations.GetForUser(ctx, id, user.TGID)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("generation %s: %w", id, ErrNotFound)
	}
	return gen, nil
}

func (s *GenerationService) History(ctx context.Context, user *models.User, limit int) ([]models.Generation, error) {
	return s.generations.ListForUser(ctx, user.TGID, limit)
}
