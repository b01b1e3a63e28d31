package planner

import (
	"context"
	"fmt"
	"time"

	"fame/internal/llm"
	"fame/internal/shared"

	"go.uber.org/zap"
)

// Caller sends a prompt to a text generation provider. *llm.Client is the
// production implementation.
type Caller interface {
	Call(ctx context.Context, prompt string, creds llm.Credentials) llm.Response
}

// Planner runs the generation pipeline: compose, call, normalize, format.
type Planner struct {
	composer *PromptComposer
	caller   Caller
	plans    *PlanRepository
	logger   *zap.Logger
}

// NewPlanner creates a new Planner instance.
func NewPlanner(composer *PromptComposer, caller Caller, plans *PlanRepository, logger *zap.Logger) *Planner {
	return &Planner{
		composer: composer,
		caller:   caller,
		plans:    plans,
		logger:   logger,
	}
}

// GeneratePlan produces a weekly plan for req. The only error is an invalid
// request; provider and parsing failures degrade to demo or plain-text content.
func (p *Planner) GeneratePlan(ctx context.Context, req GenerationRequest) (GenerationResult, shared.CallMeta, error) {
	if err := req.Validate(); err != nil {
		return GenerationResult{}, shared.CallMeta{}, err
	}

	prompt, err := p.composer.Compose(req)
	if err != nil {
		p.logger.Warn("prompt template failed, using embedded default", zap.Error(err))
		if prompt, err = p.composer.ComposeDefault(req); err != nil {
			// The embedded template only reads plain fields.
			p.logger.Error("embedded prompt template failed", zap.Error(err))
		}
	}

	resp := p.caller.Call(ctx, prompt, req.Credentials())
	norm := Normalize(resp.Text)
	if !norm.Structured {
		p.logger.Warn("provider response is not structured JSON, used plain-text fallback",
			zap.String("provider", string(resp.Provider)),
			zap.Int("response_chars", len(resp.Text)))
	}

	meta := shared.CallMeta{
		Provider: string(resp.Provider),
		Model:    resp.Model,
		Usage:    resp.Usage,
		Latency:  resp.Latency,
		Demo:     resp.Demo,
		Attempts: len(resp.Attempts),
	}

	return GenerationResult{
		PlanText:         norm.PlanText,
		ShoppingListText: norm.ShoppingText,
		RawJSON:          norm.RawJSON,
		Document:         norm.Document,
		Structured:       norm.Structured,
		Provider:         resp.Provider,
		Model:            resp.Model,
		Demo:             resp.Demo,
	}, meta, nil
}

// DeleteMeal removes one meal from the stored plan for (userID, weekStart)
// and persists the re-derived plan text, raw JSON and shopping text together.
func (p *Planner) DeleteMeal(ctx context.Context, userID string, weekStart time.Time, day Day, meal MealType) (*StoredPlan, error) {
	stored, err := p.plans.GetByWeek(ctx, userID, weekStart)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: no plan for week %s", ErrNotFound, weekStart.Format(isoDate))
	}

	edit, err := DeleteMeal(stored.JSONContent, day, meal)
	if err != nil {
		return nil, err
	}

	if err := p.plans.UpdateContent(ctx, stored.ID, edit.PlanText, edit.RawJSON, edit.ShoppingText); err != nil {
		return nil, err
	}
	p.logger.Info("meal deleted from plan",
		zap.String("user_id", userID),
		zap.String("week_start", stored.WeekStart),
		zap.String("day", string(day)),
		zap.String("meal", string(meal)))

	stored.Content = edit.PlanText
	stored.JSONContent = edit.RawJSON
	stored.ShoppingList = edit.ShoppingText
	return stored, nil
}
