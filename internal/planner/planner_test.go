package planner

import (
	"context"
	"errors"
	"testing"

	"fame/internal/llm"
	"fame/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCaller struct {
	resp    llm.Response
	prompts []string
	creds   []llm.Credentials
}

func (f *fakeCaller) Call(ctx context.Context, prompt string, creds llm.Credentials) llm.Response {
	f.prompts = append(f.prompts, prompt)
	f.creds = append(f.creds, creds)
	return f.resp
}

func TestGeneratePlan(t *testing.T) {
	caller := &fakeCaller{resp: llm.Response{
		Text:     structuredResponse,
		Provider: llm.ProviderClaude,
		Model:    "claude-3-sonnet-20240229",
		Usage:    shared.TokenUsage{PromptTokens: 120, CompletionTokens: 800, TotalTokens: 920},
		Attempts: []llm.Attempt{{Provider: llm.ProviderClaude, Model: "claude-3-sonnet-20240229"}},
	}}
	p := NewPlanner(NewPromptComposer(""), caller, nil, zap.NewNop())

	result, meta, err := p.GeneratePlan(context.Background(), GenerationRequest{
		DietText:   "Pranzo: 80g pasta",
		WeekStart:  testMonday,
		Provider:   llm.ProviderClaude,
		Credential: "sk-ant",
	})
	require.NoError(t, err)

	require.Len(t, caller.prompts, 1)
	assert.Contains(t, caller.prompts[0], "Pranzo: 80g pasta")
	assert.Equal(t, llm.Credentials{Provider: llm.ProviderClaude, Key: "sk-ant"}, caller.creds[0])

	assert.True(t, result.Structured)
	assert.False(t, result.Demo)
	assert.Equal(t, llm.ProviderClaude, result.Provider)
	assert.Equal(t, FormatPlan(result.Document.WeeklyPlan), result.PlanText)
	assert.NotEqual(t, EmptyRawJSON, result.RawJSON)

	assert.Equal(t, "claude", meta.Provider)
	assert.Equal(t, 920, meta.Usage.TotalTokens)
	assert.Equal(t, 1, meta.Attempts)
}

func TestGeneratePlanPlainText(t *testing.T) {
	caller := &fakeCaller{resp: llm.Response{Text: "Lunedì: zuppa\nShopping List: porri", Provider: llm.ProviderGroq}}
	p := NewPlanner(NewPromptComposer(""), caller, nil, zap.NewNop())

	result, _, err := p.GeneratePlan(context.Background(), GenerationRequest{WeekStart: testMonday})
	require.NoError(t, err)
	assert.False(t, result.Structured)
	assert.Equal(t, "Lunedì: zuppa", result.PlanText)
	assert.Equal(t, "porri", result.ShoppingListText)
	assert.Equal(t, EmptyRawJSON, result.RawJSON)
}

func TestGeneratePlanTemplateFallback(t *testing.T) {
	caller := &fakeCaller{resp: llm.Response{Text: llm.DemoResponse(), Demo: true}}
	p := NewPlanner(NewPromptComposer(writeTemplate(t, "{{ .Budget }}")), caller, nil, zap.NewNop())

	result, meta, err := p.GeneratePlan(context.Background(), GenerationRequest{WeekStart: testMonday})
	require.NoError(t, err)
	require.Len(t, caller.prompts, 1)
	assert.Contains(t, caller.prompts[0], `"weekly_plan"`)
	assert.True(t, result.Demo)
	assert.True(t, meta.Demo)
	assert.True(t, result.Structured)
}

func TestGeneratePlanRejectsNonMonday(t *testing.T) {
	caller := &fakeCaller{}
	p := NewPlanner(NewPromptComposer(""), caller, nil, zap.NewNop())

	_, _, err := p.GeneratePlan(context.Background(), GenerationRequest{WeekStart: testMonday.AddDate(0, 0, 2)})
	require.True(t, errors.Is(err, ErrNotMonday))
	assert.Empty(t, caller.prompts)
}

func TestPlannerDeleteMeal(t *testing.T) {
	ctx := context.Background()
	plans := NewPlanRepository(newTestDB(t))
	p := NewPlanner(NewPromptComposer(""), &fakeCaller{}, plans, zap.NewNop())

	n := Normalize(structuredResponse)
	_, err := plans.Replace(ctx, "u1", testMonday, GenerationResult{
		PlanText: n.PlanText, ShoppingListText: n.ShoppingText, RawJSON: n.RawJSON,
	})
	require.NoError(t, err)

	updated, err := p.DeleteMeal(ctx, "u1", testMonday, Wednesday, Lunch)
	require.NoError(t, err)
	assert.NotContains(t, updated.Content, "Risotto")

	stored, err := plans.GetByWeek(ctx, "u1", testMonday)
	require.NoError(t, err)
	assert.Equal(t, updated.Content, stored.Content)
	assert.Equal(t, updated.JSONContent, stored.JSONContent)
	assert.Contains(t, stored.ShoppingList, StaleShoppingListNote)
	assert.NotContains(t, stored.JSONContent, "wednesday")

	_, err = p.DeleteMeal(ctx, "u1", testMonday, Wednesday, Lunch)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.DeleteMeal(ctx, "u1", testMonday.AddDate(0, 0, 7), Monday, Lunch)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = plans.Replace(ctx, "u2", testMonday, GenerationResult{PlanText: "testo", ShoppingListText: "lista", RawJSON: EmptyRawJSON})
	require.NoError(t, err)
	_, err = p.DeleteMeal(ctx, "u2", testMonday, Monday, Lunch)
	assert.ErrorIs(t, err, ErrInvalidState)
}
