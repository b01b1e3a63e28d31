package planner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fame/internal/llm"
)

// ErrNotMonday is returned for a week start that is not a Monday.
var ErrNotMonday = errors.New("week start must be a Monday")

// GenerationRequest bundles everything needed to generate one weekly plan.
type GenerationRequest struct {
	DietText          string
	Disliked          []string
	Region            string
	WeekStart         time.Time
	Trains            bool
	TrainingFrequency int
	TrainingDays      string

	Provider           llm.ProviderID
	Credential         string
	FallbackProvider   llm.ProviderID
	FallbackCredential string
}

// Validate checks the request preconditions.
func (r GenerationRequest) Validate() error {
	if r.WeekStart.IsZero() {
		return fmt.Errorf("week start is required")
	}
	if r.WeekStart.Weekday() != time.Monday {
		return fmt.Errorf("%w: %s is a %s", ErrNotMonday, r.WeekStart.Format(isoDate), r.WeekStart.Weekday())
	}
	return nil
}

// Credentials converts the request's provider selection for llm.Client.
func (r GenerationRequest) Credentials() llm.Credentials {
	provider := r.Provider
	if provider == "" {
		provider = llm.ProviderGemini
	}
	return llm.Credentials{
		Provider:    provider,
		Key:         r.Credential,
		Fallback:    r.FallbackProvider,
		FallbackKey: r.FallbackCredential,
	}
}

// GenerationResult is a generated plan ready for persistence and display.
type GenerationResult struct {
	PlanText         string
	ShoppingListText string
	RawJSON          string
	Document         Document
	Structured       bool
	Provider         llm.ProviderID
	Model            string
	Demo             bool
}

// NextMonday returns the first Monday strictly after t's calendar date,
// at midnight in t's location.
func NextMonday(t time.Time) time.Time {
	daysAhead := (7 - int(t.Weekday()) + int(time.Monday)) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	y, m, d := t.Date()
	return time.Date(y, m, d+daysAhead, 0, 0, 0, 0, t.Location())
}

// ParseWeek parses a YYYY-MM-DD Monday.
func ParseWeek(s string) (time.Time, error) {
	t, err := time.Parse(isoDate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week %q: %w", s, err)
	}
	if t.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotMonday, s)
	}
	return t, nil
}

// ParseDisliked splits a comma separated preference string, dropping blanks.
func ParseDisliked(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
