package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single transport attempt.
const DefaultTimeout = 30 * time.Second

// Client delivers prompts to the configured providers. It walks a
// prioritized list of (provider, model) targets and degrades to the demo
// response when none of them answers; Call never fails.
type Client struct {
	providers map[ProviderID]Provider
	timeout   time.Duration
	logger    *zap.Logger
	observer  AttemptObserver
}

// NewClient creates a Client over the given providers.
func NewClient(providers []Provider, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := make(map[ProviderID]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Client{providers: m, timeout: timeout, logger: logger}
}

// DefaultProviders returns every supported provider wired to the public endpoints.
func DefaultProviders(httpClient *http.Client) []Provider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return []Provider{
		NewGeminiProvider(),
		NewOpenAIProvider(httpClient),
		NewClaudeProvider(),
		NewGroqProvider(httpClient),
	}
}

// SetObserver registers an observer notified after every attempt.
func (c *Client) SetObserver(o AttemptObserver) {
	c.observer = o
}

// Supports reports whether id names a registered provider.
func (c *Client) Supports(id ProviderID) bool {
	_, ok := c.providers[id]
	return ok
}

// Targets expands credentials into the ordered retry list: every model of
// the primary provider, then every model of the fallback provider.
func (c *Client) Targets(creds Credentials) []Target {
	var targets []Target
	add := func(id ProviderID, key string) {
		p, ok := c.providers[id]
		if !ok || strings.TrimSpace(key) == "" {
			return
		}
		for _, m := range p.Models() {
			targets = append(targets, Target{Provider: id, Model: m, key: key})
		}
	}

	add(creds.Provider, creds.Key)
	if creds.Fallback != "" && creds.Fallback != creds.Provider {
		add(creds.Fallback, creds.FallbackKey)
	}
	return targets
}

// Call sends prompt to the providers selected by creds and returns the raw
// response text.
func (c *Client) Call(ctx context.Context, prompt string, creds Credentials) Response {
	start := time.Now()
	log := c.logger.With(zap.String("provider", string(creds.Provider)), zap.Int("prompt_chars", len(prompt)))

	if strings.TrimSpace(creds.Key) == "" {
		log.Info("no credential supplied, using demo response")
		return c.demo(nil, start)
	}
	if !c.Supports(creds.Provider) {
		log.Warn("unsupported provider")
	}

	targets := c.Targets(creds)
	var attempts []Attempt
	for _, t := range targets {
		if ctx.Err() != nil {
			log.Warn("context done, abandoning remaining targets", zap.Error(ctx.Err()))
			break
		}

		resp, attempt := c.try(ctx, t, prompt)
		attempts = append(attempts, attempt)
		if c.observer != nil {
			c.observer.ObserveAttempt(attempt)
		}

		if attempt.Failure == FailureNone {
			log.Info("provider answered",
				zap.String("target_provider", string(t.Provider)),
				zap.String("model", t.Model),
				zap.Int("response_chars", len(resp.Content)),
				zap.Duration("latency", attempt.Latency))
			return Response{
				Text:     resp.Content,
				Usage:    resp.Usage,
				Provider: t.Provider,
				Model:    t.Model,
				Attempts: attempts,
				Latency:  time.Since(start),
			}
		}

		log.Warn("provider attempt failed, trying next target",
			zap.String("target_provider", string(t.Provider)),
			zap.String("model", t.Model),
			zap.String("failure", string(attempt.Failure)),
			zap.Error(attempt.Err))
	}

	log.Error("all provider targets failed, using demo response", zap.Int("attempts", len(attempts)))
	return c.demo(attempts, start)
}

func (c *Client) try(ctx context.Context, t Target, prompt string) (ContentResponse, Attempt) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	began := time.Now()
	resp, err := c.providers[t.Provider].Generate(attemptCtx, t.Model, t.key, prompt)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = ErrEmptyResponse
	}
	return resp, Attempt{
		Provider: t.Provider,
		Model:    t.Model,
		Failure:  Classify(err),
		Err:      err,
		Latency:  time.Since(began),
	}
}

func (c *Client) demo(attempts []Attempt, start time.Time) Response {
	return Response{
		Text:     DemoResponse(),
		Demo:     true,
		Attempts: attempts,
		Latency:  time.Since(start),
	}
}
