package llm

import (
	"context"
	"strings"
	"time"

	"fame/internal/shared"
)

// ProviderID names a text generation provider.
type ProviderID string

const (
	ProviderGemini ProviderID = "gemini"
	ProviderOpenAI ProviderID = "openai"
	ProviderClaude ProviderID = "claude"
	ProviderGroq   ProviderID = "groq"
)

// ParseProviderID returns the ProviderID named by s, case-insensitively.
func ParseProviderID(s string) (ProviderID, bool) {
	switch id := ProviderID(strings.ToLower(strings.TrimSpace(s))); id {
	case ProviderGemini, ProviderOpenAI, ProviderClaude, ProviderGroq:
		return id, true
	}
	return "", false
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// Provider generates text with one named provider. A provider may expose
// several model variants; Models returns them in preference order.
type Provider interface {
	Name() ProviderID
	Models() []string
	Generate(ctx context.Context, model, credential, prompt string) (ContentResponse, error)
}

// Credentials selects the providers for one call. Key is the caller's own
// credential; Fallback is tried only after every variant of Provider failed.
type Credentials struct {
	Provider    ProviderID
	Key         string
	Fallback    ProviderID
	FallbackKey string
}

// Target is one (provider, model) pair of the retry order.
type Target struct {
	Provider ProviderID
	Model    string
	key      string
}

// Attempt describes one transport attempt against a Target.
type Attempt struct {
	Provider ProviderID
	Model    string
	Failure  FailureKind
	Err      error
	Latency  time.Duration
}

// Response is the outcome of Client.Call. Demo is set when Text is the
// canned demo response rather than provider output.
type Response struct {
	Text     string
	Usage    shared.TokenUsage
	Provider ProviderID
	Model    string
	Demo     bool
	Attempts []Attempt
	Latency  time.Duration
}

// AttemptObserver is notified after every transport attempt.
type AttemptObserver interface {
	ObserveAttempt(a Attempt)
}
