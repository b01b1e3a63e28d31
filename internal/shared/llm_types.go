package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a provider call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// CallMeta holds operational metadata for one plan generation.
type CallMeta struct {
	Provider string
	Model    string
	Usage    TokenUsage
	Latency  time.Duration
	Demo     bool
	Attempts int
}
