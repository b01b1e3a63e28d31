package metrics

import (
	"strconv"

	"fame/internal/llm"
	"fame/internal/shared"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProviderCollector exports provider attempts and generations to Prometheus.
type ProviderCollector struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	generations     *prometheus.CounterVec
	tokens          *prometheus.CounterVec
}

// NewProviderCollector registers the collector's metrics with reg.
func NewProviderCollector(reg prometheus.Registerer) *ProviderCollector {
	factory := promauto.With(reg)
	return &ProviderCollector{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fame_provider_attempts_total",
				Help: "Provider transport attempts by outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fame_provider_attempt_duration_seconds",
				Help:    "Duration of provider transport attempts in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"provider"},
		),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fame_plan_generations_total",
				Help: "Plan generations by serving provider",
			},
			[]string{"provider", "demo"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fame_provider_tokens_total",
				Help: "Tokens consumed by provider and kind",
			},
			[]string{"provider", "kind"},
		),
	}
}

// ObserveAttempt implements llm.AttemptObserver.
func (c *ProviderCollector) ObserveAttempt(a llm.Attempt) {
	outcome := "success"
	if a.Failure != llm.FailureNone {
		outcome = string(a.Failure)
	}
	c.attempts.WithLabelValues(string(a.Provider), a.Model, outcome).Inc()
	c.attemptDuration.WithLabelValues(string(a.Provider)).Observe(a.Latency.Seconds())
}

// ObserveGeneration counts one completed generation.
func (c *ProviderCollector) ObserveGeneration(meta shared.CallMeta) {
	provider := meta.Provider
	if provider == "" {
		provider = "none"
	}
	c.generations.WithLabelValues(provider, strconv.FormatBool(meta.Demo)).Inc()
	c.tokens.WithLabelValues(provider, "prompt").Add(float64(meta.Usage.PromptTokens))
	c.tokens.WithLabelValues(provider, "completion").Add(float64(meta.Usage.CompletionTokens))
}
