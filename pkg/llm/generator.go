package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arenakit/arena/pkg/errors"
	"github.com/arenakit/arena/pkg/resilience"
)

// TextGenerator is the capability the tournament core consumes: one prompt
// in, one text out, bounded by a per-call timeout. Any error returned is a
// typed adapter failure (Timeout, Unreachable or Malformed) and callers
// degrade it to an empty answer or an abstention.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, model string, timeout time.Duration) (string, error)
}

// Stats tracks adapter usage over a run.
type Stats struct {
	TotalRequests  int `json:"total_requests"`
	FailedRequests int `json:"failed_requests"`
}

// Generator adapts a Provider to the TextGenerator capability, applying a
// per-call timeout and an optional bounded retry.
type Generator struct {
	provider    Provider
	retry       resilience.RetryConfig
	temperature float64

	mu    sync.Mutex
	stats Stats
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRetry enables retrying failed calls up to maxAttempts total attempts.
func WithRetry(maxAttempts int) GeneratorOption {
	return func(g *Generator) {
		g.retry = resilience.DefaultRetryConfig().WithMaxAttempts(maxAttempts)
	}
}

// WithTemperature sets the sampling temperature passed to the provider.
func WithTemperature(temperature float64) GeneratorOption {
	return func(g *Generator) {
		g.temperature = temperature
	}
}

// NewGenerator creates a Generator on top of the given provider.
func NewGenerator(provider Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider:    provider,
		retry:       resilience.DefaultRetryConfig().WithMaxAttempts(1),
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends prompt to the backend and returns the trimmed response
// text. Each attempt is bounded by timeout; retries (if configured) only
// re-issue recoverable failures.
func (g *Generator) Generate(ctx context.Context, prompt, model string, timeout time.Duration) (string, error) {
	g.mu.Lock()
	g.stats.TotalRequests++
	g.mu.Unlock()

	var content string
	err := g.retry.Do(ctx, func() error {
		value, err := resilience.WithTimeout(ctx, timeout, func(ctx context.Context) (string, error) {
			resp, err := g.provider.Chat(ctx, ChatRequest{
				Model:       model,
				Messages:    []Message{{Role: RoleUser, Content: prompt}},
				Temperature: g.temperature,
			})
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		})
		if err != nil {
			return classify(err)
		}
		content = value
		return nil
	})
	if err != nil {
		g.mu.Lock()
		g.stats.FailedRequests++
		g.mu.Unlock()
		return "", err
	}

	return strings.TrimSpace(content), nil
}

// Stats returns a copy of the adapter usage counters.
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// classify ensures every provider error carries an adapter failure code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAdapterFailure(err) {
		return err
	}
	if ae, ok := err.(*errors.Error); ok {
		return ae
	}
	return errors.New(errors.CodeUnreachable, "backend call failed", err).WithRecoverable(true)
}
