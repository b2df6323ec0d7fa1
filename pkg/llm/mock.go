package llm

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/arenakit/arena/pkg/errors"
)

// MockProvider is a testing implementation of Provider.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// FailingMockProvider always fails.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if f.Err == nil {
		return nil, errors.New(errors.CodeUnreachable, "mock backend down", nil).WithRecoverable(true)
	}
	return nil, f.Err
}

// RoutedMockProvider answers based on a marker found in the prompt text.
// Tournament phases issue calls concurrently, so a pop-in-order script is
// not deterministic; routing on the agent name embedded in each prompt is.
// When several markers match one prompt, the longest wins (ties broken by
// marker text, error routes before response routes), so overlapping
// markers such as "Alpha" and "Alpha Neo" resolve the same way every run.
type RoutedMockProvider struct {
	mu sync.Mutex
	// Routes maps a substring of the prompt (typically the agent name) to
	// the response returned for prompts containing it.
	Routes map[string]string
	// Errs maps a prompt substring to an error returned instead.
	Errs map[string]error
	// Fallback is returned when no route matches.
	Fallback string
	// Calls counts Chat invocations.
	Calls int
}

type routedMatch struct {
	marker   string
	response string
	err      error
	isErr    bool
}

func (r *RoutedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++

	var prompt string
	for _, msg := range req.Messages {
		prompt += msg.Content
	}

	var matches []routedMatch
	for marker, err := range r.Errs {
		if strings.Contains(prompt, marker) {
			matches = append(matches, routedMatch{marker: marker, err: err, isErr: true})
		}
	}
	for marker, response := range r.Routes {
		if strings.Contains(prompt, marker) {
			matches = append(matches, routedMatch{marker: marker, response: response})
		}
	}
	if len(matches) == 0 {
		return &ChatResponse{Content: r.Fallback}, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if len(a.marker) != len(b.marker) {
			return len(a.marker) > len(b.marker)
		}
		if a.marker != b.marker {
			return a.marker < b.marker
		}
		return a.isErr && !b.isErr
	})

	best := matches[0]
	if best.isErr {
		return nil, best.err
	}
	return &ChatResponse{Content: best.response}, nil
}
