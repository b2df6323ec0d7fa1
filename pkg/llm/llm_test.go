package llm

import (
	"context"
	"testing"
	"time"

	"github.com/arenakit/arena/pkg/errors"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestRoutedMockProvider(t *testing.T) {
	mock := &RoutedMockProvider{
		Routes: map[string]string{
			"The Philosopher": "wisdom",
			"The Scientist":   "data",
		},
		Fallback: "shrug",
	}

	tests := []struct {
		prompt string
		want   string
	}{
		{"You are The Philosopher, answer this", "wisdom"},
		{"You are The Scientist, answer this", "data"},
		{"You are The Artist, answer this", "shrug"},
	}
	for _, tc := range tests {
		resp, err := mock.Chat(context.Background(), ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: tc.prompt}},
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != tc.want {
			t.Errorf("prompt %q: got %q, want %q", tc.prompt, resp.Content, tc.want)
		}
	}
	if mock.Calls != len(tests) {
		t.Errorf("expected %d calls, got %d", len(tests), mock.Calls)
	}
}

func TestRoutedMockProviderOverlappingMarkers(t *testing.T) {
	mock := &RoutedMockProvider{
		Routes: map[string]string{
			"The Skeptic":     "doubt",
			"The Skeptic Neo": "evolved doubt",
		},
		Errs: map[string]error{
			"The Skeptic Neo 2": errors.New(errors.CodeUnreachable, "down", nil),
		},
		Fallback: "shrug",
	}

	// Repeated calls must resolve identically despite map iteration order:
	// the longest matching marker wins.
	for i := 0; i < 50; i++ {
		resp, err := mock.Chat(context.Background(), ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "You are The Skeptic Neo, answer this"}},
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != "evolved doubt" {
			t.Fatalf("call %d: got %q, want %q", i, resp.Content, "evolved doubt")
		}

		resp, err = mock.Chat(context.Background(), ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "You are The Skeptic, answer this"}},
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != "doubt" {
			t.Fatalf("call %d: got %q, want %q", i, resp.Content, "doubt")
		}

		if _, err := mock.Chat(context.Background(), ChatRequest{
			Messages: []Message{{Role: RoleUser, Content: "You are The Skeptic Neo 2, answer this"}},
		}); errors.CodeOf(err) != errors.CodeUnreachable {
			t.Fatalf("call %d: expected the error route to win, got %v", i, err)
		}
	}
}

func TestGeneratorTrimsResponse(t *testing.T) {
	gen := NewGenerator(&MockProvider{Response: "  answer \n"})
	got, err := gen.Generate(context.Background(), "question", "llama2", time.Second)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "answer" {
		t.Errorf("got %q, want %q", got, "answer")
	}

	stats := gen.Stats()
	if stats.TotalRequests != 1 || stats.FailedRequests != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGeneratorClassifiesFailure(t *testing.T) {
	gen := NewGenerator(&FailingMockProvider{})
	_, err := gen.Generate(context.Background(), "question", "llama2", time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsAdapterFailure(err) {
		t.Errorf("expected an adapter failure, got code %v", errors.CodeOf(err))
	}

	stats := gen.Stats()
	if stats.FailedRequests != 1 {
		t.Errorf("expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestGeneratorTimeout(t *testing.T) {
	slow := &MockProvider{ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		select {
		case <-time.After(time.Second):
			return &ChatResponse{Content: "too late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}

	gen := NewGenerator(slow)
	_, err := gen.Generate(context.Background(), "question", "llama2", 10*time.Millisecond)
	if errors.CodeOf(err) != errors.CodeTimeout {
		t.Errorf("expected TIMEOUT, got %v", errors.CodeOf(err))
	}
}

func TestGeneratorRetryRecovers(t *testing.T) {
	calls := 0
	flaky := &MockProvider{ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New(errors.CodeUnreachable, "transient", nil).WithRecoverable(true)
		}
		return &ChatResponse{Content: "recovered"}, nil
	}}

	gen := NewGenerator(flaky, WithRetry(2))
	got, err := gen.Generate(context.Background(), "question", "llama2", time.Second)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "recovered" {
		t.Errorf("got %q, want %q", got, "recovered")
	}
	if calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", calls)
	}
}
