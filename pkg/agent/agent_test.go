package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordExchangeEvictsOldest(t *testing.T) {
	a := New("agent-1", "The Scientist", "analytical", "llama2", 3)

	for round := 1; round <= 5; round++ {
		a.RecordExchange(round, "question", "answer")
	}

	mem := a.Memory()
	if len(mem) != 3 {
		t.Fatalf("expected 3 memories, got %d", len(mem))
	}
	if mem[0].Round != 3 || mem[2].Round != 5 {
		t.Errorf("expected rounds 3..5, got %d..%d", mem[0].Round, mem[2].Round)
	}
}

func TestRecordExchangeZeroCap(t *testing.T) {
	a := New("agent-1", "The Scientist", "analytical", "llama2", 0)
	a.RecordExchange(1, "question", "answer")
	if len(a.Memory()) != 0 {
		t.Error("zero cap should disable memory")
	}
	if a.MemoryContext() != "No previous memories." {
		t.Errorf("unexpected memory context: %q", a.MemoryContext())
	}
}

func TestAnswerPromptEmbedsIdentity(t *testing.T) {
	a := New("agent-1", "The Philosopher", "You value wisdom.", "llama2", 10)
	a.RecordExchange(1, "What is truth?", "Truth is correspondence.")

	prompt := a.AnswerPrompt("What is beauty?")
	for _, want := range []string{"The Philosopher", "You value wisdom.", "What is beauty?", "What is truth?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDeriveChild(t *testing.T) {
	parent := New("agent-1", "The Skeptic", "You question everything.", "llama2", 10)
	parent.Generation = 2
	parent.VotesReceived = 7
	parent.RecordExchange(1, "q", "a")

	child := parent.DeriveChild("agent-9", "The Skeptic Neo", "Evolved traits: You have evolved to be more concise.", 4)

	if child.Generation != 3 {
		t.Errorf("expected generation 3, got %d", child.Generation)
	}
	if child.ParentID != "agent-1" || child.ParentName != "The Skeptic" {
		t.Errorf("lineage not recorded: %+v", child)
	}
	if child.BirthRound != 4 {
		t.Errorf("expected birth round 4, got %d", child.BirthRound)
	}
	if !strings.Contains(child.Personality, "You question everything.") {
		t.Error("child should inherit parent personality")
	}
	if !strings.Contains(child.Personality, "more concise") {
		t.Error("child should carry the mutation")
	}
	if child.VotesReceived != 0 || child.RoundsSurvived != 0 {
		t.Error("child counters should start at zero")
	}
	if len(child.Memory()) != 0 {
		t.Error("child should start with empty memory")
	}
	// Memory cap is inherited.
	for i := 0; i < 20; i++ {
		child.RecordExchange(i, "q", "a")
	}
	if len(child.Memory()) != 10 {
		t.Errorf("expected inherited cap of 10, got %d", len(child.Memory()))
	}
}

func TestDefaultRoster(t *testing.T) {
	roster := DefaultRoster()
	if len(roster) != 8 {
		t.Fatalf("expected 8 founding personalities, got %d", len(roster))
	}
	seen := map[string]bool{}
	for _, p := range roster {
		if p.Name == "" || p.Personality == "" {
			t.Errorf("incomplete personality: %+v", p)
		}
		if seen[p.Name] {
			t.Errorf("duplicate name %q", p.Name)
		}
		seen[p.Name] = true
	}
}

func TestRosterCycles(t *testing.T) {
	base := []Personality{
		{Name: "A", Personality: "a"},
		{Name: "B", Personality: "b"},
	}

	roster := Roster(base, 5)
	if len(roster) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(roster))
	}
	names := map[string]bool{}
	for _, p := range roster {
		if names[p.Name] {
			t.Errorf("duplicate name %q after cycling", p.Name)
		}
		names[p.Name] = true
	}
	if roster[2].Name != "A 2" {
		t.Errorf("expected cycled name 'A 2', got %q", roster[2].Name)
	}
}

func TestLoadRoster(t *testing.T) {
	content := `
personalities:
  - name: The Jester
    personality: You answer everything with wit.
  - name: The Judge
    personality: You weigh every argument carefully.
`
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	roster, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 personalities, got %d", len(roster))
	}
	if roster[0].Name != "The Jester" {
		t.Errorf("unexpected first entry: %+v", roster[0])
	}

	if _, err := LoadRoster(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
