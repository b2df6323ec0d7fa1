package store

import (
	"context"
	"testing"

	"github.com/arenakit/arena/pkg/agent"
	"github.com/arenakit/arena/pkg/simulation"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewRunStore(db)
	if err != nil {
		t.Fatalf("NewRunStore failed: %v", err)
	}
	return s
}

func sampleRound(n int) simulation.RoundResult {
	return simulation.RoundResult{
		Round:        n,
		Question:     "What makes a good leader?",
		Answers:      map[string]string{"agent-001": "vision"},
		Votes:        map[string][]string{"agent-002": {"agent-001"}},
		Tally:        map[string]int{"agent-001": 1, "agent-002": 0},
		WinnerID:     "agent-001",
		EliminatedID: "agent-002",
		NewAgent:     agent.Snapshot{ID: "agent-003", Name: "Alpha Neo", Generation: 1, BirthRound: n},
	}
}

func TestSaveAndLoadRounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	for n := 1; n <= 3; n++ {
		if err := s.SaveRound(ctx, runID, sampleRound(n)); err != nil {
			t.Fatalf("SaveRound failed: %v", err)
		}
	}

	rounds, err := s.LoadRounds(ctx, runID)
	if err != nil {
		t.Fatalf("LoadRounds failed: %v", err)
	}
	if len(rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(rounds))
	}
	if rounds[0].Round != 1 || rounds[2].Round != 3 {
		t.Errorf("rounds out of order: %d..%d", rounds[0].Round, rounds[2].Round)
	}
	if rounds[0].EliminatedID != "agent-002" {
		t.Errorf("round payload corrupted: %+v", rounds[0])
	}
	if rounds[0].NewAgent.Name != "Alpha Neo" {
		t.Errorf("new agent not preserved: %+v", rounds[0].NewAgent)
	}
}

func TestFinishRunAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	snap := &simulation.Snapshot{
		Status: simulation.StatusCompleted,
		Rounds: []simulation.RoundResult{sampleRound(1)},
		Standings: []agent.Snapshot{
			{ID: "agent-001", Name: "Alpha", VotesReceived: 3},
		},
	}
	if err := s.FinishRun(ctx, runID, snap); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != runID || runs[0].Status != string(simulation.StatusCompleted) {
		t.Errorf("unexpected run info: %+v", runs[0])
	}
	if runs[0].FinishedAt.IsZero() {
		t.Error("finished run should carry a finish time")
	}

	loaded, err := s.LoadSnapshot(ctx, runID)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Status != simulation.StatusCompleted {
		t.Errorf("snapshot status = %s", loaded.Status)
	}
	if len(loaded.Standings) != 1 || loaded.Standings[0].Name != "Alpha" {
		t.Errorf("standings not preserved: %+v", loaded.Standings)
	}
}

func TestLoadSnapshotUnfinishedRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	snap, err := s.LoadSnapshot(ctx, runID)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if snap != nil {
		t.Error("expected nil snapshot for unfinished run")
	}
}
