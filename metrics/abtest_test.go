package metrics

import (
	"context"
	"testing"
)

// S7 — A/B promotion: totals A=(10,7), B=(10,9) -> B wins, active is B.
func TestABTestPromotesWinner(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	agentID, err := st.AddAgent(ctx, "X", "purpose", "prompt A")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	reg := NewABTestRegistry()
	test, err := reg.Start(ctx, st, agentID, "prompt B")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	recordOutcomes(reg, agentID, 10, 7, 10, 9)

	winner, err := reg.Conclude(ctx, st, agentID)
	if err != nil {
		t.Fatalf("Conclude: %v", err)
	}
	if winner != "B" {
		t.Fatalf("expected B to win, got %q", winner)
	}

	active, err := st.GetCurrentAgentVersion(ctx, agentID)
	if err != nil {
		t.Fatalf("GetCurrentAgentVersion: %v", err)
	}
	if active.ID != test.VersionB {
		t.Errorf("expected version B to remain active, got %+v", active)
	}
	if active.PromptText != "prompt B" {
		t.Errorf("expected active prompt to be B's, got %q", active.PromptText)
	}
}

// S7 — A=(10,9), B=(10,9): no promotion, active reverts to A via a
// superseding version.
func TestABTestRevertsWithoutPromotion(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	agentID, err := st.AddAgent(ctx, "X", "purpose", "prompt A")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	reg := NewABTestRegistry()
	test, err := reg.Start(ctx, st, agentID, "prompt B")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	recordOutcomes(reg, agentID, 10, 9, 10, 9)

	winner, err := reg.Conclude(ctx, st, agentID)
	if err != nil {
		t.Fatalf("Conclude: %v", err)
	}
	if winner != "A" {
		t.Fatalf("expected no promotion (A retained), got %q", winner)
	}

	active, err := st.GetCurrentAgentVersion(ctx, agentID)
	if err != nil {
		t.Fatalf("GetCurrentAgentVersion: %v", err)
	}
	if active.PromptText != "prompt A" {
		t.Errorf("expected active prompt reverted to A's, got %q", active.PromptText)
	}
	if active.ID == test.VersionA {
		t.Errorf("expected revert to add a superseding version, not reactivate the original row")
	}
}

func TestABTestUnderMinimumSamplesNeverPromotes(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	agentID, err := st.AddAgent(ctx, "X", "purpose", "prompt A")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	reg := NewABTestRegistry()
	if _, err := reg.Start(ctx, st, agentID, "prompt B"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// B would clear the rate margin but neither arm has 10 samples.
	recordOutcomes(reg, agentID, 3, 1, 3, 3)

	winner, err := reg.Conclude(ctx, st, agentID)
	if err != nil {
		t.Fatalf("Conclude: %v", err)
	}
	if winner != "A" {
		t.Fatalf("expected no promotion below the sample floor, got %q", winner)
	}
}

func TestABTestConcludeUnknownAgentErrors(t *testing.T) {
	reg := NewABTestRegistry()
	if _, err := reg.Conclude(context.Background(), nil, "ghost"); err != ErrNoActiveABTest {
		t.Fatalf("expected ErrNoActiveABTest, got %v", err)
	}
}

func recordOutcomes(reg *ABTestRegistry, agentID string, totalA, successfulA, totalB, successfulB int64) {
	for i := int64(0); i < totalA; i++ {
		reg.RecordOutcome(agentID, "A", i < successfulA)
	}
	for i := int64(0); i < totalB; i++ {
		reg.RecordOutcome(agentID, "B", i < successfulB)
	}
}
