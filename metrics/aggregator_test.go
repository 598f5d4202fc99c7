package metrics

import "testing"

func TestAggregatorRunningMeans(t *testing.T) {
	agg := NewAggregator()
	agg.RecordOutcome("X", true, 1.0)
	agg.RecordOutcome("X", true, 2.0)
	agg.RecordOutcome("X", false, 3.0)

	snap, ok := agg.Snapshot("X")
	if !ok {
		t.Fatal("expected a snapshot for X")
	}
	if snap.TotalRequests != 3 || snap.Successful != 2 || snap.Failed != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.ResponseTimeSeconds != 2.0 {
		t.Errorf("expected mean response time 2.0, got %v", snap.ResponseTimeSeconds)
	}
}

func TestAggregatorQualityScoresAndEffectiveness(t *testing.T) {
	agg := NewAggregator()
	r1, c1, a1 := 0.8, 0.6, 0.9
	agg.RecordQuality("X", QualitySample{Relevance: &r1, Creativity: &c1, Accuracy: &a1})
	r2 := 0.6
	agg.RecordQuality("X", QualitySample{Relevance: &r2})

	snap, ok := agg.Snapshot("X")
	if !ok {
		t.Fatal("expected a snapshot for X")
	}
	if snap.Relevance != 0.7 {
		t.Errorf("expected relevance mean 0.7, got %v", snap.Relevance)
	}
	if snap.Creativity != 0.6 || snap.Accuracy != 0.9 {
		t.Errorf("unexpected single-sample means: %+v", snap)
	}
	if snap.Consensus != 0 {
		t.Errorf("expected untouched Consensus to stay 0, got %v", snap.Consensus)
	}
	relevance := 0.7
	want := (relevance + c1 + a1 + 0) / 4
	if snap.Effectiveness() != want {
		t.Errorf("expected effectiveness %v, got %v", want, snap.Effectiveness())
	}
}

func TestAggregatorSnapshotMissingAgent(t *testing.T) {
	agg := NewAggregator()
	if _, ok := agg.Snapshot("nope"); ok {
		t.Error("expected no snapshot for an unrecorded agent")
	}
}
