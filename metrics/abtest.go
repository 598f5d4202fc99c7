package metrics

import (
	"context"
	"errors"
	"sync"

	"github.com/kestrelai/kestrel/store"
)

// ErrNoActiveABTest is returned by ABTestRegistry methods for an
// agentID with no in-flight test.
var ErrNoActiveABTest = errors.New("metrics: no active A/B test for this agent")

// abTestMinimumSamples is the per-arm sample floor below which
// Conclude never promotes B, per spec.md §4.7 point 3.
const abTestMinimumSamples = 10

// promotionMargin is the relative improvement B must clear over A to win.
const promotionMargin = 1.05

// ABTest is one agent's in-flight split-traffic comparison of its
// active prompt (A) against a candidate (B, already persisted as the
// new active version per Start).
type ABTest struct {
	AgentID  string
	VersionA string
	VersionB string
	PromptA  string

	counter uint64

	totalA, successfulA int64
	totalB, successfulB int64
}

// RateA returns A's observed success rate (0 if no samples yet).
func (t *ABTest) RateA() float64 { return safeRate(t.successfulA, t.totalA) }

// RateB returns B's observed success rate (0 if no samples yet).
func (t *ABTest) RateB() float64 { return safeRate(t.successfulB, t.totalB) }

func safeRate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total)
}

// ABTestRegistry owns in-flight A/B tests, keyed by agentID, under a
// component-local lock — the Metrics component's home for the "global
// dictionary of active A/B tests" the spec calls out as process state.
type ABTestRegistry struct {
	mu    sync.RWMutex
	tests map[string]*ABTest
}

// NewABTestRegistry creates an empty registry.
func NewABTestRegistry() *ABTestRegistry {
	return &ABTestRegistry{tests: make(map[string]*ABTest)}
}

// Start persists promptB as a new, now-active version (A's version is
// retained, not deleted) and begins tracking a split-traffic test.
func (r *ABTestRegistry) Start(ctx context.Context, st *store.Store, agentID, promptB string) (*ABTest, error) {
	versionA, err := st.GetCurrentAgentVersion(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := st.AddAgentVersion(ctx, agentID, promptB, "ab-test candidate", "", versionA.PerformanceScore); err != nil {
		return nil, err
	}
	versionB, err := st.GetCurrentAgentVersion(ctx, agentID)
	if err != nil {
		return nil, err
	}

	test := &ABTest{
		AgentID:  agentID,
		VersionA: versionA.ID,
		VersionB: versionB.ID,
		PromptA:  versionA.PromptText,
	}
	r.mu.Lock()
	r.tests[agentID] = test
	r.mu.Unlock()
	return test, nil
}

// RouteVariant returns "A" or "B" for the next interaction under a fair
// split (alternating on a per-agent counter), and false if no test is
// running for this agent.
func (r *ABTestRegistry) RouteVariant(agentID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[agentID]
	if !ok {
		return "", false
	}
	t.counter++
	if t.counter%2 == 0 {
		return "A", true
	}
	return "B", true
}

// RecordOutcome folds one interaction's result into the routed variant's
// running total.
func (r *ABTestRegistry) RecordOutcome(agentID, variant string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[agentID]
	if !ok {
		return
	}
	switch variant {
	case "A":
		t.totalA++
		if success {
			t.successfulA++
		}
	case "B":
		t.totalB++
		if success {
			t.successfulB++
		}
	}
}

// Conclude ends an agent's A/B test. B wins iff both arms have at least
// abTestMinimumSamples and rate(B) > rate(A)*promotionMargin; B is
// already the active version in that case, so winning only writes the
// final score. Otherwise the active version reverts to A by persisting
// a superseding version whose prompt equals A's. Returns "A" or "B"
// naming the winner.
func (r *ABTestRegistry) Conclude(ctx context.Context, st *store.Store, agentID string) (string, error) {
	r.mu.Lock()
	t, ok := r.tests[agentID]
	delete(r.tests, agentID)
	r.mu.Unlock()
	if !ok {
		return "", ErrNoActiveABTest
	}

	rateA, rateB := t.RateA(), t.RateB()
	promote := t.totalA >= abTestMinimumSamples && t.totalB >= abTestMinimumSamples && rateB > rateA*promotionMargin

	if promote {
		if err := st.SetVersionPerformanceScore(ctx, t.VersionB, rateB); err != nil {
			return "", err
		}
		if err := st.SetVersionPerformanceScore(ctx, t.VersionA, rateA); err != nil {
			return "", err
		}
		return "B", nil
	}

	if _, err := st.AddAgentVersion(ctx, t.AgentID, t.PromptA, "ab-test revert", "", rateB); err != nil {
		return "", err
	}
	if err := st.SetVersionPerformanceScore(ctx, t.VersionA, rateA); err != nil {
		return "", err
	}
	if err := st.SetVersionPerformanceScore(ctx, t.VersionB, rateB); err != nil {
		return "", err
	}
	return "A", nil
}
