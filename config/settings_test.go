package config

import (
	"os"
	"testing"

	"github.com/kestrelai/kestrel/runtime"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	model, err := ModelFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == "" {
		t.Error("expected non-empty model")
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	original := os.Getenv("LLM_MAX_TOKENS")
	os.Setenv("LLM_MAX_TOKENS", "not-a-number")
	defer os.Setenv("LLM_MAX_TOKENS", original)

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid LLM_MAX_TOKENS")
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) == 0 {
		t.Error("expected at least one supported provider")
	}
}

func TestNewDefaultsForOrchestrationAndMetrics(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Store.MetricsRetentionDays != 30 {
		t.Errorf("expected default retention of 30 days, got %d", settings.Store.MetricsRetentionDays)
	}
	if settings.Orchestration.DefaultHistoryMode != runtime.HistoryFull {
		t.Errorf("expected CONVERSATIONAL default history mode, got %v", settings.Orchestration.DefaultHistoryMode)
	}
	if settings.Orchestration.MaxSessionHistoryCount != 10 {
		t.Errorf("expected default session history count of 10, got %d", settings.Orchestration.MaxSessionHistoryCount)
	}
	if settings.Metrics.StrongPerformanceThreshold <= settings.Metrics.WeakPerformanceThreshold {
		t.Errorf("expected strong threshold to exceed weak threshold by default")
	}
}

func TestNewRejectsInvertedPerformanceThresholds(t *testing.T) {
	originalStrong := os.Getenv("STRONG_PERFORMANCE_THRESHOLD")
	originalWeak := os.Getenv("WEAK_PERFORMANCE_THRESHOLD")
	os.Setenv("STRONG_PERFORMANCE_THRESHOLD", "0.5")
	os.Setenv("WEAK_PERFORMANCE_THRESHOLD", "0.7")
	defer os.Setenv("STRONG_PERFORMANCE_THRESHOLD", originalStrong)
	defer os.Setenv("WEAK_PERFORMANCE_THRESHOLD", originalWeak)

	if _, err := New("openai"); err == nil {
		t.Error("expected error when strong threshold does not exceed weak threshold")
	}
}

func TestNewRejectsOutOfRangeSessionHistoryCount(t *testing.T) {
	original := os.Getenv("MAX_SESSION_HISTORY_COUNT")
	os.Setenv("MAX_SESSION_HISTORY_COUNT", "50")
	defer os.Setenv("MAX_SESSION_HISTORY_COUNT", original)

	if _, err := New("openai"); err == nil {
		t.Error("expected error for MAX_SESSION_HISTORY_COUNT outside [0,25]")
	}
}

func TestNewParsesHistoryModeAliases(t *testing.T) {
	original := os.Getenv("DEFAULT_HISTORY_MODE")
	defer os.Setenv("DEFAULT_HISTORY_MODE", original)

	os.Setenv("DEFAULT_HISTORY_MODE", "SESSION_AWARE")
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Orchestration.DefaultHistoryMode != runtime.HistorySummaryOnly {
		t.Errorf("expected SESSION_AWARE to map to HistorySummaryOnly, got %v", settings.Orchestration.DefaultHistoryMode)
	}

	os.Setenv("DEFAULT_HISTORY_MODE", "bogus")
	if _, err := New("openai"); err == nil {
		t.Error("expected error for unknown DEFAULT_HISTORY_MODE")
	}
}
