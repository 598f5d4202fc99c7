// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kestrelai/kestrel/runtime"
)

// Settings holds all application configuration.
type Settings struct {
	LLM           LLMConfig
	Store         StoreConfig
	Orchestration OrchestrationConfig
	Metrics       MetricsConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// DatabasePath is the SQLite file the store opens. Empty means
	// in-memory.
	DatabasePath string
	// MetricsRetentionDays is the configured retention window for
	// interaction rows, in days. Nothing in the store prunes rows by it.
	MetricsRetentionDays int
}

// OrchestrationConfig holds session-driving configuration for the
// Chief/specialist tick loop.
type OrchestrationConfig struct {
	CompletionEndpointURL  string
	DefaultModel           string
	MaxTokens              int64
	RequestTimeout         time.Duration
	MaxSessionHistoryCount int
	DefaultHistoryMode     runtime.HistoryMode
	BasePromptsPath        string
}

// MetricsConfig holds the thresholds and timing that drive the
// refinement and A/B testing loop.
type MetricsConfig struct {
	PromptRefinementThreshold  float64
	ABTestMinimumSamples       int
	StrongPerformanceThreshold float64
	WeakPerformanceThreshold   float64
	RefinementAwaitTimeout     time.Duration
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// LoadDotEnv loads a .env file from the working directory into the
// process environment, if one exists. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// New creates settings for the specified provider, loading values from environment variables.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	// Get model from environment or use default
	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	metricsRetentionDays, err := getEnvInt("METRICS_RETENTION_DAYS", 30)
	if err != nil {
		return Settings{}, err
	}
	if metricsRetentionDays < 1 {
		return Settings{}, fmt.Errorf("METRICS_RETENTION_DAYS must be >= 1, got %d", metricsRetentionDays)
	}

	orchMaxTokens, err := getEnvInt("ORCHESTRATION_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}
	if orchMaxTokens < 100 {
		return Settings{}, fmt.Errorf("ORCHESTRATION_MAX_TOKENS must be >= 100, got %d", orchMaxTokens)
	}

	requestTimeoutSeconds, err := getEnvInt("REQUEST_TIMEOUT_SECONDS", 120)
	if err != nil {
		return Settings{}, err
	}

	maxSessionHistoryCount, err := getEnvInt("MAX_SESSION_HISTORY_COUNT", 10)
	if err != nil {
		return Settings{}, err
	}
	if maxSessionHistoryCount < 0 || maxSessionHistoryCount > 25 {
		return Settings{}, fmt.Errorf("MAX_SESSION_HISTORY_COUNT must be within [0,25], got %d", maxSessionHistoryCount)
	}

	defaultHistoryMode, err := parseHistoryMode(getEnvOr("DEFAULT_HISTORY_MODE", "CONVERSATIONAL"))
	if err != nil {
		return Settings{}, err
	}

	promptRefinementThreshold, err := getEnvFloat64("PROMPT_REFINEMENT_THRESHOLD", 0.6)
	if err != nil {
		return Settings{}, err
	}
	if promptRefinementThreshold < 0 || promptRefinementThreshold > 1 {
		return Settings{}, fmt.Errorf("PROMPT_REFINEMENT_THRESHOLD must be within [0,1], got %v", promptRefinementThreshold)
	}

	abTestMinimumSamples, err := getEnvInt("AB_TEST_MINIMUM_SAMPLES", 10)
	if err != nil {
		return Settings{}, err
	}

	strongPerformanceThreshold, err := getEnvFloat64("STRONG_PERFORMANCE_THRESHOLD", 0.8)
	if err != nil {
		return Settings{}, err
	}
	weakPerformanceThreshold, err := getEnvFloat64("WEAK_PERFORMANCE_THRESHOLD", 0.6)
	if err != nil {
		return Settings{}, err
	}
	if strongPerformanceThreshold < 0 || strongPerformanceThreshold > 1 ||
		weakPerformanceThreshold < 0 || weakPerformanceThreshold > 1 {
		return Settings{}, fmt.Errorf("performance thresholds must be within [0,1]")
	}
	if strongPerformanceThreshold <= weakPerformanceThreshold {
		return Settings{}, fmt.Errorf("strong performance threshold (%v) must exceed weak (%v)", strongPerformanceThreshold, weakPerformanceThreshold)
	}

	refinementAwaitSeconds, err := getEnvInt("REFINEMENT_AWAIT_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Store: StoreConfig{
			DatabasePath:         getEnvOr("DATABASE_PATH", "kestrel.db"),
			MetricsRetentionDays: metricsRetentionDays,
		},
		Orchestration: OrchestrationConfig{
			CompletionEndpointURL:  os.Getenv("COMPLETION_ENDPOINT_URL"),
			DefaultModel:           getEnvOr("DEFAULT_MODEL", model),
			MaxTokens:              int64(orchMaxTokens),
			RequestTimeout:         time.Duration(requestTimeoutSeconds) * time.Second,
			MaxSessionHistoryCount: maxSessionHistoryCount,
			DefaultHistoryMode:     defaultHistoryMode,
			BasePromptsPath:        getEnvOr("BASE_PROMPTS_PATH", "prompts"),
		},
		Metrics: MetricsConfig{
			PromptRefinementThreshold:  promptRefinementThreshold,
			ABTestMinimumSamples:       abTestMinimumSamples,
			StrongPerformanceThreshold: strongPerformanceThreshold,
			WeakPerformanceThreshold:   weakPerformanceThreshold,
			RefinementAwaitTimeout:     time.Duration(refinementAwaitSeconds) * time.Second,
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// parseHistoryMode maps the DEFAULT_HISTORY_MODE env value to a
// runtime.HistoryMode, using the same names the Chief-directive grammar
// accepts for SESSION_AWARE/CONVERSATIONAL/STATELESS activations.
func parseHistoryMode(val string) (runtime.HistoryMode, error) {
	switch strings.ToUpper(val) {
	case "CONVERSATIONAL":
		return runtime.HistoryFull, nil
	case "SESSION_AWARE":
		return runtime.HistorySummaryOnly, nil
	case "STATELESS":
		return runtime.HistoryNone, nil
	default:
		return 0, fmt.Errorf("unknown DEFAULT_HISTORY_MODE: %q", val)
	}
}

// Environment variable helpers with proper error handling

func getEnvOr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
