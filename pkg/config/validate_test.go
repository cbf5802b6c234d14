package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrape-gate/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings, "zero config is the documented default and should not warn")

	assert.Equal(t, ProviderGoogleAI, cfg.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, "API_KEY", cfg.APIKeyEnv)
	assert.Equal(t, "text", cfg.DefaultMode)
	assert.Equal(t, DefaultExtractionPrompt, cfg.DefaultExtractionPrompt)
	assert.Equal(t, "cl100k_base", cfg.TokenizerEncoding)
	assert.Equal(t, DefaultStateDir, cfg.StateDir)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	// Defaults preserve the unthrottled single-attempt behaviour
	assert.Zero(t, cfg.MaxRetries)
	assert.Zero(t, cfg.InitialRetryDelay)
	assert.Zero(t, cfg.MaxInflightRequests)
	assert.Zero(t, cfg.MinRequestInterval)
	assert.Zero(t, cfg.MaxConcurrency)
	assert.Zero(t, cfg.RequestTimeout)
	assert.Zero(t, cfg.DBGCInterval)
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		Provider:            "OpenAI",
		Model:               "gpt-4.1",
		MaxRetries:          2,
		InitialRetryDelay:   500 * time.Millisecond,
		MaxRetryDelay:       5 * time.Second,
		MaxInflightRequests: 4,
		MaxConcurrency:      8,
		DefaultMode:         "json",
		StateDir:            "/state",
		EnableHistory:       true,
		DBGCInterval:        time.Minute,
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, "json", cfg.DefaultMode)
	assert.Equal(t, "/state", cfg.StateDir)
	assert.Equal(t, time.Minute, cfg.DBGCInterval)
}

func TestAppConfig_Validate_RetryDelayDefaults(t *testing.T) {
	cfg := AppConfig{MaxRetries: 3}
	_, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
}

func TestAppConfig_Validate_InitialDelayClamped(t *testing.T) {
	cfg := AppConfig{MaxRetries: 1, InitialRetryDelay: time.Minute, MaxRetryDelay: time.Second}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.InitialRetryDelay)
	assert.True(t, containsWarning(warnings, "initial_retry_delay"))
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	cfg := AppConfig{
		MaxTokens:           -1,
		Temperature:         -0.5,
		RequestTimeout:      -time.Second,
		MaxRetries:          -1,
		MaxInflightRequests: -2,
		MinRequestInterval:  -time.Second,
		MaxConcurrency:      -3,
		DBGCInterval:        -time.Second,
		MaxRetainedBatches:  -1,
	}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Zero(t, cfg.MaxTokens)
	assert.Zero(t, cfg.Temperature)
	assert.Zero(t, cfg.RequestTimeout)
	assert.Zero(t, cfg.MaxRetries)
	assert.Zero(t, cfg.MaxInflightRequests)
	assert.Zero(t, cfg.MinRequestInterval)
	assert.Zero(t, cfg.MaxConcurrency)
	assert.Zero(t, cfg.DBGCInterval)
	assert.Zero(t, cfg.MaxRetainedBatches)

	for _, want := range []string{
		"max_tokens", "temperature", "request_timeout", "max_retries",
		"max_inflight_requests", "min_request_interval", "max_concurrency",
		"db_gc_interval", "max_retained_batches",
	} {
		assert.True(t, containsWarning(warnings, want), "expected warning mentioning %s", want)
	}
}

func TestAppConfig_Validate_AnthropicNeedsMaxTokens(t *testing.T) {
	cfg := AppConfig{Provider: "anthropic"}
	_, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.Equal(t, DefaultModelFor(ProviderAnthropic), cfg.Model)
}

func TestAppConfig_Validate_HistoryDefaults(t *testing.T) {
	cfg := AppConfig{EnableHistory: true}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.DBGCInterval)
	assert.True(t, containsWarning(warnings, "state_dir is empty"))
}

func TestAppConfig_Validate_Fatal(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		want string
	}{
		{"unknown provider", AppConfig{Provider: "bard"}, "unknown provider"},
		{"bad mode", AppConfig{DefaultMode: "xml"}, "default_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// containsWarning checks if any warning contains the given substring
func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
