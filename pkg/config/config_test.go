package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution with {{.VAR}}",
			input: "api_key: {{.API_KEY}}",
			env:   map[string]string{"API_KEY": "secret123"},
			want:  "api_key: secret123",
		},
		{
			name:  "literal $ in PII regex is NOT expanded",
			input: `regex: ^\d{3}-\d{2}-\d{4}$`,
			env:   map[string]string{},
			want:  `regex: ^\d{3}-\d{2}-\d{4}$`,
		},
		{
			name:  "multiple substitutions in one line",
			input: "endpoint: {{.PROTOCOL}}://{{.HOST}}:{{.PORT}}",
			env: map[string]string{
				"PROTOCOL": "https",
				"HOST":     "example.com",
				"PORT":     "443",
			},
			want: "endpoint: https://example.com:443",
		},
		{
			name:  "missing variable expands to empty",
			input: "token: {{.MISSING_VAR}}",
			env:   map[string]string{},
			want:  "token: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestAgentConfigDataValidate(t *testing.T) {
	valid := DefaultAgentConfig()
	require.NoError(t, valid.Validate(), "compiled-in default must validate")

	tests := []struct {
		name   string
		mutate func(*AgentConfigData)
	}{
		{"escalation threshold above 1", func(c *AgentConfigData) { c.ConfidenceThresholds.Escalation = 1.2 }},
		{"unknown provider", func(c *AgentConfigData) { c.ModelSettings.Provider = "cohere" }},
		{"empty model", func(c *AgentConfigData) { c.ModelSettings.Model = "" }},
		{"temperature above 2", func(c *AgentConfigData) { c.ModelSettings.Temperature = 2.5 }},
		{"similarity threshold negative", func(c *AgentConfigData) { c.SearchSettings.SimilarityThreshold = -0.1 }},
		{"max results zero", func(c *AgentConfigData) { c.SearchSettings.MaxResults = 0 }},
		{"unknown confidence method", func(c *AgentConfigData) { c.ConfidenceCalculation.Method = "vibes" }},
		{"hybrid weights not summing to 1", func(c *AgentConfigData) {
			c.ConfidenceCalculation.HybridWeights = HybridWeights{Formula: 0.5, LLM: 0.3}
		}},
		{"formula weights not summing to 1", func(c *AgentConfigData) {
			c.ConfidenceCalculation.FormulaWeights = FormulaWeights{Similarity: 0.9, SourceBoost: 0.3, LengthBoost: 0.1}
		}},
		{"confidence llm timeout too small", func(c *AgentConfigData) { c.ConfidenceCalculation.LLMSettings.TimeoutMs = 50 }},
		{"confidence llm timeout too large", func(c *AgentConfigData) { c.ConfidenceCalculation.LLMSettings.TimeoutMs = 20000 }},
		{"confidence llm max_tokens below 10", func(c *AgentConfigData) { c.ConfidenceCalculation.LLMSettings.MaxTokens = 5 }},
		{"confidence llm max_tokens above 500", func(c *AgentConfigData) { c.ConfidenceCalculation.LLMSettings.MaxTokens = 600 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAgentConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	t.Run("weight sum tolerance accepts 1.005", func(t *testing.T) {
		cfg := DefaultAgentConfig()
		cfg.ConfidenceCalculation.HybridWeights = HybridWeights{Formula: 0.6, LLM: 0.405}
		assert.NoError(t, cfg.Validate())
	})
}

func TestMergePatch(t *testing.T) {
	base := DefaultAgentConfig()

	t.Run("patch overrides only set fields", func(t *testing.T) {
		patch := AgentConfigData{
			ModelSettings: ModelSettings{Model: "gpt-4o"},
			SearchSettings: SearchSettings{
				MaxResults: 10,
			},
		}
		merged, err := MergePatch(base, patch)
		require.NoError(t, err)

		assert.Equal(t, "gpt-4o", merged.ModelSettings.Model)
		assert.Equal(t, 10, merged.SearchSettings.MaxResults)
		// untouched fields survive
		assert.Equal(t, base.ModelSettings.Provider, merged.ModelSettings.Provider)
		assert.InDelta(t, base.SearchSettings.SimilarityThreshold, merged.SearchSettings.SimilarityThreshold, 1e-9)
		assert.Equal(t, base.ConfidenceCalculation.Method, merged.ConfidenceCalculation.Method)
	})

	t.Run("feature flag false wins over base true", func(t *testing.T) {
		b := DefaultAgentConfig()
		b.FeatureFlags = map[string]bool{"web_search": true}
		patch := AgentConfigData{FeatureFlags: map[string]bool{"web_search": false}}

		merged, err := MergePatch(b, patch)
		require.NoError(t, err)
		assert.False(t, merged.FeatureFlags["web_search"])
	})

	t.Run("hybrid toggle off via pointer", func(t *testing.T) {
		patch := AgentConfigData{SearchSettings: SearchSettings{HybridSearch: BoolPtr(false)}}
		merged, err := MergePatch(base, patch)
		require.NoError(t, err)
		assert.False(t, merged.SearchSettings.HybridEnabled())
	})
}

func TestSettingsValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultSettings().Validate())
	})

	t.Run("slack enabled requires signing secret", func(t *testing.T) {
		s := DefaultSettings()
		s.Collectors.Slack.Enabled = true
		s.Collectors.Slack.BotToken = "xoxb-test"
		err := s.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingRequiredField)
	})

	t.Run("telegram enabled requires session token", func(t *testing.T) {
		s := DefaultSettings()
		s.Collectors.Telegram.Enabled = true
		s.Collectors.Telegram.AppID = 12345
		s.Collectors.Telegram.AppHash = "abc"
		err := s.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingRequiredField)
	})

	t.Run("chunk overlap must stay below size", func(t *testing.T) {
		s := DefaultSettings()
		s.Chunking.Size = 100
		s.Chunking.Overlap = 100
		assert.Error(t, s.Validate())
	})

	t.Run("bad credentials key length", func(t *testing.T) {
		s := DefaultSettings()
		s.Tools.CredentialsKey = "short"
		assert.Error(t, s.Validate())
	})
}

func TestInitialize(t *testing.T) {
	t.Run("missing settings file falls back to defaults", func(t *testing.T) {
		dir := t.TempDir()
		settings, err := Initialize(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, EnvironmentDevelopment, settings.Environment)
		assert.Equal(t, DefaultChunkSize, settings.Chunking.Size)
	})

	t.Run("yaml overlay with env expansion", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("TEST_OPENAI_KEY", "sk-test-123")
		yaml := `
environment: staging
providers:
  openai:
    api_key: "{{.TEST_OPENAI_KEY}}"
chunking:
  size: 512
  overlap: 64
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFileName), []byte(yaml), 0o600))

		settings, err := Initialize(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, EnvironmentStaging, settings.Environment)
		assert.Equal(t, "sk-test-123", settings.Providers.OpenAI.APIKey)
		assert.Equal(t, 512, settings.Chunking.Size)
		assert.Equal(t, 64, settings.Chunking.Overlap)
		// defaults survive partial overlay
		assert.Equal(t, DefaultHistoryMaxMessages, settings.History.MaxMessages)
	})

	t.Run("environment variables override file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("PII_ANONYMIZATION_ENABLED", "false")
		t.Setenv("HISTORY_MAX_MESSAGES", "7")

		settings, err := Initialize(context.Background(), dir)
		require.NoError(t, err)
		assert.False(t, settings.PII.Active())
		assert.Equal(t, 7, settings.History.MaxMessages)
	})

	t.Run("invalid environment rejected", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("ENVIRONMENT", "sandbox")
		_, err := Initialize(context.Background(), dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
}

func TestEnums(t *testing.T) {
	assert.True(t, SourceSlack.IsValid())
	assert.True(t, SourceAdminUpload.IsValid())
	assert.False(t, Source("email").IsValid())

	assert.True(t, ConfidenceMethodHybrid.IsValid())
	assert.False(t, ConfidenceMethod("").IsValid())

	assert.True(t, PIIStrategyMask.IsValid())
	assert.False(t, PIIStrategy("drop").IsValid())

	assert.Len(t, AllSources(), 4)
}
