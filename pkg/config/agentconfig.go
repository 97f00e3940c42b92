package config

import (
	"fmt"
	"math"

	"dario.cat/mergo"
)

// AgentConfigData is the runtime-mutable behaviour of the QA agent. It is
// versioned in the config store and hot-patched through the admin surface;
// exactly one version per (name, environment) is active at a time.
type AgentConfigData struct {
	ConfidenceThresholds  ConfidenceThresholds  `json:"confidence_thresholds" yaml:"confidence_thresholds"`
	ModelSettings         ModelSettings         `json:"model_settings" yaml:"model_settings"`
	SearchSettings        SearchSettings        `json:"search_settings" yaml:"search_settings"`
	FeatureFlags          map[string]bool       `json:"feature_flags,omitempty" yaml:"feature_flags,omitempty"`
	RateLimits            RateLimits            `json:"rate_limits" yaml:"rate_limits"`
	ConfidenceCalculation ConfidenceCalculation `json:"confidence_calculation" yaml:"confidence_calculation"`
}

// ConfidenceThresholds holds decision thresholds for the agent.
type ConfidenceThresholds struct {
	// Escalation is the minimum confidence for answering without a human handoff.
	Escalation float64 `json:"escalation" yaml:"escalation"`
}

// ModelSettings selects the generation model.
type ModelSettings struct {
	Provider    LLMProviderType `json:"provider" yaml:"provider"`
	Model       string          `json:"model" yaml:"model"`
	Temperature float64         `json:"temperature" yaml:"temperature"`
	MaxTokens   int             `json:"max_tokens" yaml:"max_tokens"`
}

// SearchSettings controls the retrieval step.
type SearchSettings struct {
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	MaxResults          int     `json:"max_results" yaml:"max_results"`
	HybridSearch        *bool   `json:"hybrid_search,omitempty" yaml:"hybrid_search,omitempty"`
}

// HybridEnabled reports whether hybrid (vector+keyword) search is on.
// Defaults to true when unset.
func (s SearchSettings) HybridEnabled() bool {
	return s.HybridSearch == nil || *s.HybridSearch
}

// RateLimits holds per-user ingress limits.
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int `json:"burst" yaml:"burst"`
}

// ConfidenceCalculation selects and parameterizes the confidence method.
type ConfidenceCalculation struct {
	Method         ConfidenceMethod      `json:"method" yaml:"method"`
	HybridWeights  HybridWeights         `json:"hybrid_weights" yaml:"hybrid_weights"`
	LLMSettings    ConfidenceLLMSettings `json:"llm_settings" yaml:"llm_settings"`
	FormulaWeights FormulaWeights        `json:"formula_weights" yaml:"formula_weights"`
}

// HybridWeights blends the formula and LLM legs; must sum to 1.
type HybridWeights struct {
	Formula float64 `json:"formula" yaml:"formula"`
	LLM     float64 `json:"llm" yaml:"llm"`
}

// ConfidenceLLMSettings parameterizes the LLM confidence call.
type ConfidenceLLMSettings struct {
	Provider    LLMProviderType `json:"provider" yaml:"provider"`
	Model       string          `json:"model" yaml:"model"`
	Temperature float64         `json:"temperature" yaml:"temperature"`
	MaxTokens   int             `json:"max_tokens" yaml:"max_tokens"`
	TimeoutMs   int             `json:"timeout_ms" yaml:"timeout_ms"`
}

// FormulaWeights weighs the formula components; must sum to 1.
type FormulaWeights struct {
	Similarity  float64 `json:"similarity" yaml:"similarity"`
	SourceBoost float64 `json:"source_boost" yaml:"source_boost"`
	LengthBoost float64 `json:"length_boost" yaml:"length_boost"`
}

// weightSumTolerance is the accepted deviation when weights must sum to 1.
const weightSumTolerance = 0.01

// Validate checks every numeric range and enum tag. Patches are validated on
// write; readers trust stored rows.
func (c *AgentConfigData) Validate() error {
	if c.ConfidenceThresholds.Escalation < 0 || c.ConfidenceThresholds.Escalation > 1 {
		return NewValidationError("agent_config", "confidence_thresholds", "escalation",
			fmt.Errorf("%w: must be in [0,1], got %v", ErrInvalidValue, c.ConfidenceThresholds.Escalation))
	}

	if !c.ModelSettings.Provider.IsValid() {
		return NewValidationError("agent_config", "model_settings", "provider",
			fmt.Errorf("%w: unknown provider %q", ErrInvalidValue, c.ModelSettings.Provider))
	}
	if c.ModelSettings.Model == "" {
		return NewValidationError("agent_config", "model_settings", "model", ErrMissingRequiredField)
	}
	if c.ModelSettings.Temperature < 0 || c.ModelSettings.Temperature > 2 {
		return NewValidationError("agent_config", "model_settings", "temperature",
			fmt.Errorf("%w: must be in [0,2], got %v", ErrInvalidValue, c.ModelSettings.Temperature))
	}
	if c.ModelSettings.MaxTokens <= 0 {
		return NewValidationError("agent_config", "model_settings", "max_tokens",
			fmt.Errorf("%w: must be positive, got %d", ErrInvalidValue, c.ModelSettings.MaxTokens))
	}

	if c.SearchSettings.SimilarityThreshold < 0 || c.SearchSettings.SimilarityThreshold > 1 {
		return NewValidationError("agent_config", "search_settings", "similarity_threshold",
			fmt.Errorf("%w: must be in [0,1], got %v", ErrInvalidValue, c.SearchSettings.SimilarityThreshold))
	}
	if c.SearchSettings.MaxResults < 1 || c.SearchSettings.MaxResults > 50 {
		return NewValidationError("agent_config", "search_settings", "max_results",
			fmt.Errorf("%w: must be in [1,50], got %d", ErrInvalidValue, c.SearchSettings.MaxResults))
	}

	if c.RateLimits.RequestsPerMinute < 0 || c.RateLimits.Burst < 0 {
		return NewValidationError("agent_config", "rate_limits", "",
			fmt.Errorf("%w: limits must be non-negative", ErrInvalidValue))
	}

	return c.ConfidenceCalculation.validate()
}

func (c *ConfidenceCalculation) validate() error {
	if !c.Method.IsValid() {
		return NewValidationError("agent_config", "confidence_calculation", "method",
			fmt.Errorf("%w: unknown method %q", ErrInvalidValue, c.Method))
	}

	if sum := c.HybridWeights.Formula + c.HybridWeights.LLM; math.Abs(sum-1.0) > weightSumTolerance {
		return NewValidationError("agent_config", "confidence_calculation", "hybrid_weights",
			fmt.Errorf("%w: must sum to 1±%.2f, got %v", ErrInvalidValue, weightSumTolerance, sum))
	}

	fw := c.FormulaWeights
	if sum := fw.Similarity + fw.SourceBoost + fw.LengthBoost; math.Abs(sum-1.0) > weightSumTolerance {
		return NewValidationError("agent_config", "confidence_calculation", "formula_weights",
			fmt.Errorf("%w: must sum to 1±%.2f, got %v", ErrInvalidValue, weightSumTolerance, sum))
	}

	ls := c.LLMSettings
	if !ls.Provider.IsValid() {
		return NewValidationError("agent_config", "confidence_calculation", "llm_settings.provider",
			fmt.Errorf("%w: unknown provider %q", ErrInvalidValue, ls.Provider))
	}
	if ls.Temperature < 0 || ls.Temperature > 2 {
		return NewValidationError("agent_config", "confidence_calculation", "llm_settings.temperature",
			fmt.Errorf("%w: must be in [0,2], got %v", ErrInvalidValue, ls.Temperature))
	}
	if ls.MaxTokens < 10 || ls.MaxTokens > 500 {
		return NewValidationError("agent_config", "confidence_calculation", "llm_settings.max_tokens",
			fmt.Errorf("%w: must be in [10,500], got %d", ErrInvalidValue, ls.MaxTokens))
	}
	if ls.TimeoutMs < 100 || ls.TimeoutMs > 10000 {
		return NewValidationError("agent_config", "confidence_calculation", "llm_settings.timeout_ms",
			fmt.Errorf("%w: must be in [100,10000], got %d", ErrInvalidValue, ls.TimeoutMs))
	}

	return nil
}

// MergePatch overlays non-zero fields of patch onto a copy of base and
// returns the result. The caller validates the merged config before writing
// a new version.
func MergePatch(base AgentConfigData, patch AgentConfigData) (AgentConfigData, error) {
	merged := base
	if err := mergo.Merge(&merged, patch, mergo.WithOverride); err != nil {
		return AgentConfigData{}, fmt.Errorf("failed to merge config patch: %w", err)
	}
	// mergo treats false as a zero value; feature flags carry both states,
	// so patch entries win outright.
	if patch.FeatureFlags != nil {
		if merged.FeatureFlags == nil {
			merged.FeatureFlags = make(map[string]bool, len(patch.FeatureFlags))
		}
		for k, v := range patch.FeatureFlags {
			merged.FeatureFlags[k] = v
		}
	}
	return merged, nil
}
