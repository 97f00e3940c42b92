package llm

import "github.com/paydesk/paydesk/pkg/config"

// ModelInfo describes one catalog entry served by the admin surface.
// Pricing is USD per 1K tokens.
type ModelInfo struct {
	ID             string  `json:"id"`
	DisplayName    string  `json:"display_name"`
	ContextWindow  int     `json:"context_window"`
	InputPer1K     float64 `json:"input_price_per_1k"`
	OutputPer1K    float64 `json:"output_price_per_1k"`
	SupportsTools  bool    `json:"supports_tools"`
	SupportsStream bool    `json:"supports_stream"`
}

// modelCatalog is the static per-provider model table. Prices drift; treat
// them as indicative metadata for the admin UI, not billing truth.
var modelCatalog = map[config.LLMProviderType][]ModelInfo{
	config.LLMProviderTypeOpenAI: {
		{ID: "gpt-4o", DisplayName: "GPT-4o", ContextWindow: 128000, InputPer1K: 0.0025, OutputPer1K: 0.01, SupportsTools: true, SupportsStream: true},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", ContextWindow: 128000, InputPer1K: 0.00015, OutputPer1K: 0.0006, SupportsTools: true, SupportsStream: true},
		{ID: "gpt-4.1", DisplayName: "GPT-4.1", ContextWindow: 1047576, InputPer1K: 0.002, OutputPer1K: 0.008, SupportsTools: true, SupportsStream: true},
		{ID: "gpt-4.1-mini", DisplayName: "GPT-4.1 mini", ContextWindow: 1047576, InputPer1K: 0.0004, OutputPer1K: 0.0016, SupportsTools: true, SupportsStream: true},
		{ID: "text-embedding-3-small", DisplayName: "Text Embedding 3 Small", ContextWindow: 8191, InputPer1K: 0.00002},
		{ID: "text-embedding-3-large", DisplayName: "Text Embedding 3 Large", ContextWindow: 8191, InputPer1K: 0.00013},
	},
	config.LLMProviderTypeAnthropic: {
		{ID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", ContextWindow: 200000, InputPer1K: 0.003, OutputPer1K: 0.015, SupportsTools: true, SupportsStream: true},
		{ID: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku", ContextWindow: 200000, InputPer1K: 0.0008, OutputPer1K: 0.004, SupportsTools: true, SupportsStream: true},
	},
	config.LLMProviderTypeAzure: {
		{ID: "gpt-4o", DisplayName: "GPT-4o (Azure)", ContextWindow: 128000, InputPer1K: 0.0025, OutputPer1K: 0.01, SupportsTools: true, SupportsStream: true},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini (Azure)", ContextWindow: 128000, InputPer1K: 0.00015, OutputPer1K: 0.0006, SupportsTools: true, SupportsStream: true},
		{ID: "text-embedding-3-small", DisplayName: "Text Embedding 3 Small (Azure)", ContextWindow: 8191, InputPer1K: 0.00002},
	},
	config.LLMProviderTypeGoogle: {
		{ID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", ContextWindow: 1048576, InputPer1K: 0.0001, OutputPer1K: 0.0004, SupportsTools: true, SupportsStream: true},
		{ID: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", ContextWindow: 2097152, InputPer1K: 0.00125, OutputPer1K: 0.005, SupportsTools: true, SupportsStream: true},
		{ID: "text-embedding-004", DisplayName: "Text Embedding 004", ContextWindow: 2048, InputPer1K: 0.00001},
	},
}

// Catalog returns the model catalog for one provider, or every provider when
// provider is empty. The returned slices are shared; callers must not mutate.
func Catalog(provider config.LLMProviderType) map[config.LLMProviderType][]ModelInfo {
	if provider == "" {
		return modelCatalog
	}
	if models, ok := modelCatalog[provider]; ok {
		return map[config.LLMProviderType][]ModelInfo{provider: models}
	}
	return map[config.LLMProviderType][]ModelInfo{}
}
