package config

// Environment identifies the deployment environment an agent config targets
type Environment string

const (
	// EnvironmentDevelopment is the local/dev environment
	EnvironmentDevelopment Environment = "development"
	// EnvironmentStaging is the pre-production environment
	EnvironmentStaging Environment = "staging"
	// EnvironmentProduction is the production environment
	EnvironmentProduction Environment = "production"
)

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentDevelopment, EnvironmentStaging, EnvironmentProduction:
		return true
	default:
		return false
	}
}

// Source identifies where an ingested document originated
type Source string

const (
	// SourceSlack is the Slack message collector
	SourceSlack Source = "slack"
	// SourceWhatsApp is the WhatsApp webhook collector
	SourceWhatsApp Source = "whatsapp"
	// SourceTelegram is the Telegram user-session collector
	SourceTelegram Source = "telegram"
	// SourceAdminUpload is the synchronous admin upload path
	SourceAdminUpload Source = "admin_upload"
)

// IsValid checks if the source is valid
func (s Source) IsValid() bool {
	switch s {
	case SourceSlack, SourceWhatsApp, SourceTelegram, SourceAdminUpload:
		return true
	default:
		return false
	}
}

// AllSources lists every ingestion source in stable order.
func AllSources() []Source {
	return []Source{SourceSlack, SourceWhatsApp, SourceTelegram, SourceAdminUpload}
}

// LLMProviderType defines supported LLM/embedding providers
type LLMProviderType string

const (
	// LLMProviderTypeOpenAI is the OpenAI API
	LLMProviderTypeOpenAI LLMProviderType = "openai"
	// LLMProviderTypeAnthropic is the Anthropic Claude API
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	// LLMProviderTypeAzure is Azure OpenAI
	LLMProviderTypeAzure LLMProviderType = "azure"
	// LLMProviderTypeGoogle is the Google Gemini API
	LLMProviderTypeGoogle LLMProviderType = "google"
)

// IsValid checks if the LLM provider type is valid
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeOpenAI,
		LLMProviderTypeAnthropic,
		LLMProviderTypeAzure,
		LLMProviderTypeGoogle:
		return true
	default:
		return false
	}
}

// ConfidenceMethod selects how response confidence is computed
type ConfidenceMethod string

const (
	// ConfidenceMethodFormula is the deterministic weighted formula
	ConfidenceMethodFormula ConfidenceMethod = "formula"
	// ConfidenceMethodLLM asks a model to score the response
	ConfidenceMethodLLM ConfidenceMethod = "llm"
	// ConfidenceMethodHybrid blends the formula and LLM scores
	ConfidenceMethodHybrid ConfidenceMethod = "hybrid"
)

// IsValid checks if the confidence method is valid
func (m ConfidenceMethod) IsValid() bool {
	switch m {
	case ConfidenceMethodFormula, ConfidenceMethodLLM, ConfidenceMethodHybrid:
		return true
	default:
		return false
	}
}

// PIIStrategy defines how detected PII spans are rewritten
type PIIStrategy string

const (
	// PIIStrategyRedact removes the span entirely
	PIIStrategyRedact PIIStrategy = "redact"
	// PIIStrategyReplace substitutes the configured placeholder
	PIIStrategyReplace PIIStrategy = "replace"
	// PIIStrategyMask replaces each character with '*', preserving separators
	PIIStrategyMask PIIStrategy = "mask"
	// PIIStrategyHash replaces the span with a deterministic hash prefix
	PIIStrategyHash PIIStrategy = "hash"
	// PIIStrategyKeep leaves the span unchanged (allowlists)
	PIIStrategyKeep PIIStrategy = "keep"
)

// IsValid checks if the PII strategy is valid
func (s PIIStrategy) IsValid() bool {
	switch s {
	case PIIStrategyRedact, PIIStrategyReplace, PIIStrategyMask, PIIStrategyHash, PIIStrategyKeep:
		return true
	default:
		return false
	}
}

// PromptType categorizes prompt versions within a name
type PromptType string

const (
	// PromptTypeSystem is a system prompt
	PromptTypeSystem PromptType = "system"
	// PromptTypeUser is a user-message template
	PromptTypeUser PromptType = "user"
	// PromptTypeTemplate is a generic fill-in template
	PromptTypeTemplate PromptType = "template"
	// PromptTypeEvaluation is an evaluation/scoring prompt
	PromptTypeEvaluation PromptType = "evaluation"
)

// IsValid checks if the prompt type is valid
func (t PromptType) IsValid() bool {
	switch t {
	case PromptTypeSystem, PromptTypeUser, PromptTypeTemplate, PromptTypeEvaluation:
		return true
	default:
		return false
	}
}
