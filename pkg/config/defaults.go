package config

import "time"

// Compiled-in defaults. The config store is an optimisation for hot-patching;
// chat must keep working when it is unreachable, so everything here is a
// complete, valid configuration on its own.
const (
	// DefaultAgentConfigName is the config-row name used when none is given.
	DefaultAgentConfigName = "default"

	// DefaultEmbeddingDimension matches the default embedding model output.
	DefaultEmbeddingDimension = 1536

	// DefaultChunkSize is the chunk target in tokens.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the inter-chunk overlap in tokens.
	DefaultChunkOverlap = 200

	// DefaultHistoryMaxMessages caps the conversation window by count.
	DefaultHistoryMaxMessages = 20
	// DefaultHistoryMaxTokens caps the conversation window by ≈tokens.
	DefaultHistoryMaxTokens = 4000

	// DefaultQueueSize bounds each per-source ingestion queue.
	DefaultQueueSize = 100

	// DefaultEscalationMessage is shown when the agent hands off to a human.
	DefaultEscalationMessage = "I am not confident enough to answer this reliably, " +
		"so I have escalated your question to the operations team. " +
		"Someone will follow up with you shortly."
)

// DefaultAgentConfig returns the compiled-in fallback agent configuration.
// It is used verbatim when the config store has no active row or is down.
func DefaultAgentConfig() AgentConfigData {
	return AgentConfigData{
		ConfidenceThresholds: ConfidenceThresholds{
			Escalation: 0.95,
		},
		ModelSettings: ModelSettings{
			Provider:    LLMProviderTypeOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   1000,
		},
		SearchSettings: SearchSettings{
			SimilarityThreshold: 0.7,
			MaxResults:          5,
			HybridSearch:        BoolPtr(true),
		},
		FeatureFlags: map[string]bool{},
		RateLimits: RateLimits{
			RequestsPerMinute: 60,
			Burst:             10,
		},
		ConfidenceCalculation: ConfidenceCalculation{
			Method: ConfidenceMethodFormula,
			HybridWeights: HybridWeights{
				Formula: 0.6,
				LLM:     0.4,
			},
			LLMSettings: ConfidenceLLMSettings{
				Provider:    LLMProviderTypeOpenAI,
				Model:       "gpt-4o-mini",
				Temperature: 0.0,
				MaxTokens:   10,
				TimeoutMs:   2000,
			},
			FormulaWeights: FormulaWeights{
				Similarity:  0.8,
				SourceBoost: 0.1,
				LengthBoost: 0.1,
			},
		},
	}
}

// DefaultSettings returns the compiled-in process settings. The YAML file and
// environment overlay these.
func DefaultSettings() *Settings {
	return &Settings{
		Environment: EnvironmentDevelopment,
		Server: ServerSettings{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthSettings{
			CacheTTL: time.Minute,
		},
		PII: PIISettings{
			Enabled:         BoolPtr(true),
			DefaultStrategy: PIIStrategyReplace,
			Placeholder:     "[REDACTED]",
			MinScore:        0.5,
		},
		Ingestion: IngestionSettings{
			QueueSize:    DefaultQueueSize,
			DrainTimeout: 30 * time.Second,
		},
		Chunking: ChunkingSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Embeddings: EmbeddingSettings{
			Provider:  LLMProviderTypeOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: DefaultEmbeddingDimension,
			BatchSize: 128,
		},
		Providers: ProviderSettings{
			MaxConcurrent: 8,
		},
		History: HistorySettings{
			MaxMessages: DefaultHistoryMaxMessages,
			MaxTokens:   DefaultHistoryMaxTokens,
		},
		Retention: RetentionSettings{
			DocumentDays:  0, // 0 disables document retention
			SessionDays:   0,
			SweepInterval: 6 * time.Hour,
		},
		Collectors: CollectorSettings{
			Slack: SlackCollectorSettings{
				HistoryPageSize: 200,
			},
		},
		Tools: ToolSettings{
			InvokeTimeout: 15 * time.Second,
			WebSearch: WebSearchSettings{
				MaxResults: 5,
			},
		},
		MCP: MCPSettings{
			RefreshInterval:  5 * time.Minute,
			DiscoveryTimeout: 10 * time.Second,
		},
		Notifier: NotifierSettings{
			QueueSize: 64,
		},
		Escalation: EscalationSettings{
			Message: DefaultEscalationMessage,
		},
	}
}

// BoolPtr returns a pointer to the given bool. Used for tri-state flags.
func BoolPtr(b bool) *bool {
	return &b
}
