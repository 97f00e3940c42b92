package config

import "time"

// Settings is the static process configuration resolved at startup from
// compiled defaults, the optional paydesk.yaml file, and the environment.
// Runtime-mutable agent behaviour lives in AgentConfigData, not here.
type Settings struct {
	Environment Environment        `yaml:"environment"`
	Server      ServerSettings     `yaml:"server"`
	Auth        AuthSettings       `yaml:"auth"`
	PII         PIISettings        `yaml:"pii"`
	Ingestion   IngestionSettings  `yaml:"ingestion"`
	Chunking    ChunkingSettings   `yaml:"chunking"`
	Embeddings  EmbeddingSettings  `yaml:"embeddings"`
	Providers   ProviderSettings   `yaml:"providers"`
	History     HistorySettings    `yaml:"history"`
	Retention   RetentionSettings  `yaml:"retention"`
	Collectors  CollectorSettings  `yaml:"collectors"`
	Tools       ToolSettings       `yaml:"tools"`
	MCP         MCPSettings        `yaml:"mcp"`
	Notifier    NotifierSettings   `yaml:"notifier"`
	Escalation  EscalationSettings `yaml:"escalation"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthSettings configures bearer-token verification.
type AuthSettings struct {
	// UserInfoURL is an identity-provider endpoint that resolves a bearer
	// token to a user id. Empty means trusted-header mode behind a gateway.
	UserInfoURL string `yaml:"userinfo_url"`
	// CacheTTL bounds how long a verified token is remembered.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// PIISettings toggles and parameterizes the anonymizer.
type PIISettings struct {
	// Enabled is tri-state so a YAML `enabled: false` can override the
	// default. Read through Active().
	Enabled         *bool       `yaml:"enabled"`
	DefaultStrategy PIIStrategy `yaml:"default_strategy"`
	Placeholder     string      `yaml:"placeholder"`
	MinScore        float64     `yaml:"min_score"`
	// FailOpen lets ingestion continue with original text when the
	// anonymizer itself errors. Off by default.
	FailOpen       bool               `yaml:"fail_open"`
	CustomPatterns []CustomPIIPattern `yaml:"custom_patterns"`
}

// Active reports whether anonymization runs during ingestion.
// Defaults to true when unset.
func (p PIISettings) Active() bool {
	return p.Enabled == nil || *p.Enabled
}

// CustomPIIPattern is a user-supplied detector added to the built-in set.
type CustomPIIPattern struct {
	Name    string  `yaml:"name"`
	Regex   string  `yaml:"regex"`
	Score   float64 `yaml:"score"`
	Comment string  `yaml:"comment,omitempty"`
}

// IngestionSettings sizes the coordinator.
type IngestionSettings struct {
	// QueueSize bounds each per-source queue.
	QueueSize int `yaml:"queue_size"`
	// DrainTimeout bounds graceful shutdown.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// ChunkingSettings parameterizes the chunker.
type ChunkingSettings struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingSettings selects the embedding provider and model.
type EmbeddingSettings struct {
	Provider  LLMProviderType `yaml:"provider"`
	Model     string          `yaml:"model"`
	Dimension int             `yaml:"dimension"`
	BatchSize int             `yaml:"batch_size"`
}

// ProviderSettings carries credentials and endpoints per provider.
// Values come from the environment via {{.VAR}} expansion in paydesk.yaml
// or from the corresponding *_API_KEY variables directly.
type ProviderSettings struct {
	OpenAI    ProviderCredentials `yaml:"openai"`
	Anthropic ProviderCredentials `yaml:"anthropic"`
	Azure     AzureCredentials    `yaml:"azure"`
	Google    ProviderCredentials `yaml:"google"`
	// MaxConcurrent bounds in-flight calls per provider.
	MaxConcurrent int64 `yaml:"max_concurrent"`
}

// ProviderCredentials is an API key with an optional endpoint override.
type ProviderCredentials struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// AzureCredentials requires the resource endpoint alongside the key.
type AzureCredentials struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// HistorySettings caps the conversation window fed to the agent.
type HistorySettings struct {
	MaxMessages int `yaml:"max_messages"`
	MaxTokens   int `yaml:"max_tokens"`
}

// RetentionSettings drives the background retention sweeper.
type RetentionSettings struct {
	DocumentDays  int           `yaml:"document_days"`
	SessionDays   int           `yaml:"session_days"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CollectorSettings groups per-platform collector configuration.
type CollectorSettings struct {
	Slack    SlackCollectorSettings    `yaml:"slack"`
	WhatsApp WhatsAppCollectorSettings `yaml:"whatsapp"`
	Telegram TelegramCollectorSettings `yaml:"telegram"`
}

// SlackCollectorSettings configures webhook verification and history pulls.
type SlackCollectorSettings struct {
	Enabled       bool   `yaml:"enabled"`
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	// HistoryPageSize is the conversations.history page size (≤1000).
	HistoryPageSize int `yaml:"history_page_size"`
}

// WhatsAppCollectorSettings configures the WhatsApp webhook.
type WhatsAppCollectorSettings struct {
	Enabled       bool   `yaml:"enabled"`
	SigningSecret string `yaml:"signing_secret"`
}

// TelegramCollectorSettings configures the MTProto user session and the
// signed webhook fallback.
type TelegramCollectorSettings struct {
	Enabled       bool   `yaml:"enabled"`
	AppID         int    `yaml:"app_id"`
	AppHash       string `yaml:"app_hash"`
	SigningSecret string `yaml:"signing_secret"`
	// SessionToken is an opaque exported user session (Telethon string format).
	SessionToken string `yaml:"session_token"`
	// Dialogs restricts the listener to these chat ids; empty means all.
	Dialogs []int64 `yaml:"dialogs"`
}

// ToolSettings configures built-in tools and credential encryption.
type ToolSettings struct {
	// CredentialsKey is the 32-byte (hex or raw) AES key for tool credentials.
	CredentialsKey string `yaml:"credentials_key"`
	// WebSearch configures the optional external search tool.
	WebSearch WebSearchSettings `yaml:"web_search"`
	// InvokeTimeout bounds a single tool call.
	InvokeTimeout time.Duration `yaml:"invoke_timeout"`
}

// WebSearchSettings points at the external search API.
type WebSearchSettings struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"`
}

// MCPSettings configures remote tool-server discovery.
type MCPSettings struct {
	// RefreshInterval re-discovers tools from enabled servers.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// DiscoveryTimeout bounds a single discovery round trip.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
}

// NotifierSettings configures the out-of-band error alert sink.
type NotifierSettings struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
	// QueueSize bounds pending alerts; overflow is dropped with a log line.
	QueueSize int `yaml:"queue_size"`
}

// EscalationSettings carries the user-visible handoff template.
type EscalationSettings struct {
	Message string `yaml:"message"`
}
