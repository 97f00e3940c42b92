package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// SettingsFileName is the optional YAML settings file inside the config dir.
const SettingsFileName = "paydesk.yaml"

// Initialize loads, validates, and returns ready-to-use process settings.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Start from compiled-in defaults
//  2. Overlay paydesk.yaml from configDir (if present), with {{.VAR}} expansion
//  3. Overlay well-known environment variables (credentials, toggles)
//  4. Validate everything
func Initialize(_ context.Context, configDir string) (*Settings, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	settings := DefaultSettings()

	// 1. Optional YAML overlay
	fromFile, err := loadSettingsYAML(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if fromFile != nil {
		if err := mergo.Merge(settings, fromFile, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", SettingsFileName, err)
		}
	}

	// 2. Environment overlay (wins over file for credentials and toggles)
	applyEnvOverrides(settings)

	// 3. Validate
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"environment", settings.Environment,
		"pii_enabled", settings.PII.Active(),
		"embedding_provider", settings.Embeddings.Provider,
		"embedding_dimension", settings.Embeddings.Dimension,
		"collectors_slack", settings.Collectors.Slack.Enabled,
		"collectors_whatsapp", settings.Collectors.WhatsApp.Enabled,
		"collectors_telegram", settings.Collectors.Telegram.Enabled)

	return settings, nil
}

// loadSettingsYAML reads the optional settings file. A missing file is not an
// error; a malformed one is.
func loadSettingsYAML(configDir string) (*Settings, error) {
	path := filepath.Join(configDir, SettingsFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No settings file found, using defaults + environment", "path", path)
			return nil, nil
		}
		return nil, NewLoadError(SettingsFileName, err)
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing the YAML parser to handle the content (or fail with a clearer
	// error message)
	data = ExpandEnv(data)

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, NewLoadError(SettingsFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	return &settings, nil
}

// applyEnvOverrides maps well-known environment variables onto settings.
// Credentials are expected from the environment in most deployments.
func applyEnvOverrides(s *Settings) {
	envStr("ENVIRONMENT", func(v string) { s.Environment = Environment(v) })

	envStr("AUTH_USERINFO_URL", func(v string) { s.Auth.UserInfoURL = v })

	envStr("OPENAI_API_KEY", func(v string) { s.Providers.OpenAI.APIKey = v })
	envStr("OPENAI_BASE_URL", func(v string) { s.Providers.OpenAI.BaseURL = v })
	envStr("ANTHROPIC_API_KEY", func(v string) { s.Providers.Anthropic.APIKey = v })
	envStr("AZURE_OPENAI_API_KEY", func(v string) { s.Providers.Azure.APIKey = v })
	envStr("AZURE_OPENAI_ENDPOINT", func(v string) { s.Providers.Azure.Endpoint = v })
	envStr("GOOGLE_API_KEY", func(v string) { s.Providers.Google.APIKey = v })

	envStr("EMBEDDING_PROVIDER", func(v string) { s.Embeddings.Provider = LLMProviderType(v) })
	envStr("EMBEDDING_MODEL", func(v string) { s.Embeddings.Model = v })
	envInt("EMBEDDING_DIMENSION", func(v int) { s.Embeddings.Dimension = v })

	envBool("PII_ANONYMIZATION_ENABLED", func(v bool) { s.PII.Enabled = BoolPtr(v) })
	envStr("PII_DEFAULT_STRATEGY", func(v string) { s.PII.DefaultStrategy = PIIStrategy(v) })
	envStr("PII_REDACTION_PLACEHOLDER", func(v string) { s.PII.Placeholder = v })
	envFloat("PII_MIN_CONFIDENCE_SCORE", func(v float64) { s.PII.MinScore = v })
	envBool("PII_FAIL_OPEN", func(v bool) { s.PII.FailOpen = v })

	envInt("HISTORY_MAX_MESSAGES", func(v int) { s.History.MaxMessages = v })
	envInt("HISTORY_MAX_TOKENS", func(v int) { s.History.MaxTokens = v })

	envInt("RETENTION_DOCUMENT_DAYS", func(v int) { s.Retention.DocumentDays = v })
	envInt("RETENTION_SESSION_DAYS", func(v int) { s.Retention.SessionDays = v })

	envBool("SLACK_COLLECTOR_ENABLED", func(v bool) { s.Collectors.Slack.Enabled = v })
	envStr("SLACK_BOT_TOKEN", func(v string) { s.Collectors.Slack.BotToken = v })
	envStr("SLACK_SIGNING_SECRET", func(v string) { s.Collectors.Slack.SigningSecret = v })

	envBool("WHATSAPP_COLLECTOR_ENABLED", func(v bool) { s.Collectors.WhatsApp.Enabled = v })
	envStr("WHATSAPP_SIGNING_SECRET", func(v string) { s.Collectors.WhatsApp.SigningSecret = v })

	envBool("TELEGRAM_COLLECTOR_ENABLED", func(v bool) { s.Collectors.Telegram.Enabled = v })
	envInt("TELEGRAM_APP_ID", func(v int) { s.Collectors.Telegram.AppID = v })
	envStr("TELEGRAM_APP_HASH", func(v string) { s.Collectors.Telegram.AppHash = v })
	envStr("TELEGRAM_SESSION", func(v string) { s.Collectors.Telegram.SessionToken = v })
	envStr("TELEGRAM_SIGNING_SECRET", func(v string) { s.Collectors.Telegram.SigningSecret = v })

	envStr("TOOL_CREDENTIALS_KEY", func(v string) { s.Tools.CredentialsKey = v })
	envStr("WEB_SEARCH_ENDPOINT", func(v string) { s.Tools.WebSearch.Endpoint = v })
	envStr("WEB_SEARCH_API_KEY", func(v string) { s.Tools.WebSearch.APIKey = v })

	envBool("ERROR_NOTIFIER_ENABLED", func(v bool) { s.Notifier.Enabled = v })
	envStr("ERROR_SLACK_TOKEN", func(v string) { s.Notifier.Token = v })
	envStr("ERROR_SLACK_CHANNEL", func(v string) { s.Notifier.Channel = v })

	envStr("ESCALATION_MESSAGE", func(v string) { s.Escalation.Message = v })

	envDuration("MCP_REFRESH_INTERVAL", func(v time.Duration) { s.MCP.RefreshInterval = v })
	envInt("INGESTION_QUEUE_SIZE", func(v int) { s.Ingestion.QueueSize = v })
}

func envStr(key string, set func(string)) {
	if v := os.Getenv(key); v != "" {
		set(v)
	}
}

func envInt(key string, set func(int)) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			set(n)
		} else {
			slog.Warn("Ignoring non-integer environment variable", "key", key, "value", v)
		}
	}
}

func envFloat(key string, set func(float64)) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			set(f)
		} else {
			slog.Warn("Ignoring non-numeric environment variable", "key", key, "value", v)
		}
	}
}

func envBool(key string, set func(bool)) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			set(b)
		} else {
			slog.Warn("Ignoring non-boolean environment variable", "key", key, "value", v)
		}
	}
}

func envDuration(key string, set func(time.Duration)) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			set(d)
		} else {
			slog.Warn("Ignoring non-duration environment variable", "key", key, "value", v)
		}
	}
}
