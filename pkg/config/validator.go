package config

import "fmt"

// Validate checks static process settings. The process refuses to start on
// invalid settings; runtime agent-config patches are validated separately by
// AgentConfigData.Validate.
func (s *Settings) Validate() error {
	if !s.Environment.IsValid() {
		return NewValidationError("settings", "environment", "",
			fmt.Errorf("%w: %q", ErrInvalidValue, s.Environment))
	}

	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return NewValidationError("settings", "server", "port",
			fmt.Errorf("%w: %d", ErrInvalidValue, s.Server.Port))
	}

	if !s.PII.DefaultStrategy.IsValid() {
		return NewValidationError("settings", "pii", "default_strategy",
			fmt.Errorf("%w: %q", ErrInvalidValue, s.PII.DefaultStrategy))
	}
	if s.PII.MinScore < 0 || s.PII.MinScore > 1 {
		return NewValidationError("settings", "pii", "min_score",
			fmt.Errorf("%w: must be in [0,1], got %v", ErrInvalidValue, s.PII.MinScore))
	}
	for _, p := range s.PII.CustomPatterns {
		if p.Name == "" || p.Regex == "" {
			return NewValidationError("settings", "pii", "custom_patterns",
				fmt.Errorf("%w: name and regex", ErrMissingRequiredField))
		}
		if p.Score < 0 || p.Score > 1 {
			return NewValidationError("settings", "pii", "custom_patterns",
				fmt.Errorf("%w: score must be in [0,1] for pattern %q", ErrInvalidValue, p.Name))
		}
	}

	if s.Chunking.Size <= 0 {
		return NewValidationError("settings", "chunking", "size",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		return NewValidationError("settings", "chunking", "overlap",
			fmt.Errorf("%w: must be in [0,size)", ErrInvalidValue))
	}

	if !s.Embeddings.Provider.IsValid() {
		return NewValidationError("settings", "embeddings", "provider",
			fmt.Errorf("%w: %q", ErrInvalidValue, s.Embeddings.Provider))
	}
	if s.Embeddings.Dimension <= 0 {
		return NewValidationError("settings", "embeddings", "dimension",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.Embeddings.BatchSize < 1 || s.Embeddings.BatchSize > 2048 {
		return NewValidationError("settings", "embeddings", "batch_size",
			fmt.Errorf("%w: must be in [1,2048]", ErrInvalidValue))
	}

	if s.History.MaxMessages <= 0 || s.History.MaxTokens <= 0 {
		return NewValidationError("settings", "history", "",
			fmt.Errorf("%w: caps must be positive", ErrInvalidValue))
	}

	if s.Ingestion.QueueSize <= 0 {
		return NewValidationError("settings", "ingestion", "queue_size",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}

	if s.Collectors.Slack.Enabled {
		if s.Collectors.Slack.SigningSecret == "" {
			return NewValidationError("settings", "collectors.slack", "signing_secret", ErrMissingRequiredField)
		}
		if s.Collectors.Slack.BotToken == "" {
			return NewValidationError("settings", "collectors.slack", "bot_token", ErrMissingRequiredField)
		}
	}
	if s.Collectors.WhatsApp.Enabled && s.Collectors.WhatsApp.SigningSecret == "" {
		return NewValidationError("settings", "collectors.whatsapp", "signing_secret", ErrMissingRequiredField)
	}
	if s.Collectors.Telegram.Enabled {
		if s.Collectors.Telegram.AppID == 0 || s.Collectors.Telegram.AppHash == "" {
			return NewValidationError("settings", "collectors.telegram", "app_id/app_hash", ErrMissingRequiredField)
		}
		if s.Collectors.Telegram.SessionToken == "" {
			return NewValidationError("settings", "collectors.telegram", "session_token", ErrMissingRequiredField)
		}
	}

	if s.Notifier.Enabled && (s.Notifier.Token == "" || s.Notifier.Channel == "") {
		return NewValidationError("settings", "notifier", "token/channel", ErrMissingRequiredField)
	}

	if key := s.Tools.CredentialsKey; key != "" {
		switch len(key) {
		case 16, 24, 32, 64: // raw AES key sizes, or 32-byte key hex-encoded
		default:
			return NewValidationError("settings", "tools", "credentials_key",
				fmt.Errorf("%w: must be 16/24/32 raw bytes or 64 hex chars", ErrInvalidValue))
		}
	}

	return nil
}
