package collectors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/ingest"
)

// telegramUpdate mirrors the Bot API update envelope, reduced to the fields
// the collector reads. Both direct messages and channel posts carry text.
type telegramUpdate struct {
	UpdateID    int64            `json:"update_id"`
	Message     *telegramMessage `json:"message"`
	ChannelPost *telegramMessage `json:"channel_post"`
}

type telegramMessage struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
	Chat      struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
		Type  string `json:"type"`
	} `json:"chat"`
	From struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	} `json:"from"`
	Text string `json:"text"`
}

// TelegramWebhook is the signed push-delivery path for Telegram, used by
// deployments that relay Bot API updates through a gateway instead of (or
// alongside) the long-lived MTProto listener.
type TelegramWebhook struct {
	signingSecret string
	queue         submitter
}

func NewTelegramWebhook(cfg config.TelegramCollectorSettings, queue submitter) *TelegramWebhook {
	return &TelegramWebhook{signingSecret: cfg.SigningSecret, queue: queue}
}

// HandleWebhook verifies and enqueues one update. Returns the number of
// messages enqueued (0 when the update carries no usable text).
func (c *TelegramWebhook) HandleWebhook(timestamp, signature string, body []byte) (int, error) {
	if err := VerifySignature(c.signingSecret, timestamp, signature, body); err != nil {
		return 0, err
	}

	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return 0, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return 0, nil
	}

	sender := msg.From.Username
	if sender == "" {
		sender = msg.From.FirstName
	}
	title := msg.Chat.Title
	if title == "" {
		title = "Telegram chat " + strconv.FormatInt(msg.Chat.ID, 10)
	}

	err := c.queue.Submit(ingest.Item{
		Source:   config.SourceTelegram,
		SourceID: fmt.Sprintf("%d_%d", msg.Chat.ID, msg.MessageID),
		Title:    title,
		Content:  msg.Text,
		Metadata: map[string]any{
			"chat_id":     msg.Chat.ID,
			"chat_type":   msg.Chat.Type,
			"sender_id":   msg.From.ID,
			"sender_name": sender,
			"date":        msg.Date,
		},
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}
