package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/ingest"
)

// submitter is the coordinator surface collectors enqueue through.
type submitter interface {
	Submit(item ingest.Item) error
}

// SlackCollector verifies signed event webhooks and enqueues message events.
// Historical backfill pulls channel history through the Web API.
type SlackCollector struct {
	api           *goslack.Client
	signingSecret string
	queue         submitter
	pageSize      int
}

// NewSlackCollector creates the collector. The API client is only used for
// backfill; real-time events arrive by webhook.
func NewSlackCollector(cfg config.SlackCollectorSettings, queue submitter) *SlackCollector {
	pageSize := cfg.HistoryPageSize
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 200
	}
	return &SlackCollector{
		api:           goslack.New(cfg.BotToken),
		signingSecret: cfg.SigningSecret,
		queue:         queue,
		pageSize:      pageSize,
	}
}

// HandleWebhook processes one verified event callback body. It returns the
// URL-verification challenge when present, otherwise enqueues any message
// event. Must stay fast: the platform expects an ack within seconds.
func (c *SlackCollector) HandleWebhook(timestamp, signature string, body []byte) (challenge string, err error) {
	if err := VerifySignature(c.signingSecret, timestamp, signature, body); err != nil {
		return "", err
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body),
		slackevents.OptionNoVerifyToken())
	if err != nil {
		return "", fmt.Errorf("failed to parse event: %w", err)
	}

	switch event.Type {
	case slackevents.URLVerification:
		var r slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return "", fmt.Errorf("failed to parse challenge: %w", err)
		}
		return r.Challenge, nil

	case slackevents.CallbackEvent:
		if msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			return "", c.enqueueMessage(msg)
		}
	}
	return "", nil
}

// enqueueMessage turns a message event into an ingestion item. Bot echoes and
// empty messages are dropped.
func (c *SlackCollector) enqueueMessage(msg *slackevents.MessageEvent) error {
	if msg.BotID != "" || strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	return c.queue.Submit(ingest.Item{
		Source:   config.SourceSlack,
		SourceID: msg.Channel + "_" + msg.TimeStamp,
		Title:    "Slack message in " + msg.Channel,
		Content:  msg.Text,
		Metadata: map[string]any{
			"channel_id": msg.Channel,
			"user_id":    msg.User,
			"ts":         msg.TimeStamp,
			"thread_ts":  msg.ThreadTimeStamp,
		},
	})
}

// Backfill pulls channel history pages and enqueues each message, bounded by
// an optional date window and per-channel cap. Returns items enqueued per
// channel.
func (c *SlackCollector) Backfill(ctx context.Context, channelIDs []string, start, end time.Time, limitPerChannel int) (map[string]int, error) {
	if limitPerChannel < 1 {
		limitPerChannel = 1000
	}

	counts := make(map[string]int, len(channelIDs))
	for _, channel := range channelIDs {
		n, err := c.backfillChannel(ctx, channel, start, end, limitPerChannel)
		counts[channel] = n
		if err != nil {
			return counts, fmt.Errorf("backfill of %s stopped after %d messages: %w", channel, n, err)
		}
	}
	return counts, nil
}

func (c *SlackCollector) backfillChannel(ctx context.Context, channel string, start, end time.Time, limit int) (int, error) {
	params := &goslack.GetConversationHistoryParameters{
		ChannelID: channel,
		Limit:     c.pageSize,
	}
	if !start.IsZero() {
		params.Oldest = strconv.FormatInt(start.Unix(), 10)
	}
	if !end.IsZero() {
		params.Latest = strconv.FormatInt(end.Unix(), 10)
	}

	enqueued := 0
	for {
		history, err := c.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return enqueued, fmt.Errorf("conversations.history failed: %w", err)
		}

		for _, msg := range history.Messages {
			if enqueued >= limit {
				return enqueued, nil
			}
			if msg.BotID != "" || strings.TrimSpace(msg.Text) == "" {
				continue
			}
			err := c.queue.Submit(ingest.Item{
				Source:   config.SourceSlack,
				SourceID: channel + "_" + msg.Timestamp,
				Title:    "Slack message in " + channel,
				Content:  msg.Text,
				Metadata: map[string]any{
					"channel_id": channel,
					"user_id":    msg.User,
					"ts":         msg.Timestamp,
					"backfill":   true,
				},
			})
			if err != nil {
				return enqueued, err
			}
			enqueued++
		}

		if !history.HasMore || history.ResponseMetaData.NextCursor == "" {
			return enqueued, nil
		}
		params.Cursor = history.ResponseMetaData.NextCursor
	}
}

// ListChannels returns the channels the bot can read, for the admin surface.
func (c *SlackCollector) ListChannels(ctx context.Context) ([]goslack.Channel, error) {
	var out []goslack.Channel
	params := &goslack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           c.pageSize,
	}
	for {
		channels, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("conversations.list failed: %w", err)
		}
		out = append(out, channels...)
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}
	slog.Debug("Listed Slack channels", "count", len(out))
	return out, nil
}
