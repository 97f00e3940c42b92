// Package notifier delivers out-of-band error alerts to a Slack channel.
// Alerting is strictly best-effort: Notify never blocks and delivery failure
// is logged, never propagated.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/paydesk/paydesk/pkg/config"
)

const (
	maxMessageChars = 1500
	maxStackChars   = 2000
	postTimeout     = 10 * time.Second
	defaultQueue    = 64
)

// Event is one alert.
type Event struct {
	Kind    string // e.g. "panic", "http_500", "ingestion_failure", "telegram_auth"
	Message string
	Stack   string

	// Optional request context.
	Method    string
	Path      string
	UserID    string
	SessionID string
}

// Notifier posts alerts through a buffered channel so callers never wait on
// Slack. A nil Notifier is valid and silently discards events, which is how
// an unconfigured deployment runs.
type Notifier struct {
	api         *goslack.Client
	channel     string
	environment config.Environment

	events chan Event
	done   chan struct{}
}

// New creates and starts the notifier. Returns nil when disabled or missing
// credentials; all call sites tolerate a nil receiver.
func New(cfg config.NotifierSettings, env config.Environment) *Notifier {
	if !cfg.Enabled || cfg.Token == "" || cfg.Channel == "" {
		slog.Info("Error notifier disabled")
		return nil
	}
	queue := cfg.QueueSize
	if queue < 1 {
		queue = defaultQueue
	}

	n := &Notifier{
		api:         goslack.New(cfg.Token),
		channel:     cfg.Channel,
		environment: env,
		events:      make(chan Event, queue),
		done:        make(chan struct{}),
	}
	go n.dispatch()
	slog.Info("Error notifier started", "channel", cfg.Channel, "queue_size", queue)
	return n
}

// Notify enqueues an alert. When the queue is full the event is dropped with
// a warning; alerting must never create back-pressure.
func (n *Notifier) Notify(ev Event) {
	if n == nil {
		return
	}
	select {
	case n.events <- ev:
	default:
		slog.Warn("Alert queue full, dropping event", "kind", ev.Kind)
	}
}

// Stop drains pending alerts and stops the dispatcher.
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	close(n.events)
	<-n.done
}

func (n *Notifier) dispatch() {
	defer close(n.done)
	for ev := range n.events {
		n.post(ev)
	}
}

func (n *Notifier) post(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		goslack.MsgOptionBlocks(buildBlocks(ev, n.environment)...))
	if err != nil {
		slog.Warn("Failed to deliver alert", "kind", ev.Kind, "error", err)
	}
}

// buildBlocks renders the alert as Block Kit: a header, the error, request
// context fields, and the truncated stack.
func buildBlocks(ev Event, env config.Environment) []goslack.Block {
	header := fmt.Sprintf(":rotating_light: *%s* in `%s` at %s",
		ev.Kind, env, time.Now().UTC().Format(time.RFC3339))

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncate(ev.Message, maxMessageChars), false, false),
			nil, nil,
		),
	}

	var fields []*goslack.TextBlockObject
	if ev.Method != "" || ev.Path != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("*Request:*\n%s %s", ev.Method, ev.Path), false, false))
	}
	if ev.UserID != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType,
			"*User:*\n"+ev.UserID, false, false))
	}
	if ev.SessionID != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType,
			"*Session:*\n"+ev.SessionID, false, false))
	}
	if len(fields) > 0 {
		blocks = append(blocks, goslack.NewSectionBlock(nil, fields, nil))
	}

	if ev.Stack != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType,
				"```"+truncate(ev.Stack, maxStackChars)+"```", false, false),
			nil, nil,
		))
	}
	return blocks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}
