package collectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/ingest"
	"github.com/paydesk/paydesk/pkg/notifier"
)

const (
	telegramReconnectMin = time.Second
	telegramReconnectMax = 30 * time.Second
	telegramHistoryPage  = 100
)

// errTelegramAuth marks an unrecoverable session problem. Reconnecting cannot
// fix it; the operator has to export a fresh session.
var errTelegramAuth = errors.New("telegram session is not authorized")

// DialogInfo is one chat the session can read, for the admin surface.
type DialogInfo struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

// TelegramCollector runs a user session over MTProto: it listens for new
// messages in the configured dialogs and supports historical pulls. The
// connection is kept alive with exponential backoff; only an invalid session
// stops it for good.
type TelegramCollector struct {
	cfg    config.TelegramCollectorSettings
	queue  submitter
	alerts *notifier.Notifier

	allowed map[int64]struct{}

	mu    sync.RWMutex
	api   *tg.Client
	peers map[int64]tg.InputPeerClass
	names map[int64]string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTelegramCollector(cfg config.TelegramCollectorSettings, queue submitter, alerts *notifier.Notifier) *TelegramCollector {
	allowed := make(map[int64]struct{}, len(cfg.Dialogs))
	for _, id := range cfg.Dialogs {
		allowed[id] = struct{}{}
	}
	return &TelegramCollector{
		cfg:     cfg,
		queue:   queue,
		alerts:  alerts,
		allowed: allowed,
		peers:   make(map[int64]tg.InputPeerClass),
		names:   make(map[int64]string),
		done:    make(chan struct{}),
	}
}

// Start launches the connection loop in the background.
func (c *TelegramCollector) Start(ctx context.Context) error {
	if c.cfg.SessionToken == "" {
		return fmt.Errorf("no session token configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.loop(runCtx)
	return nil
}

// Stop tears down the connection and waits for the loop to exit.
func (c *TelegramCollector) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram collector shutdown interrupted: %w", ctx.Err())
	}
}

// Running reports whether a live API connection is up.
func (c *TelegramCollector) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api != nil
}

// loop reconnects with exponential backoff. An authorization failure is
// terminal: it is alerted and the loop exits.
func (c *TelegramCollector) loop(ctx context.Context) {
	defer close(c.done)

	backoff := telegramReconnectMin
	for {
		started := time.Now()
		err := c.run(ctx)
		c.setAPI(nil)

		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errTelegramAuth) {
			slog.Error("Telegram session rejected, collector stopped", "error", err)
			c.alerts.Notify(notifier.Event{
				Kind:    "telegram_auth",
				Message: "Telegram session is no longer authorized; export a new session and restart the collector.",
			})
			return
		}

		if time.Since(started) > time.Minute {
			backoff = telegramReconnectMin
		}
		slog.Warn("Telegram connection lost, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > telegramReconnectMax {
			backoff = telegramReconnectMax
		}
	}
}

// run holds one client connection open until it fails or the context ends.
func (c *TelegramCollector) run(ctx context.Context) error {
	storage, err := telethonStorage(ctx, c.cfg.SessionToken)
	if err != nil {
		return fmt.Errorf("%w: %v", errTelegramAuth, err)
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		c.rememberEntities(e)
		return c.handleUpdate(u.Message)
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		c.rememberEntities(e)
		return c.handleUpdate(u.Message)
	})

	client := telegram.NewClient(c.cfg.AppID, c.cfg.AppHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status check failed: %w", err)
		}
		if !status.Authorized {
			return errTelegramAuth
		}

		c.setAPI(client.API())
		if _, err := c.refreshDialogs(ctx); err != nil {
			slog.Warn("Failed to load Telegram dialogs", "error", err)
		}
		slog.Info("Telegram collector connected", "dialog_filter", len(c.allowed))

		<-ctx.Done()
		return ctx.Err()
	})
}

// telethonStorage seeds an in-memory session store from an exported string
// session.
func telethonStorage(ctx context.Context, token string) (session.Storage, error) {
	data, err := session.TelethonSession(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	storage := new(session.StorageMemory)
	loader := session.Loader{Storage: storage}
	if err := loader.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to seed session storage: %w", err)
	}
	return storage, nil
}

func (c *TelegramCollector) setAPI(api *tg.Client) {
	c.mu.Lock()
	c.api = api
	c.mu.Unlock()
}

func (c *TelegramCollector) client() (*tg.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.api == nil {
		return nil, fmt.Errorf("telegram collector is not connected")
	}
	return c.api, nil
}

// handleUpdate enqueues one live message if it passes the dialog filter.
func (c *TelegramCollector) handleUpdate(msgClass tg.MessageClass) error {
	msg, ok := msgClass.(*tg.Message)
	if !ok || msg.Out || msg.Message == "" {
		return nil
	}
	chatID := peerID(msg.PeerID)
	if !c.dialogAllowed(chatID) {
		return nil
	}
	if err := c.submitMessage(chatID, msg, false); err != nil {
		slog.Warn("Failed to enqueue Telegram message",
			"chat_id", chatID, "message_id", msg.ID, "error", err)
	}
	return nil
}

func (c *TelegramCollector) submitMessage(chatID int64, msg *tg.Message, backfill bool) error {
	c.mu.RLock()
	title := c.names[chatID]
	c.mu.RUnlock()
	if title == "" {
		title = fmt.Sprintf("Telegram chat %d", chatID)
	}

	return c.queue.Submit(ingest.Item{
		Source:   config.SourceTelegram,
		SourceID: fmt.Sprintf("%d_%d", chatID, msg.ID),
		Title:    "Telegram message in " + title,
		Content:  msg.Message,
		Metadata: map[string]any{
			"chat_id":    chatID,
			"message_id": msg.ID,
			"date":       msg.Date,
			"backfill":   backfill,
		},
	})
}

func (c *TelegramCollector) dialogAllowed(chatID int64) bool {
	if len(c.allowed) == 0 {
		return true
	}
	_, ok := c.allowed[chatID]
	return ok
}

// ListDialogs returns the chats the session can read and refreshes the peer
// cache as a side effect.
func (c *TelegramCollector) ListDialogs(ctx context.Context) ([]DialogInfo, error) {
	return c.refreshDialogs(ctx)
}

func (c *TelegramCollector) refreshDialogs(ctx context.Context) ([]DialogInfo, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}

	dialogs, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      telegramHistoryPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dialogs: %w", err)
	}

	var chats []tg.ChatClass
	var users []tg.UserClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats, users = d.Chats, d.Users
	case *tg.MessagesDialogsSlice:
		chats, users = d.Chats, d.Users
	default:
		return nil, fmt.Errorf("unexpected dialogs response %T", dialogs)
	}

	var out []DialogInfo
	c.mu.Lock()
	for _, chat := range chats {
		switch v := chat.(type) {
		case *tg.Chat:
			c.peers[v.ID] = &tg.InputPeerChat{ChatID: v.ID}
			c.names[v.ID] = v.Title
			out = append(out, DialogInfo{ID: v.ID, Title: v.Title, Kind: "group"})
		case *tg.Channel:
			c.peers[v.ID] = &tg.InputPeerChannel{ChannelID: v.ID, AccessHash: v.AccessHash}
			c.names[v.ID] = v.Title
			out = append(out, DialogInfo{ID: v.ID, Title: v.Title, Kind: "channel"})
		}
	}
	for _, user := range users {
		if v, ok := user.(*tg.User); ok {
			c.peers[v.ID] = &tg.InputPeerUser{UserID: v.ID, AccessHash: v.AccessHash}
			c.names[v.ID] = v.FirstName
			out = append(out, DialogInfo{ID: v.ID, Title: v.FirstName, Kind: "user"})
		}
	}
	c.mu.Unlock()
	return out, nil
}

// rememberEntities caches peer titles arriving with updates.
func (c *TelegramCollector) rememberEntities(e tg.Entities) {
	c.mu.Lock()
	for id, chat := range e.Chats {
		c.peers[id] = &tg.InputPeerChat{ChatID: id}
		c.names[id] = chat.Title
	}
	for id, ch := range e.Channels {
		c.peers[id] = &tg.InputPeerChannel{ChannelID: id, AccessHash: ch.AccessHash}
		c.names[id] = ch.Title
	}
	for id, user := range e.Users {
		c.peers[id] = &tg.InputPeerUser{UserID: id, AccessHash: user.AccessHash}
		c.names[id] = user.FirstName
	}
	c.mu.Unlock()
}

// FetchHistorical pulls up to limit messages from one chat, newest first,
// bounded by an optional date window. Returns the number enqueued.
func (c *TelegramCollector) FetchHistorical(ctx context.Context, chatID int64, start, end time.Time, limit int) (int, error) {
	api, err := c.client()
	if err != nil {
		return 0, err
	}
	if limit < 1 {
		limit = 1000
	}

	peer, err := c.resolvePeer(ctx, chatID)
	if err != nil {
		return 0, err
	}

	req := &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: telegramHistoryPage,
	}
	if !end.IsZero() {
		req.OffsetDate = int(end.Unix())
	}

	enqueued := 0
	for enqueued < limit {
		history, err := api.MessagesGetHistory(ctx, req)
		if err != nil {
			return enqueued, fmt.Errorf("history fetch for chat %d failed: %w", chatID, err)
		}

		messages := historyMessages(history)
		if len(messages) == 0 {
			return enqueued, nil
		}

		for _, msgClass := range messages {
			msg, ok := msgClass.(*tg.Message)
			if !ok {
				continue
			}
			req.OffsetID = msg.ID
			if !start.IsZero() && int64(msg.Date) < start.Unix() {
				return enqueued, nil
			}
			if msg.Message == "" {
				continue
			}
			if err := c.submitMessage(chatID, msg, true); err != nil {
				return enqueued, err
			}
			enqueued++
			if enqueued >= limit {
				return enqueued, nil
			}
		}
	}
	return enqueued, nil
}

func historyMessages(history tg.MessagesMessagesClass) []tg.MessageClass {
	switch h := history.(type) {
	case *tg.MessagesMessages:
		return h.Messages
	case *tg.MessagesMessagesSlice:
		return h.Messages
	case *tg.MessagesChannelMessages:
		return h.Messages
	default:
		return nil
	}
}

// resolvePeer looks the chat up in the cache, refreshing dialogs once on miss.
func (c *TelegramCollector) resolvePeer(ctx context.Context, chatID int64) (tg.InputPeerClass, error) {
	c.mu.RLock()
	peer, ok := c.peers[chatID]
	c.mu.RUnlock()
	if ok {
		return peer, nil
	}

	if _, err := c.refreshDialogs(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	peer, ok = c.peers[chatID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chat %d not found in the session's dialogs", chatID)
	}
	return peer, nil
}

func peerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}
