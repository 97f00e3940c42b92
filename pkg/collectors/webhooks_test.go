package collectors

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/ingest"
)

type memQueue struct {
	items  []ingest.Item
	reject error
}

func (q *memQueue) Submit(item ingest.Item) error {
	if q.reject != nil {
		return q.reject
	}
	q.items = append(q.items, item)
	return nil
}

func signedHeaders(secret string, body []byte) (timestamp, signature string) {
	timestamp = strconv.FormatInt(time.Now().Unix(), 10)
	return timestamp, ComputeSignature(secret, timestamp, body)
}

func TestSlackHandleWebhook_URLVerification(t *testing.T) {
	queue := &memQueue{}
	c := NewSlackCollector(config.SlackCollectorSettings{SigningSecret: "s"}, queue)

	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)
	ts, sig := signedHeaders("s", body)

	challenge, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Equal(t, "abc123", challenge)
	assert.Empty(t, queue.items)
}

func TestSlackHandleWebhook_MessageEvent(t *testing.T) {
	queue := &memQueue{}
	c := NewSlackCollector(config.SlackCollectorSettings{SigningSecret: "s"}, queue)

	body := []byte(`{
		"type": "event_callback",
		"event": {
			"type": "message",
			"channel": "C024BE91L",
			"user": "U2147483697",
			"text": "Chargebacks settle on T+2.",
			"ts": "1700000000.000100"
		}
	}`)
	ts, sig := signedHeaders("s", body)

	challenge, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Empty(t, challenge)

	require.Len(t, queue.items, 1)
	item := queue.items[0]
	assert.Equal(t, config.SourceSlack, item.Source)
	assert.Equal(t, "C024BE91L_1700000000.000100", item.SourceID)
	assert.Equal(t, "Chargebacks settle on T+2.", item.Content)
	assert.Equal(t, "C024BE91L", item.Metadata["channel_id"])
}

func TestSlackHandleWebhook_BotMessagesDropped(t *testing.T) {
	queue := &memQueue{}
	c := NewSlackCollector(config.SlackCollectorSettings{SigningSecret: "s"}, queue)

	body := []byte(`{
		"type": "event_callback",
		"event": {
			"type": "message",
			"channel": "C024BE91L",
			"bot_id": "B01",
			"text": "automated reply",
			"ts": "1700000000.000200"
		}
	}`)
	ts, sig := signedHeaders("s", body)

	_, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Empty(t, queue.items)
}

func TestSlackHandleWebhook_BadSignature(t *testing.T) {
	c := NewSlackCollector(config.SlackCollectorSettings{SigningSecret: "s"}, &memQueue{})

	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	_, err := c.HandleWebhook(ts, "v0=deadbeef", body)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func whatsappBody(messages string) []byte {
	return []byte(fmt.Sprintf(`{
		"entry": [{
			"id": "ENTRY1",
			"changes": [{
				"value": {
					"metadata": {"phone_number_id": "15550001111"},
					"contacts": [{"wa_id": "15551234567", "profile": {"name": "Priya"}}],
					"messages": [%s]
				}
			}]
		}]
	}`, messages))
}

func TestWhatsAppHandleWebhook_TextMessage(t *testing.T) {
	queue := &memQueue{}
	c := NewWhatsAppCollector(config.WhatsAppCollectorSettings{SigningSecret: "s"}, queue)

	body := whatsappBody(`{
		"id": "wamid.HBgL",
		"from": "15551234567",
		"timestamp": "1700000000",
		"type": "text",
		"text": {"body": "Refund window is 90 days."}
	}`)
	ts, sig := signedHeaders("s", body)

	n, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, queue.items, 1)
	item := queue.items[0]
	assert.Equal(t, config.SourceWhatsApp, item.Source)
	assert.Equal(t, "wamid.HBgL", item.SourceID)
	assert.Equal(t, "Refund window is 90 days.", item.Content)
	assert.Equal(t, "Priya", item.Metadata["sender_name"])
}

func TestWhatsAppHandleWebhook_NonTextSkipped(t *testing.T) {
	queue := &memQueue{}
	c := NewWhatsAppCollector(config.WhatsAppCollectorSettings{SigningSecret: "s"}, queue)

	body := whatsappBody(`{
		"id": "wamid.IMG",
		"from": "15551234567",
		"timestamp": "1700000000",
		"type": "image"
	}`)
	ts, sig := signedHeaders("s", body)

	n, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, queue.items)
}

func TestWhatsAppHandleWebhook_BadSignature(t *testing.T) {
	c := NewWhatsAppCollector(config.WhatsAppCollectorSettings{SigningSecret: "s"}, &memQueue{})
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	_, err := c.HandleWebhook(ts, "v0=00", whatsappBody(`{}`))
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestTelegramWebhook_TextMessage(t *testing.T) {
	queue := &memQueue{}
	c := NewTelegramWebhook(config.TelegramCollectorSettings{SigningSecret: "s"}, queue)

	body := []byte(`{
		"update_id": 10001,
		"message": {
			"message_id": 42,
			"date": 1700000000,
			"chat": {"id": -100123, "title": "Payments Ops", "type": "supergroup"},
			"from": {"id": 7, "username": "priya_ops", "first_name": "Priya"},
			"text": "Acquirer maintenance window starts at 02:00 UTC."
		}
	}`)
	ts, sig := signedHeaders("s", body)

	n, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, queue.items, 1)
	item := queue.items[0]
	assert.Equal(t, config.SourceTelegram, item.Source)
	assert.Equal(t, "-100123_42", item.SourceID)
	assert.Equal(t, "Payments Ops", item.Title)
	assert.Equal(t, "priya_ops", item.Metadata["sender_name"])
}

func TestTelegramWebhook_NoTextIgnored(t *testing.T) {
	queue := &memQueue{}
	c := NewTelegramWebhook(config.TelegramCollectorSettings{SigningSecret: "s"}, queue)

	body := []byte(`{"update_id": 10002, "message": {"message_id": 43, "chat": {"id": 1}, "text": "  "}}`)
	ts, sig := signedHeaders("s", body)

	n, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, queue.items)
}

func TestTelegramWebhook_ChannelPost(t *testing.T) {
	queue := &memQueue{}
	c := NewTelegramWebhook(config.TelegramCollectorSettings{SigningSecret: "s"}, queue)

	body := []byte(`{
		"update_id": 10003,
		"channel_post": {
			"message_id": 9,
			"date": 1700000100,
			"chat": {"id": -100456, "title": "Ops Announcements", "type": "channel"},
			"text": "New refund SLA is 5 business days."
		}
	}`)
	ts, sig := signedHeaders("s", body)

	n, err := c.HandleWebhook(ts, sig, body)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, queue.items, 1)
	assert.Equal(t, "-100456_9", queue.items[0].SourceID)
}
