package collectors

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/ingest"
)

// whatsappPayload mirrors the Business Cloud API webhook envelope, reduced to
// the fields the collector reads.
type whatsappPayload struct {
	Entry []struct {
		ID      string `json:"id"`
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WhatsAppCollector verifies signed Business API webhooks and enqueues text
// messages. Non-text message types (media, reactions) are skipped.
type WhatsAppCollector struct {
	signingSecret string
	queue         submitter
}

func NewWhatsAppCollector(cfg config.WhatsAppCollectorSettings, queue submitter) *WhatsAppCollector {
	return &WhatsAppCollector{signingSecret: cfg.SigningSecret, queue: queue}
}

// HandleWebhook verifies and enqueues one webhook delivery. Returns the
// number of messages enqueued.
func (c *WhatsAppCollector) HandleWebhook(timestamp, signature string, body []byte) (int, error) {
	if err := VerifySignature(c.signingSecret, timestamp, signature, body); err != nil {
		return 0, err
	}

	var payload whatsappPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	enqueued := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || strings.TrimSpace(msg.Text.Body) == "" {
					continue
				}
				err := c.queue.Submit(ingest.Item{
					Source:   config.SourceWhatsApp,
					SourceID: msg.ID,
					Title:    "WhatsApp message from " + msg.From,
					Content:  msg.Text.Body,
					Metadata: map[string]any{
						"from":            msg.From,
						"sender_name":     names[msg.From],
						"timestamp":       msg.Timestamp,
						"phone_number_id": change.Value.Metadata.PhoneNumberID,
					},
				})
				if err != nil {
					return enqueued, err
				}
				enqueued++
			}
		}
	}
	return enqueued, nil
}
