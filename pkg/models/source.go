package models

import (
	"time"

	"github.com/paydesk/paydesk/pkg/config"
)

// SourceStatus is the per-source health row maintained by the collectors and
// the ingestion coordinator.
type SourceStatus struct {
	Source            config.Source  `json:"source"`
	Enabled           bool           `json:"enabled"`
	Running           bool           `json:"running"`
	LastEventAt       *time.Time     `json:"last_event_at,omitempty"`
	DocumentsIngested int64          `json:"documents_ingested"`
	Failures          int64          `json:"failures"`
	Detail            map[string]any `json:"detail,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// SlackIngestRequest triggers a historical channel backfill.
type SlackIngestRequest struct {
	ChannelIDs      []string `json:"channel_ids"`
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
	LimitPerChannel int      `json:"limit_per_channel,omitempty"`
}
