package services

import (
	"context"
	"fmt"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/models"
)

// SourceService maintains the per-source health rows shown on the admin
// surface. Counter updates are fire-and-forget upserts; a missing row is
// created on first touch.
type SourceService struct {
	db *database.Client
}

// NewSourceService creates the source status service.
func NewSourceService(db *database.Client) *SourceService {
	return &SourceService{db: db}
}

// SetState records whether the source is enabled and currently running.
func (s *SourceService) SetState(ctx context.Context, source config.Source, enabled, running bool) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO source_status (source, enabled, running, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (source) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			running = EXCLUDED.running,
			updated_at = now()`, source, enabled, running)
	if err != nil {
		return fmt.Errorf("failed to update source state: %w", err)
	}
	return nil
}

// RecordIngested bumps the ingested-document counter and the last-event
// timestamp.
func (s *SourceService) RecordIngested(ctx context.Context, source config.Source, n int64) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO source_status (source, documents_ingested, last_event_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (source) DO UPDATE SET
			documents_ingested = source_status.documents_ingested + EXCLUDED.documents_ingested,
			last_event_at = now(),
			updated_at = now()`, source, n)
	if err != nil {
		return fmt.Errorf("failed to record ingested documents: %w", err)
	}
	return nil
}

// RecordFailure bumps the failure counter and stores the latest error detail.
func (s *SourceService) RecordFailure(ctx context.Context, source config.Source, reason string) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO source_status (source, failures, detail, updated_at)
		VALUES ($1, 1, jsonb_build_object('last_error', $2::text), now())
		ON CONFLICT (source) DO UPDATE SET
			failures = source_status.failures + 1,
			detail = source_status.detail || jsonb_build_object('last_error', $2::text),
			updated_at = now()`, source, reason)
	if err != nil {
		return fmt.Errorf("failed to record source failure: %w", err)
	}
	return nil
}

// List returns the status rows for all known sources.
func (s *SourceService) List(ctx context.Context) ([]*models.SourceStatus, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT source, enabled, running, last_event_at, documents_ingested, failures, detail, updated_at
		FROM source_status ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list source status: %w", err)
	}
	defer rows.Close()

	var out []*models.SourceStatus
	for rows.Next() {
		var st models.SourceStatus
		err := rows.Scan(&st.Source, &st.Enabled, &st.Running, &st.LastEventAt,
			&st.DocumentsIngested, &st.Failures, &st.Detail, &st.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source status: %w", err)
		}
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source status: %w", err)
	}
	return out, nil
}
