// Package cleanup enforces data retention in the background.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/paydesk/paydesk/pkg/config"
)

// defaultSweepInterval applies when the settings leave the interval unset.
const defaultSweepInterval = 6 * time.Hour

// documentPruner deletes ingested documents older than the cutoff.
type documentPruner interface {
	DeleteOlderThan(ctx context.Context, source config.Source, cutoff time.Time) (int64, error)
}

// sessionPruner deletes chat sessions idle since the cutoff.
type sessionPruner interface {
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically enforces retention policies:
//   - Deletes ingested documents older than the document window, per source
//   - Deletes chat sessions with no activity inside the session window
//
// A zero-day window disables that policy. All operations are idempotent and
// safe to run from multiple replicas.
type Service struct {
	settings  config.RetentionSettings
	documents documentPruner
	sessions  sessionPruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new retention service.
func NewService(settings config.RetentionSettings, documents documentPruner, sessions sessionPruner) *Service {
	if settings.SweepInterval <= 0 {
		settings.SweepInterval = defaultSweepInterval
	}
	return &Service{
		settings:  settings,
		documents: documents,
		sessions:  sessions,
	}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Retention service started",
		"document_days", s.settings.DocumentDays,
		"session_days", s.settings.SessionDays,
		"interval", s.settings.SweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass. Exported so an operator endpoint can trigger
// it on demand.
func (s *Service) Sweep(ctx context.Context) {
	s.pruneDocuments(ctx)
	s.pruneSessions(ctx)
}

func (s *Service) pruneDocuments(ctx context.Context) {
	if s.settings.DocumentDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.settings.DocumentDays)
	for _, src := range config.AllSources() {
		count, err := s.documents.DeleteOlderThan(ctx, src, cutoff)
		if err != nil {
			slog.Error("Retention: document prune failed", "source", src, "error", err)
			continue
		}
		if count > 0 {
			slog.Info("Retention: pruned documents", "source", src, "count", count)
		}
	}
}

func (s *Service) pruneSessions(ctx context.Context) {
	if s.settings.SessionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.settings.SessionDays)
	count, err := s.sessions.DeleteIdleSince(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: session prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned idle sessions", "count", count)
	}
}
