package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
)

type memDocPruner struct {
	calls   []config.Source
	cutoffs []time.Time
}

func (m *memDocPruner) DeleteOlderThan(_ context.Context, source config.Source, cutoff time.Time) (int64, error) {
	m.calls = append(m.calls, source)
	m.cutoffs = append(m.cutoffs, cutoff)
	return 2, nil
}

type memSessionPruner struct {
	cutoff time.Time
	calls  int
}

func (m *memSessionPruner) DeleteIdleSince(_ context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	m.calls++
	return 1, nil
}

func TestSweep_PrunesAllSourcesAndSessions(t *testing.T) {
	docs := &memDocPruner{}
	sessions := &memSessionPruner{}
	svc := NewService(config.RetentionSettings{DocumentDays: 180, SessionDays: 90}, docs, sessions)

	svc.Sweep(context.Background())

	assert.ElementsMatch(t, config.AllSources(), docs.calls)
	assert.Equal(t, 1, sessions.calls)

	wantDocCutoff := time.Now().AddDate(0, 0, -180)
	require.NotEmpty(t, docs.cutoffs)
	assert.WithinDuration(t, wantDocCutoff, docs.cutoffs[0], time.Minute)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -90), sessions.cutoff, time.Minute)
}

func TestSweep_ZeroWindowsDisablePolicies(t *testing.T) {
	docs := &memDocPruner{}
	sessions := &memSessionPruner{}
	svc := NewService(config.RetentionSettings{}, docs, sessions)

	svc.Sweep(context.Background())

	assert.Empty(t, docs.calls)
	assert.Zero(t, sessions.calls)
}

func TestStartStop(t *testing.T) {
	docs := &memDocPruner{}
	sessions := &memSessionPruner{}
	svc := NewService(config.RetentionSettings{
		DocumentDays:  30,
		SessionDays:   30,
		SweepInterval: time.Hour,
	}, docs, sessions)

	svc.Start(context.Background())
	svc.Stop()

	// The initial sweep runs before the first tick.
	assert.NotEmpty(t, docs.calls)
	assert.Equal(t, 1, sessions.calls)
}

func TestNewService_DefaultsInterval(t *testing.T) {
	svc := NewService(config.RetentionSettings{}, &memDocPruner{}, &memSessionPruner{})
	assert.Equal(t, defaultSweepInterval, svc.settings.SweepInterval)
}
