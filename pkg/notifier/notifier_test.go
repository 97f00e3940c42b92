package notifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paydesk/paydesk/pkg/config"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	assert.Nil(t, New(config.NotifierSettings{Enabled: false}, config.EnvironmentProduction))
	assert.Nil(t, New(config.NotifierSettings{Enabled: true}, config.EnvironmentProduction),
		"missing token/channel disables the notifier")
}

func TestNotify_NilReceiverIsSafe(t *testing.T) {
	var n *Notifier
	n.Notify(Event{Kind: "panic", Message: "boom"})
	n.Stop()
}

func TestBuildBlocks(t *testing.T) {
	blocks := buildBlocks(Event{
		Kind:      "http_500",
		Message:   "database unreachable",
		Stack:     "goroutine 1 [running]:\nmain.main()",
		Method:    "POST",
		Path:      "/api/v1/chat",
		UserID:    "u1",
		SessionID: "s1",
	}, config.EnvironmentProduction)

	// header, message, context fields, stack
	assert.Len(t, blocks, 4)
}

func TestBuildBlocks_MinimalEvent(t *testing.T) {
	blocks := buildBlocks(Event{Kind: "ingestion_failure", Message: "chunking failed"}, config.EnvironmentDevelopment)
	assert.Len(t, blocks, 2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	got := truncate(strings.Repeat("a", 300), 100)
	assert.Len(t, []rune(got), 101)
	assert.True(t, strings.HasSuffix(got, "…"))
}
