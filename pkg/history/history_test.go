package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

func msg(role models.MessageRole, content string) *models.ChatMessage {
	return &models.ChatMessage{Role: role, Content: content}
}

func TestWindow_Empty(t *testing.T) {
	assert.Empty(t, Window(nil, 0, 0))
}

func TestWindow_KeepsNewestWithinMessageLimit(t *testing.T) {
	var msgs []*models.ChatMessage
	for i := 0; i < 30; i++ {
		msgs = append(msgs, msg(models.MessageRoleUser, fmt.Sprintf("turn %d", i)))
	}
	w := Window(msgs, 20, 0)
	require.Len(t, w, 20)
	assert.Equal(t, "turn 10", w[0].Content)
	assert.Equal(t, "turn 29", w[len(w)-1].Content)
}

func TestWindow_ChronologicalOrder(t *testing.T) {
	msgs := []*models.ChatMessage{
		msg(models.MessageRoleUser, "first"),
		msg(models.MessageRoleAssistant, "second"),
		msg(models.MessageRoleUser, "third"),
	}
	w := Window(msgs, 0, 0)
	require.Len(t, w, 3)
	assert.Equal(t, llm.RoleUser, w[0].Role)
	assert.Equal(t, "first", w[0].Content)
	assert.Equal(t, "third", w[2].Content)
}

func TestWindow_ExcludesSystemMessages(t *testing.T) {
	msgs := []*models.ChatMessage{
		msg(models.MessageRoleSystem, "injected"),
		msg(models.MessageRoleUser, "question"),
	}
	w := Window(msgs, 0, 0)
	require.Len(t, w, 1)
	assert.Equal(t, "question", w[0].Content)
}

func TestWindow_TokenBudgetCutsOldTurns(t *testing.T) {
	big := strings.Repeat("a", 4000) // ~1000 tokens
	msgs := []*models.ChatMessage{
		msg(models.MessageRoleUser, big),
		msg(models.MessageRoleAssistant, big),
		msg(models.MessageRoleUser, big),
	}
	w := Window(msgs, 20, 2100)
	require.Len(t, w, 2)
	assert.Equal(t, llm.RoleAssistant, w[0].Role)
}

func TestWindow_AlwaysKeepsNewestMessage(t *testing.T) {
	huge := strings.Repeat("b", 100000)
	msgs := []*models.ChatMessage{msg(models.MessageRoleUser, huge)}
	w := Window(msgs, 20, 4000)
	require.Len(t, w, 1, "newest message is kept even when over budget")
}
