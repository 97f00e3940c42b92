// Package history computes the conversation window sent to the model:
// the most recent user and assistant turns, bounded by a message count and
// an approximate token budget.
package history

import (
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

// Window defaults. Tokens are approximated as bytes/4 so the bound is cheap
// and model-agnostic.
const (
	DefaultMaxMessages = 20
	DefaultMaxTokens   = 4000
)

// approxTokens estimates the token cost of a message's content.
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// Window selects the newest user/assistant messages that fit within both
// limits, returned oldest first. System messages and other roles are
// excluded. A non-positive limit uses the default.
func Window(messages []*models.ChatMessage, maxMessages, maxTokens int) []llm.Message {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var picked []llm.Message
	tokens := 0
	for i := len(messages) - 1; i >= 0 && len(picked) < maxMessages; i-- {
		m := messages[i]
		var role llm.Role
		switch m.Role {
		case models.MessageRoleUser:
			role = llm.RoleUser
		case models.MessageRoleAssistant:
			role = llm.RoleAssistant
		default:
			continue
		}
		cost := approxTokens(m.Content)
		if tokens+cost > maxTokens && len(picked) > 0 {
			break
		}
		tokens += cost
		picked = append(picked, llm.Message{Role: role, Content: m.Content})
	}

	// picked is newest first; reverse into chronological order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}
