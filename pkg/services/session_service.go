package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/models"
)

const (
	sessionTitleMax    = 50
	lastMessagePreview = 100
)

// SessionService owns chat sessions and their messages. Writes to one session
// are serialized in-process; every read and write checks ownership.
type SessionService struct {
	db *database.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionService creates the session service.
func NewSessionService(db *database.Client) *SessionService {
	return &SessionService{db: db, locks: make(map[string]*sync.Mutex)}
}

// sessionLock returns the per-session mutex, creating it on first use.
func (s *SessionService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// AppendMessage stores one message in the session, creating the session
// lazily on first use, and refreshes the session's denormalized metadata.
// Concurrent appends to the same session are serialized.
func (s *SessionService) AppendMessage(ctx context.Context, userID string, req *models.CreateMessageRequest) (*models.ChatMessage, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown message role %q", ErrInvalidInput, req.Role)
	}

	l := s.sessionLock(req.SessionID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var owner string
	err = tx.QueryRow(ctx, `SELECT user_id FROM chat_sessions WHERE id = $1`, req.SessionID).Scan(&owner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		title := truncateRunes(strings.TrimSpace(req.Content), sessionTitleMax)
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())`, req.SessionID, userID, title)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	case owner != userID:
		return nil, fmt.Errorf("session %s: %w", req.SessionID, ErrForbidden)
	}

	msg := &models.ChatMessage{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		Role:       req.Role,
		Content:    req.Content,
		Confidence: req.Confidence,
		Escalated:  req.Escalated,
		Metadata:   req.Metadata,
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, confidence, escalated, msg_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Confidence, msg.Escalated, msg.Metadata).
		Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE chat_sessions
		SET last_message = $2, message_count = message_count + 1, updated_at = now()
		WHERE id = $1`,
		req.SessionID, truncateRunes(strings.TrimSpace(req.Content), lastMessagePreview))
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

// GetSession fetches one session, enforcing ownership.
func (s *SessionService) GetSession(ctx context.Context, sessionID, userID string) (*models.ChatSession, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT id, user_id, title, last_message, message_count, created_at, updated_at
		FROM chat_sessions WHERE id = $1`, sessionID)

	var cs models.ChatSession
	err := row.Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.LastMessage, &cs.MessageCount,
		&cs.CreatedAt, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if cs.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrForbidden)
	}
	return &cs, nil
}

// GetMessages returns the session's messages oldest first, enforcing
// ownership.
func (s *SessionService) GetMessages(ctx context.Context, sessionID, userID string) ([]*models.ChatMessage, error) {
	if _, err := s.GetSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, session_id, role, content, confidence, escalated, msg_metadata, created_at
		FROM chat_messages WHERE session_id = $1
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Confidence,
			&m.Escalated, &m.Metadata, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return out, nil
}

// ListSessions pages the user's sessions, most recently active first.
func (s *SessionService) ListSessions(ctx context.Context, userID string, page, pageSize int) (*models.SessionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	err := s.db.Pool().QueryRow(ctx,
		`SELECT count(*) FROM chat_sessions WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, user_id, title, last_message, message_count, created_at, updated_at
		FROM chat_sessions WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.ChatSession, 0, pageSize)
	for rows.Next() {
		var cs models.ChatSession
		err := rows.Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.LastMessage, &cs.MessageCount,
			&cs.CreatedAt, &cs.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	return &models.SessionListResponse{
		Sessions:   sessions,
		Pagination: models.NewPagination(total, page, pageSize),
	}, nil
}

// DeleteSession hard-deletes the session and its messages, enforcing
// ownership.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID, userID string) error {
	if _, err := s.GetSession(ctx, sessionID, userID); err != nil {
		return err
	}
	if _, err := s.db.Pool().Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()

	slog.Info("Chat session deleted", "session_id", sessionID, "user_id", userID)
	return nil
}

// DeleteIdleSince removes sessions whose last activity predates the cutoff.
// Messages cascade. Used by the retention sweeper.
func (s *SessionService) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Pool().Exec(ctx,
		`DELETE FROM chat_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// truncateRunes shortens s to at most n runes, appending an ellipsis when
// anything was cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
