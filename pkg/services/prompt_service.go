package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/models"
)

// promptCacheTTL bounds staleness of cached active prompt versions.
const promptCacheTTL = 5 * time.Second

// placeholderPattern matches {name} template slots. Double braces escape a
// literal brace: "{{" renders as "{" and "}}" as "}".
var placeholderPattern = regexp.MustCompile(`\{\{|\}\}|\{([a-zA-Z0-9_]+)\}`)

// PromptService manages versioned prompts. Rendering never fails a chat
// turn: any store or template problem falls back to the caller's compiled-in
// prompt text.
type PromptService struct {
	db *database.Client

	mu      sync.RWMutex
	cached  map[string]*models.Prompt
	fetched map[string]time.Time
}

// NewPromptService creates the prompt service.
func NewPromptService(db *database.Client) *PromptService {
	return &PromptService{
		db:      db,
		cached:  make(map[string]*models.Prompt),
		fetched: make(map[string]time.Time),
	}
}

// GetActivePrompt returns the active version of the named prompt, cached with
// a short TTL.
func (s *PromptService) GetActivePrompt(ctx context.Context, name string, promptType config.PromptType) (*models.Prompt, error) {
	key := name + "/" + string(promptType)

	s.mu.RLock()
	if p, ok := s.cached[key]; ok && time.Since(s.fetched[key]) < promptCacheTTL {
		s.mu.RUnlock()
		return p, nil
	}
	s.mu.RUnlock()

	row := s.db.Pool().QueryRow(ctx, `
		SELECT `+promptColumns+`
		FROM prompts WHERE name = $1 AND prompt_type = $2 AND active`, name, promptType)
	p, err := scanPrompt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("active prompt %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active prompt: %w", err)
	}

	s.mu.Lock()
	s.cached[key] = p
	s.fetched[key] = time.Now()
	s.mu.Unlock()
	return p, nil
}

// FormatPrompt renders the active version of the named prompt with the given
// variables. If the prompt is missing, the store is down, or the template
// references a variable not supplied, the fallback text is rendered instead
// and the returned version is nil. Usage accounting is best-effort.
func (s *PromptService) FormatPrompt(ctx context.Context, name string, promptType config.PromptType, vars map[string]string, fallback string) (string, *int) {
	p, err := s.GetActivePrompt(ctx, name, promptType)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Prompt store unavailable, using fallback",
				"prompt", name, "type", promptType, "error", err)
		}
		return substitute(fallback, vars), nil
	}

	rendered, err := render(p.Content, vars)
	if err != nil {
		slog.Warn("Prompt template incomplete, using fallback",
			"prompt", name, "type", promptType, "version", p.Version, "error", err)
		return substitute(fallback, vars), nil
	}

	s.recordUsage(ctx, p.ID)
	version := p.Version
	return rendered, &version
}

// recordUsage bumps usage_count and last_used_at. Failures are logged only;
// accounting never affects chat.
func (s *PromptService) recordUsage(ctx context.Context, id string) {
	_, err := s.db.Pool().Exec(ctx, `
		UPDATE prompts SET usage_count = usage_count + 1, last_used_at = now()
		WHERE id = $1`, id)
	if err != nil {
		slog.Debug("Failed to record prompt usage", "prompt_id", id, "error", err)
	}
}

// render substitutes {name} placeholders, failing when a referenced variable
// is absent so the caller can fall back.
func render(template string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		key := m[1 : len(m)-1]
		v, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template references undefined variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// substitute is render without the failure mode: unknown placeholders are
// left verbatim. Used for the compiled-in fallbacks, which are trusted.
func substitute(template string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// CreatePromptVersion stores the next version of a named prompt and
// optionally activates it in the same transaction.
func (s *PromptService) CreatePromptVersion(ctx context.Context, req *models.CreatePromptVersionRequest, createdBy string) (*models.Prompt, error) {
	if req.Name == "" || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: prompt name and content are required", ErrInvalidInput)
	}
	if !req.PromptType.IsValid() {
		return nil, fmt.Errorf("%w: unknown prompt type %q", ErrInvalidInput, req.PromptType)
	}

	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var version int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM prompts
		WHERE name = $1 AND prompt_type = $2`, req.Name, req.PromptType).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate prompt version: %w", err)
	}

	if req.Activate {
		_, err = tx.Exec(ctx, `
			UPDATE prompts SET active = FALSE, updated_at = now()
			WHERE name = $1 AND prompt_type = $2 AND active`, req.Name, req.PromptType)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate prior prompt: %w", err)
		}
	}

	p := &models.Prompt{
		ID:         uuid.NewString(),
		Name:       req.Name,
		PromptType: req.PromptType,
		Version:    version,
		Content:    req.Content,
		Active:     req.Activate,
		Tags:       req.Tags,
		Notes:      req.Notes,
		CreatedBy:  createdBy,
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO prompts (id, name, prompt_type, version, content, active, tags, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.PromptType, p.Version, p.Content, p.Active, p.Tags, p.Notes, p.CreatedBy).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert prompt version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit prompt version: %w", err)
	}

	s.invalidate(p.Name, p.PromptType)
	slog.Info("Prompt version created",
		"prompt", p.Name, "type", p.PromptType, "version", p.Version, "active", p.Active)
	return p, nil
}

// ActivateVersion makes the given prompt version the active one for its
// (name, type) pair. The deactivate/activate pair runs in one transaction so
// readers never see zero or two active versions.
func (s *PromptService) ActivateVersion(ctx context.Context, id string) (*models.Prompt, error) {
	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var name string
	var promptType config.PromptType
	err = tx.QueryRow(ctx, `SELECT name, prompt_type FROM prompts WHERE id = $1`, id).
		Scan(&name, &promptType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE prompts SET active = FALSE, updated_at = now()
		WHERE name = $1 AND prompt_type = $2 AND active AND id <> $3`, name, promptType, id)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate prior prompt: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE prompts SET active = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING `+promptColumns, id)
	p, err := scanPrompt(row)
	if err != nil {
		return nil, fmt.Errorf("failed to activate prompt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit prompt activation: %w", err)
	}

	s.invalidate(name, promptType)
	slog.Info("Prompt version activated", "prompt", name, "type", promptType, "version", p.Version)
	return p, nil
}

// GetPrompt fetches one prompt version by id.
func (s *PromptService) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	row := s.db.Pool().QueryRow(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = $1`, id)
	p, err := scanPrompt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return p, nil
}

// UpdatePrompt patches mutable metadata (tags, notes) of one version.
func (s *PromptService) UpdatePrompt(ctx context.Context, id string, req *models.UpdatePromptRequest) (*models.Prompt, error) {
	p, err := s.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Tags != nil {
		p.Tags = *req.Tags
		if p.Tags == nil {
			p.Tags = []string{}
		}
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}

	_, err = s.db.Pool().Exec(ctx, `
		UPDATE prompts SET tags = $2, notes = $3, updated_at = now() WHERE id = $1`,
		id, p.Tags, p.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}
	s.invalidate(p.Name, p.PromptType)
	return p, nil
}

// ListPrompts returns all versions, newest first, optionally filtered by name
// and type.
func (s *PromptService) ListPrompts(ctx context.Context, name string, promptType config.PromptType) ([]*models.Prompt, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT `+promptColumns+`
		FROM prompts
		WHERE ($1 = '' OR name = $1) AND ($2 = '' OR prompt_type = $2)
		ORDER BY name, prompt_type, version DESC`, name, string(promptType))
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var out []*models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	return out, nil
}

func (s *PromptService) invalidate(name string, promptType config.PromptType) {
	s.mu.Lock()
	delete(s.cached, name+"/"+string(promptType))
	delete(s.fetched, name+"/"+string(promptType))
	s.mu.Unlock()
}

const promptColumns = `id, name, prompt_type, version, content, active, tags, notes,
	usage_count, last_used_at, created_by, created_at, updated_at`

func scanPrompt(row rowScanner) (*models.Prompt, error) {
	var p models.Prompt
	err := row.Scan(&p.ID, &p.Name, &p.PromptType, &p.Version, &p.Content, &p.Active,
		&p.Tags, &p.Notes, &p.UsageCount, &p.LastUsedAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
