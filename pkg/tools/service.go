package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/models"
	"github.com/paydesk/paydesk/pkg/services"
)

// Service persists per-tool configuration and keeps the registry's enablement
// in sync with it. Credentials are encrypted before they touch the database.
type Service struct {
	db       *database.Client
	registry *Registry
	cipher   *CredentialCipher
}

// NewService creates the tool configuration service. cipher may be nil, in
// which case credential updates are rejected.
func NewService(db *database.Client, registry *Registry, cipher *CredentialCipher) *Service {
	return &Service{db: db, registry: registry, cipher: cipher}
}

// SyncBuiltins upserts a row per registered built-in tool and applies the
// stored enabled flags to the registry. Called once at startup.
func (s *Service) SyncBuiltins(ctx context.Context) error {
	for _, name := range s.registry.Names() {
		t, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		_, err := s.db.Pool().Exec(ctx, `
			INSERT INTO tools (id, name, description, category, enabled, args_schema, created_at, updated_at)
			VALUES ($1, $2, $3, 'builtin', TRUE, $4, now(), now())
			ON CONFLICT (name) DO UPDATE SET
				description = EXCLUDED.description,
				args_schema = EXCLUDED.args_schema,
				updated_at = now()`,
			uuid.NewString(), name, t.Description(), json.RawMessage(t.Schema()))
		if err != nil {
			return fmt.Errorf("failed to sync tool %s: %w", name, err)
		}
	}

	rows, err := s.db.Pool().Query(ctx, `SELECT name, enabled FROM tools`)
	if err != nil {
		return fmt.Errorf("failed to load tool flags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var enabled bool
		if err := rows.Scan(&name, &enabled); err != nil {
			return fmt.Errorf("failed to scan tool flag: %w", err)
		}
		s.registry.SetEnabled(name, enabled)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tool flags: %w", err)
	}
	slog.Info("Tool configuration synchronized", "tools", len(s.registry.Names()))
	return nil
}

// List returns all persisted tool records.
func (s *Service) List(ctx context.Context) ([]*models.ToolRecord, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, name, description, category, enabled, credentials, args_schema, created_at, updated_at
		FROM tools ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	defer rows.Close()

	var out []*models.ToolRecord
	for rows.Next() {
		rec, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tools: %w", err)
	}
	return out, nil
}

// Get fetches one tool record by name.
func (s *Service) Get(ctx context.Context, name string) (*models.ToolRecord, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT id, name, description, category, enabled, credentials, args_schema, created_at, updated_at
		FROM tools WHERE name = $1`, name)
	rec, err := scanTool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tool %s: %w", name, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}
	return rec, nil
}

// Update patches the tool's configuration. Enablement changes take effect on
// the next invocation; an in-flight call completes under the old setting.
func (s *Service) Update(ctx context.Context, name string, req *models.UpdateToolRequest) (*models.ToolRecord, error) {
	rec, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		rec.Description = *req.Description
	}
	if req.Category != nil {
		rec.Category = *req.Category
	}
	if req.Enabled != nil {
		rec.Enabled = *req.Enabled
	}
	if req.ArgsSchema != nil {
		rec.ArgsSchema = req.ArgsSchema
	}
	if req.Credentials != nil {
		if s.cipher == nil {
			return nil, fmt.Errorf("%w: credential storage is not configured", services.ErrInvalidInput)
		}
		plain, err := json.Marshal(req.Credentials)
		if err != nil {
			return nil, fmt.Errorf("%w: credentials must be a JSON object", services.ErrInvalidInput)
		}
		sealed, err := s.cipher.Encrypt(string(plain))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt credentials: %w", err)
		}
		rec.Credentials = sealed
	}

	schema := rec.ArgsSchema
	if schema == nil {
		schema = json.RawMessage(`{}`)
	}
	err = s.db.Pool().QueryRow(ctx, `
		UPDATE tools
		SET description = $2, category = $3, enabled = $4, credentials = $5, args_schema = $6, updated_at = now()
		WHERE name = $1
		RETURNING updated_at`,
		name, rec.Description, rec.Category, rec.Enabled, rec.Credentials, schema).
		Scan(&rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update tool: %w", err)
	}

	s.registry.SetEnabled(name, rec.Enabled)
	return rec, nil
}

// Credentials decrypts and returns the tool's stored credentials as a map.
// Missing credentials yield an empty map.
func (s *Service) Credentials(ctx context.Context, name string) (map[string]any, error) {
	rec, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec.Credentials == "" {
		return map[string]any{}, nil
	}
	if s.cipher == nil {
		return nil, fmt.Errorf("credential storage is not configured")
	}
	plain, err := s.cipher.Decrypt(rec.Credentials)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(plain), &out); err != nil {
		return nil, fmt.Errorf("stored credentials are not a JSON object: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTool(row rowScanner) (*models.ToolRecord, error) {
	var rec models.ToolRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Category, &rec.Enabled,
		&rec.Credentials, &rec.ArgsSchema, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
