package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/models"
)

// configCacheTTL bounds how stale a cached active config may be.
const configCacheTTL = 5 * time.Second

// ConfigService serves the active agent configuration per environment and
// writes new validated versions. Reads are cached per process with a short
// TTL; a store outage never fails chat because callers fall back to the
// compiled-in defaults.
type ConfigService struct {
	db   *database.Client
	name string

	mu      sync.RWMutex
	cached  map[config.Environment]*models.AgentConfig
	fetched map[config.Environment]time.Time
}

// NewConfigService creates the config service for the given config row name
// (normally "default").
func NewConfigService(db *database.Client, name string) *ConfigService {
	if name == "" {
		name = config.DefaultAgentConfigName
	}
	return &ConfigService{
		db:      db,
		name:    name,
		cached:  make(map[config.Environment]*models.AgentConfig),
		fetched: make(map[config.Environment]time.Time),
	}
}

// GetActiveConfig returns the active configuration row for the environment.
func (s *ConfigService) GetActiveConfig(ctx context.Context, env config.Environment) (*models.AgentConfig, error) {
	s.mu.RLock()
	if cfg, ok := s.cached[env]; ok && time.Since(s.fetched[env]) < configCacheTTL {
		s.mu.RUnlock()
		return cfg, nil
	}
	s.mu.RUnlock()

	cfg, err := s.fetchActive(ctx, env)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached[env] = cfg
	s.fetched[env] = time.Now()
	s.mu.Unlock()
	return cfg, nil
}

// ActiveOrDefault returns the active configuration data, falling back to the
// compiled-in defaults when the store has no row or is unreachable. Chat
// call sites use this; it never fails.
func (s *ConfigService) ActiveOrDefault(ctx context.Context, env config.Environment) config.AgentConfigData {
	cfg, err := s.GetActiveConfig(ctx, env)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Config store unavailable, using compiled defaults",
				"environment", env, "error", err)
		}
		return config.DefaultAgentConfig()
	}
	return cfg.Data
}

// UpdateConfig merges the patch into the active config (or the compiled
// defaults when none exists), validates the result, and writes it as a new
// active version. The swap is atomic: readers observe the old or the new
// active row, never both.
func (s *ConfigService) UpdateConfig(ctx context.Context, env config.Environment, patch config.AgentConfigData, updatedBy string) (*models.AgentConfig, error) {
	base := config.DefaultAgentConfig()
	version := 0
	if active, err := s.fetchActive(ctx, env); err == nil {
		base = active.Data
		version = active.Version
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	merged, err := config.MergePatch(base, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE agent_configs SET active = FALSE
		WHERE name = $1 AND environment = $2 AND active`, s.name, env); err != nil {
		return nil, fmt.Errorf("failed to deactivate prior config: %w", err)
	}

	next := &models.AgentConfig{
		ID:          uuid.NewString(),
		Name:        s.name,
		Environment: env,
		Version:     version + 1,
		Active:      true,
		Data:        merged,
		UpdatedBy:   updatedBy,
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO agent_configs (id, name, environment, version, active, config, updated_by, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, now())
		RETURNING created_at`,
		next.ID, next.Name, next.Environment, next.Version, next.Data, next.UpdatedBy)
	if err := row.Scan(&next.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert config version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit config update: %w", err)
	}

	s.mu.Lock()
	s.cached[env] = next
	s.fetched[env] = time.Now()
	s.mu.Unlock()

	slog.Info("Agent config updated",
		"environment", env, "version", next.Version, "updated_by", updatedBy)
	return next, nil
}

func (s *ConfigService) fetchActive(ctx context.Context, env config.Environment) (*models.AgentConfig, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT id, name, environment, version, active, config, updated_by, created_at
		FROM agent_configs
		WHERE name = $1 AND environment = $2 AND active`, s.name, env)

	var cfg models.AgentConfig
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Environment, &cfg.Version, &cfg.Active,
		&cfg.Data, &cfg.UpdatedBy, &cfg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("active config for %s/%s: %w", s.name, env, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active config: %w", err)
	}
	return &cfg, nil
}
