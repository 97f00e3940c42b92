package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/paydesk/paydesk/pkg/llm"
)

// Registry is the single lookup point for tools. Reads take a snapshot under
// a read lock, so an in-flight invocation is never affected by a concurrent
// enable/disable or re-registration; the change applies from the next call.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	enabled map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		enabled: make(map[string]bool),
	}
}

// Register adds or replaces a tool. New tools start enabled unless a prior
// SetEnabled recorded otherwise.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	r.tools[name] = t
	if _, ok := r.enabled[name]; !ok {
		r.enabled[name] = true
	}
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.enabled, name)
}

// UnregisterPrefix removes every tool whose name starts with prefix. Used
// when a remote tool server is disabled or deleted ("server." namespacing).
func (r *Registry) UnregisterPrefix(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		if strings.HasPrefix(name, prefix) {
			delete(r.tools, name)
			delete(r.enabled, name)
		}
	}
}

// SetEnabled flips a tool's availability. Unknown names are remembered so the
// flag applies if the tool registers later.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled[name] = enabled
	slog.Info("Tool availability changed", "tool", name, "enabled", enabled)
}

// Definitions returns the model declarations of all enabled tools, sorted by
// name for deterministic prompts.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolDefinition, 0, len(r.tools))
	for name, t := range r.tools {
		if r.enabled[name] {
			out = append(out, Definition(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all registered tool names, enabled or not, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get looks up a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Invoke runs the named tool. The tool reference and its enablement are read
// atomically, then the call proceeds outside the lock.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	enabled := r.enabled[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrToolNotFound)
	}
	if !enabled {
		return "", fmt.Errorf("%q: %w", name, ErrToolDisabled)
	}
	return t.Invoke(ctx, args)
}
