package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct {
	name string
}

func (e *echoTool) Name() string            { return e.name }
func (e *echoTool) Description() string     { return "echoes its input" }
func (e *echoTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (e *echoTool) Invoke(_ context.Context, args map[string]any) (string, error) {
	s, _ := args["text"].(string)
	return s, nil
}

func TestRegistry_InvokeAndDisable(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{name: "echo"})

	out, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	r.SetEnabled("echo", false)
	_, err = r.Invoke(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrToolDisabled)

	_, err = r.Invoke(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_DefinitionsOnlyEnabledSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{name: "zeta"})
	r.Register(&echoTool{name: "alpha"})
	r.Register(&echoTool{name: "mid"})
	r.SetEnabled("mid", false)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
}

func TestRegistry_DisabledFlagSurvivesReregistration(t *testing.T) {
	r := NewRegistry()
	r.SetEnabled("echo", false)
	r.Register(&echoTool{name: "echo"})
	_, err := r.Invoke(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrToolDisabled)
}

func TestRegistry_UnregisterPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{name: "remote.alpha"})
	r.Register(&echoTool{name: "remote.beta"})
	r.Register(&echoTool{name: "local"})

	r.UnregisterPrefix("remote.")
	assert.Equal(t, []string{"local"}, r.Names())
}
