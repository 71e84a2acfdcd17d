package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/tools"
)

type fakeTool struct {
	name string
}

func (f fakeTool) Name() string           { return f.name }
func (f fakeTool) Description() string    { return "fake tool for registry tests" }
func (f fakeTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (f fakeTool) Execute(_ context.Context, _ map[string]any, _ tools.Invocation) tools.Result {
	return tools.Result{Success: true, Content: f.name + " ran"}
}

func TestToolRegistry_Register(t *testing.T) {
	r := NewToolRegistry(nil)
	require.NoError(t, r.Register(fakeTool{name: "shell"}))

	got, err := r.Get("shell")
	require.NoError(t, err)
	assert.Equal(t, "shell", got.Name())
	assert.Equal(t, 1, r.Count())
}

func TestToolRegistry_Register_Invalid(t *testing.T) {
	r := NewToolRegistry(nil)

	require.Error(t, r.Register(nil))
	require.Error(t, r.Register(fakeTool{}))

	require.NoError(t, r.Register(fakeTool{name: "shell"}))
	err := r.Register(fakeTool{name: "shell"})
	require.ErrorIs(t, err, ErrToolExists)
}

func TestToolRegistry_Get_NotFound(t *testing.T) {
	r := NewToolRegistry(nil)
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestToolRegistry_Names(t *testing.T) {
	r := NewToolRegistry(nil)
	require.NoError(t, r.Register(fakeTool{name: "web_fetch"}))
	require.NoError(t, r.Register(fakeTool{name: "file_ops"}))
	require.NoError(t, r.Register(fakeTool{name: "shell"}))

	assert.Equal(t, []string{"file_ops", "shell", "web_fetch"}, r.Names())
}

func TestToolRegistry_Select(t *testing.T) {
	r := NewToolRegistry(nil)
	require.NoError(t, r.Register(fakeTool{name: "file_ops"}))
	require.NoError(t, r.Register(fakeTool{name: "shell"}))

	t.Run("preserves request order", func(t *testing.T) {
		got, err := r.Select([]string{"shell", "file_ops"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "shell", got[0].Name())
		assert.Equal(t, "file_ops", got[1].Name())
	})

	t.Run("unknown name fails the whole selection", func(t *testing.T) {
		_, err := r.Select([]string{"shell", "teleport"})
		assert.ErrorIs(t, err, ErrToolNotFound)
	})
}

func TestToolRegistry_Unregister(t *testing.T) {
	r := NewToolRegistry(nil)
	require.NoError(t, r.Register(fakeTool{name: "shell"}))

	assert.True(t, r.Unregister("shell"))
	assert.False(t, r.Unregister("shell"))
	assert.Equal(t, 0, r.Count())
}
