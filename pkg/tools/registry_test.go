package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

type stubTool struct{ name string }

func (s *stubTool) Name() string                        { return s.name }
func (s *stubTool) Description() string                 { return "stub" }
func (s *stubTool) InputSchema() map[string]interface{} { return map[string]interface{}{} }
func (s *stubTool) Run(ctx context.Context, args map[string]interface{}) (*types.ToolResponse, error) {
	return &types.ToolResponse{Status: types.StatusSuccess}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "alpha"})

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "alpha"})
	r.Unregister("alpha")

	_, ok := r.Get("alpha")
	assert.False(t, ok)
	assert.Empty(t, r.List())
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "zeta"})
	r.Register(&stubTool{name: "alpha"})
	r.Register(&stubTool{name: "mango"})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name())
	assert.Equal(t, "mango", list[1].Name())
	assert.Equal(t, "zeta", list[2].Name())
}
