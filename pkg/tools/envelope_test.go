package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

func TestExecuteSuccess(t *testing.T) {
	resp := Execute(func() (*Outcome, error) {
		return &Outcome{Result: "ok", CollaboratorCalls: 2}, nil
	})

	assert.Equal(t, types.StatusSuccess, resp.Status)
	assert.Equal(t, "ok", resp.Result)
	assert.Empty(t, resp.Error)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, 2, resp.Metadata.CollaboratorCalls)
	assert.False(t, resp.Metadata.Timestamp.IsZero())
	assert.GreaterOrEqual(t, resp.Metadata.ExecutionTimeMS, int64(0))
}

func TestExecuteWarningsKeepSuccess(t *testing.T) {
	resp := Execute(func() (*Outcome, error) {
		return &Outcome{Result: "ok", Warnings: []string{"output truncated"}, Truncated: true}, nil
	})

	assert.Equal(t, types.StatusSuccess, resp.Status)
	assert.Equal(t, []string{"output truncated"}, resp.Warnings)
	assert.True(t, resp.Metadata.Truncated)
}

func TestExecuteDegradedIsPartial(t *testing.T) {
	resp := Execute(func() (*Outcome, error) {
		return &Outcome{
			Result:   "most of it",
			Warnings: []string{"heads up"},
			Degraded: []string{"one container unavailable"},
		}, nil
	})

	assert.Equal(t, types.StatusPartial, resp.Status)
	assert.Equal(t, "most of it", resp.Result)
	assert.Equal(t, []string{"heads up", "one container unavailable"}, resp.Warnings)
}

func TestExecuteError(t *testing.T) {
	resp := Execute(func() (*Outcome, error) {
		return nil, types.NewError(types.KindNotFound, "deployment %q not found", "web")
	})

	assert.Equal(t, types.StatusError, resp.Status)
	assert.Nil(t, resp.Result)
	assert.Contains(t, resp.Error, "NOT_FOUND")
	assert.Contains(t, resp.Error, "web")
	require.NotNil(t, resp.Warnings)
	assert.Empty(t, resp.Warnings)
}

func TestErrorMessageStructured(t *testing.T) {
	err := &types.ObserverError{Kind: types.KindTimeout, Message: "too slow", Detail: "ctx deadline"}
	assert.Equal(t, "[TIMEOUT] too slow (ctx deadline)", errorMessage(err))
}
