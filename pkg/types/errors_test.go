package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObserverErrorMessage(t *testing.T) {
	err := NewError(KindNotFound, "deployment %q not found", "web")
	assert.Equal(t, `[NOT_FOUND] deployment "web" not found`, err.Error())

	withDetail := &ObserverError{Kind: KindQueryError, Message: "query failed", Detail: "parse error"}
	assert.Equal(t, "[QUERY_ERROR] query failed (parse error)", withDetail.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAuth, KindOf(NewError(KindAuth, "denied")))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestKindOfUnwrapsObserverError(t *testing.T) {
	wrapped := fmt.Errorf("while fetching: %w", NewError(KindInsufficientData, "no samples"))
	assert.Equal(t, KindInsufficientData, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindInsufficientData))
	assert.False(t, IsKind(nil, KindInternal))
}
