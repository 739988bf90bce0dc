package tools

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOutCollectsResultsAndErrors(t *testing.T) {
	keys := []string{"a", "b", "c"}

	results, errs := fanOut(context.Background(), keys, 2, func(ctx context.Context, key string) (string, error) {
		if key == "b" {
			return "", fmt.Errorf("boom")
		}
		return key + "!", nil
	})

	require.Len(t, results, 2)
	assert.Equal(t, "a!", results["a"])
	assert.Equal(t, "c!", results["c"])
	require.Len(t, errs, 1)
	assert.EqualError(t, errs["b"], "boom")
}

func TestFanOutRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}

	_, errs := fanOut(context.Background(), keys, 3, func(ctx context.Context, key string) (struct{}, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.Empty(t, errs)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestFanOutZeroKeys(t *testing.T) {
	results, errs := fanOut(context.Background(), nil, 2, func(ctx context.Context, key string) (int, error) {
		return 0, nil
	})
	assert.Empty(t, results)
	assert.Empty(t, errs)
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"zebra": 1, "apple": 2, "mango": 3}
	assert.Equal(t, []string{"apple", "mango", "zebra"}, sortedKeys(m))
}
