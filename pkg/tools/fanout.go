package tools

import (
	"context"
	"sort"
	"sync"
)

// fanOut runs fetch for every key with at most limit in flight and returns
// results and errors indexed by key. Completion order is meaningless;
// callers reassemble deterministically by iterating sortedKeys.
func fanOut[T any](ctx context.Context, keys []string, limit int, fetch func(ctx context.Context, key string) (T, error)) (map[string]T, map[string]error) {
	if limit < 1 {
		limit = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		slots   = make(chan struct{}, limit)
		results = make(map[string]T, len(keys))
		errs    = make(map[string]error)
	)

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()

			v, err := fetch(ctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[key] = err
				return
			}
			results[key] = v
		}(key)
	}
	wg.Wait()

	return results, errs
}

// sortedKeys returns the map's keys in stable lexical order.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
