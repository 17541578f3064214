package service

import (
	"context"
	"sync"
)

// Factory builds a dependency when it is first needed, so a missing
// credential surfaces on the request that needs it rather than at startup.
type Factory[T any] func(ctx context.Context) (T, error)

// Once memoises the first successful build of f. Failed builds are not
// cached and are attempted again on the next call.
func Once[T any](f Factory[T]) Factory[T] {
	var (
		mu    sync.Mutex
		value T
		built bool
	)
	return func(ctx context.Context) (T, error) {
		mu.Lock()
		defer mu.Unlock()
		if built {
			return value, nil
		}
		v, err := f(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		value, built = v, true
		return value, nil
	}
}

// Static wraps an already-built value.
func Static[T any](v T) Factory[T] {
	return func(context.Context) (T, error) { return v, nil }
}
