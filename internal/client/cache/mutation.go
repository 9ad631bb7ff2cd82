package cache

import "context"

// Mutation describes one server write with optimistic hooks. V is the
// input, R the server result and C the context OnMutate hands to the
// later hooks (typically a rollback snapshot). Nil hooks are skipped.
type Mutation[V, R, C any] struct {
	OnMutate   func(vars V) C
	MutationFn func(ctx context.Context, vars V) (R, error)
	OnSuccess  func(result R, vars V, mctx C)
	OnError    func(err error, vars V, mctx C)
	OnSettled  func(result R, err error, vars V, mctx C)
}

// Mutate runs m for vars: OnMutate, then MutationFn, then OnSuccess or
// OnError, then OnSettled. It returns MutationFn's result.
func Mutate[V, R, C any](ctx context.Context, m Mutation[V, R, C], vars V) (R, error) {
	var mctx C
	if m.OnMutate != nil {
		mctx = m.OnMutate(vars)
	}

	result, err := m.MutationFn(ctx, vars)
	if err != nil {
		if m.OnError != nil {
			m.OnError(err, vars, mctx)
		}
	} else if m.OnSuccess != nil {
		m.OnSuccess(result, vars, mctx)
	}

	if m.OnSettled != nil {
		m.OnSettled(result, err, vars, mctx)
	}
	return result, err
}
