package gatehouse

import (
	"context"
	"sync"
)

// SerializeFunc condenses a user value into its session representation.
// Returning ok=false passes the user to the next registered serializer;
// any value returned with ok=true is final, including zero values.
type SerializeFunc func(ctx context.Context, user any) (serialized any, ok bool, err error)

// DeserializeFunc revives a user value from its session representation.
// Returning ok=false passes to the next registered deserializer. Returning
// ok=true with a nil user means the serialized reference points at a user
// that no longer exists; the caller treats that as a clean miss, not an
// error.
type DeserializeFunc func(ctx context.Context, serialized any) (user any, ok bool, err error)

// TransformFunc rewrites strategy-supplied auth info before it is attached
// to the request. Returning ok=false passes to the next registered
// transformer.
type TransformFunc func(ctx context.Context, info any) (transformed any, ok bool, err error)

// chainFunc is the shape shared by all three transform chains.
type chainFunc func(ctx context.Context, v any) (any, bool, error)

// chain runs registered handlers in order until one produces a result.
// A handler elects itself out by returning ok=false; errors abort the run
// immediately. When every handler declines, exhausted is returned, except
// that a nil exhausted marks the chain lenient: exhaustion yields the
// input unchanged.
type chain struct {
	mu        sync.RWMutex
	fns       []chainFunc
	exhausted error
}

func newChain(exhausted error) *chain {
	return &chain{exhausted: exhausted}
}

func (c *chain) register(fn chainFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

func (c *chain) run(ctx context.Context, v any) (any, error) {
	c.mu.RLock()
	fns := c.fns
	c.mu.RUnlock()

	for _, fn := range fns {
		out, ok, err := fn(ctx, v)
		if err != nil {
			return nil, err
		}
		if ok {
			return out, nil
		}
	}
	if c.exhausted == nil {
		return v, nil
	}
	return nil, c.exhausted
}
