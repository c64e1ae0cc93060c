package notify

import (
	"context"
	"sync"

	"github.com/autom8ter/notify/internal/safe"
)

// Flags is the feature flag provider contract the pipeline's loops are gated on. The
// provider itself is an external collaborator; each loop consumes one boolean key,
// independently toggleable at runtime.
type Flags interface {
	// GetBool returns the current value of the flag
	GetBool(ctx context.Context, key string) (bool, error)
	// Subscribe registers a callback fired on every change to the flag's value
	Subscribe(key string, fn func(bool))
}

// MemoryFlags is a thread-safe in-memory flag provider. Subscription callbacks fire
// synchronously from Set, in registration order.
type MemoryFlags struct {
	values      *safe.Map[bool]
	mu          sync.Mutex
	subscribers map[string][]func(bool)
}

// NewMemoryFlags returns a provider seeded with the given values
func NewMemoryFlags(initial map[string]bool) *MemoryFlags {
	return &MemoryFlags{
		values:      safe.NewMap(initial),
		subscribers: map[string][]func(bool){},
	}
}

func (f *MemoryFlags) GetBool(ctx context.Context, key string) (bool, error) {
	return f.values.Get(key), nil
}

func (f *MemoryFlags) Subscribe(key string, fn func(bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers[key] = append(f.subscribers[key], fn)
}

// Set sets the flag's value and notifies its subscribers
func (f *MemoryFlags) Set(key string, value bool) {
	f.values.Set(key, value)
	f.mu.Lock()
	subscribers := append([]func(bool){}, f.subscribers[key]...)
	f.mu.Unlock()
	for _, fn := range subscribers {
		fn(value)
	}
}
