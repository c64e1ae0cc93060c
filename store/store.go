package store

import "context"

// Store is the key/value + list primitive the pipeline shares between the durable
// queue, the notification-config cache and the change feed checkpoints. All mutation
// is atomic per operation; connectivity failures propagate to the caller.
type Store interface {
	// Get gets a value. ok is false when the key has no value - a miss is not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set sets the key value pair
	Set(ctx context.Context, key, value string) error
	// Del deletes the given keys if they exist
	Del(ctx context.Context, keys ...string) error
	// Incr increments the counter stored at key and returns the new value
	Incr(ctx context.Context, key string) (int64, error)
	// Push appends values to the tail of the list at key, preserving submission order.
	// It returns the resulting list length.
	Push(ctx context.Context, key string, values ...string) (int64, error)
	// PopPush atomically moves the head of the list at src to the tail of the list at
	// dst and returns the moved value. ok is false when src is empty.
	PopPush(ctx context.Context, src, dst string) (value string, ok bool, err error)
	// Rem removes the first element equal to value from the list at key. It returns
	// the number of removed elements (0 or 1).
	Rem(ctx context.Context, key, value string) (int64, error)
	// Range returns every element of the list at key in order
	Range(ctx context.Context, key string) ([]string, error)
	// Len returns the length of the list at key
	Len(ctx context.Context, key string) (int64, error)
	// Close releases the underlying client/connection
	Close() error
}
