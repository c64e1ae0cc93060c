package notify

import "context"

// Dispatcher is a protocol-specific notification sender. Dispatch is synchronous;
// the router fans dispatches out through a bounded worker pool, so from the loop's
// perspective delivery is fire-and-forget with the outcome reported per destination.
type Dispatcher interface {
	Dispatch(ctx context.Context, data NotifData, destination string) error
}

// Dispatchers maps protocols to their dispatcher implementations
type Dispatchers map[string]Dispatcher

// Get returns the dispatcher for the protocol, or nil when none is registered -
// callers log and skip unknown protocols rather than failing the item.
func (d Dispatchers) Get(protocol string) Dispatcher {
	return d[protocol]
}

// EntityFinder resolves an entity definition by name from the metadata API. It is the
// cache-miss fallback for destination resolution; the document is returned raw so the
// caller can treat it exactly like a metadata-change event.
type EntityFinder interface {
	// FindByName returns the entity's metadata document, or nil when no entity matches
	FindByName(ctx context.Context, name string) (*Document, error)
}
