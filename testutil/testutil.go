package testutil

import (
	"context"
	"sync"

	"github.com/autom8ter/notify"
	"github.com/autom8ter/notify/feed"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Feed is a channel-backed change feed for tests. Push feeds events to a consumer
// blocked in Next; Fail makes the next Next call return the given error.
type Feed struct {
	events chan *feed.RawEvent
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

// NewFeed returns an empty test feed
func NewFeed() *Feed {
	return &Feed{
		events: make(chan *feed.RawEvent),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// Push delivers an event to the consumer, blocking until it is picked up
func (f *Feed) Push(ctx context.Context, event *feed.RawEvent) error {
	select {
	case f.events <- event:
		return nil
	case <-f.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail makes the consumer's next Next call return err
func (f *Feed) Fail(err error) {
	f.errs <- err
}

func (f *Feed) Next(ctx context.Context) (*feed.RawEvent, error) {
	select {
	case event := <-f.events:
		return event, nil
	case err := <-f.errs:
		return nil, err
	case <-f.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Feed) Close(ctx context.Context) error {
	f.once.Do(func() {
		close(f.closed)
	})
	return nil
}

// Closed reports whether the consumer has closed the feed
func (f *Feed) Closed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// Opener hands out test feeds and records the stream options each open was resumed
// with
type Opener struct {
	mu    sync.Mutex
	feeds chan *Feed
	opts  []*options.ChangeStreamOptions
}

// NewOpener returns an opener that hands out the given feeds in order
func NewOpener(feeds ...*Feed) *Opener {
	o := &Opener{feeds: make(chan *Feed, len(feeds)+16)}
	for _, f := range feeds {
		o.feeds <- f
	}
	return o
}

// Add queues another feed for a future open
func (o *Opener) Add(f *Feed) {
	o.feeds <- f
}

func (o *Opener) Open(ctx context.Context, opts *options.ChangeStreamOptions) (feed.Feed, error) {
	o.mu.Lock()
	o.opts = append(o.opts, opts)
	o.mu.Unlock()
	select {
	case f := <-o.feeds:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Opts returns the stream options of every open so far, in order
func (o *Opener) Opts() []*options.ChangeStreamOptions {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*options.ChangeStreamOptions{}, o.opts...)
}

// Dispatch is one recorded dispatcher invocation
type Dispatch struct {
	Data        notify.NotifData
	Destination string
}

// CaptureDispatcher records every dispatch and optionally fails destinations on
// demand
type CaptureDispatcher struct {
	mu         sync.Mutex
	dispatches []Dispatch
	failures   map[string]error
}

// NewCaptureDispatcher returns an always-succeeding capture dispatcher
func NewCaptureDispatcher() *CaptureDispatcher {
	return &CaptureDispatcher{failures: map[string]error{}}
}

// FailDestination makes dispatches to the given destination return err
func (c *CaptureDispatcher) FailDestination(destination string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[destination] = err
}

func (c *CaptureDispatcher) Dispatch(ctx context.Context, data notify.NotifData, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failures[destination]; err != nil {
		return err
	}
	c.dispatches = append(c.dispatches, Dispatch{Data: data, Destination: destination})
	return nil
}

// Dispatches returns every successful dispatch so far
func (c *CaptureDispatcher) Dispatches() []Dispatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Dispatch{}, c.dispatches...)
}

// Finder is an in-memory entity metadata lookup
type Finder struct {
	mu       sync.Mutex
	entities map[string]*notify.Document
	calls    int
}

// NewFinder returns a finder over the given entity documents, keyed by name
func NewFinder(entities map[string]*notify.Document) *Finder {
	if entities == nil {
		entities = map[string]*notify.Document{}
	}
	return &Finder{entities: entities}
}

func (f *Finder) FindByName(ctx context.Context, name string) (*notify.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.entities[name], nil
}

// Calls returns how many lookups the finder has served
func (f *Finder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// NewInsertEvent fabricates an insert change event for the given collection with a
// randomized document
func NewInsertEvent(db, coll string) *feed.RawEvent {
	id := gofakeit.UUID()
	return NewInsertEventFor(db, coll, id, map[string]any{
		"_id":     id,
		"name":    gofakeit.Name(),
		"email":   gofakeit.Email(),
		"balance": gofakeit.Price(1, 1000),
	})
}

// NewInsertEventFor fabricates an insert change event carrying the given document
func NewInsertEventFor(db, coll, id string, document map[string]any) *feed.RawEvent {
	event := &feed.RawEvent{
		OperationType: "insert",
		ClusterTime:   primitive.Timestamp{T: cast.ToUint32(gofakeit.Number(1, 1<<30)), I: 1},
		FullDocument:  document,
		DocumentKey:   map[string]any{"_id": id},
	}
	event.ID.Data = gofakeit.UUID()
	event.Namespace.Db = db
	event.Namespace.Coll = coll
	return event
}

// NewUpdateEvent fabricates an update change event touching the given fields
func NewUpdateEvent(db, coll, id string, updated map[string]any, removed []string) *feed.RawEvent {
	event := &feed.RawEvent{
		OperationType: "update",
		ClusterTime:   primitive.Timestamp{T: cast.ToUint32(gofakeit.Number(1, 1<<30)), I: 1},
		DocumentKey:   map[string]any{"_id": id},
	}
	event.ID.Data = gofakeit.UUID()
	event.Namespace.Db = db
	event.Namespace.Coll = coll
	event.UpdateDescription.UpdatedFields = updated
	event.UpdateDescription.RemovedFields = removed
	return event
}

// NewDeleteEvent fabricates a delete change event
func NewDeleteEvent(db, coll, id string) *feed.RawEvent {
	event := &feed.RawEvent{
		OperationType: "delete",
		ClusterTime:   primitive.Timestamp{T: cast.ToUint32(gofakeit.Number(1, 1<<30)), I: 1},
		DocumentKey:   map[string]any{"_id": id},
	}
	event.ID.Data = gofakeit.UUID()
	event.Namespace.Db = db
	event.Namespace.Coll = coll
	return event
}

// NewEntityDoc fabricates an entity metadata document with the given notification
// configs
func NewEntityDoc(name string, configs []notify.NotifConfig) *notify.Document {
	doc, _ := notify.NewDocumentFrom(map[string]any{
		"_id":          gofakeit.UUID(),
		"name":         name,
		"notifConfigs": configs,
	})
	return doc
}
