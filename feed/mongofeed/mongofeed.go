package mongofeed

import (
	"context"

	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/feed"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Opener opens change streams against a single mongo collection
type Opener struct {
	coll *mongo.Collection
}

// NewOpener returns an opener bound to the given collection
func NewOpener(coll *mongo.Collection) *Opener {
	return &Opener{coll: coll}
}

func (o *Opener) Open(ctx context.Context, opts *options.ChangeStreamOptions) (feed.Feed, error) {
	stream, err := o.coll.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unavailable, "failed to open change stream: %s", o.coll.Name())
	}
	return &mongoFeed{stream: stream}, nil
}

type mongoFeed struct {
	stream *mongo.ChangeStream
}

func (f *mongoFeed) Next(ctx context.Context) (*feed.RawEvent, error) {
	if !f.stream.Next(ctx) {
		if err := f.stream.Err(); err != nil {
			return nil, errors.Wrap(err, errors.Unavailable, "change stream failed")
		}
		return nil, ctx.Err()
	}
	var event feed.RawEvent
	if err := f.stream.Decode(&event); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to decode change event")
	}
	return &event, nil
}

func (f *mongoFeed) Close(ctx context.Context) error {
	return f.stream.Close(ctx)
}
