package feed

import (
	"context"
	"strings"

	"github.com/autom8ter/notify/errors"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RawEvent is a change stream event as emitted by the primary document store
type RawEvent struct {
	ID struct {
		Data string `bson:"_data" json:"_data"`
	} `bson:"_id" json:"_id"`
	OperationType string              `bson:"operationType" json:"operationType"`
	ClusterTime   primitive.Timestamp `bson:"clusterTime" json:"clusterTime"`
	FullDocument  map[string]any      `bson:"fullDocument" json:"fullDocument"`
	DocumentKey   map[string]any      `bson:"documentKey" json:"documentKey"`
	Namespace     struct {
		Db   string `bson:"db" json:"db"`
		Coll string `bson:"coll" json:"coll"`
	} `bson:"ns" json:"ns"`
	UpdateDescription struct {
		UpdatedFields map[string]any `bson:"updatedFields" json:"updatedFields"`
		RemovedFields []string       `bson:"removedFields" json:"removedFields"`
	} `bson:"updateDescription" json:"updateDescription"`
}

// ResumeData returns the event's own checkpoint
func (e *RawEvent) ResumeData() ResumeData {
	return ResumeData{
		ResumeToken: e.ID.Data,
		ClusterTime: EncodeClusterTime(e.ClusterTime),
	}
}

// ResumeData is an opaque change feed checkpoint. Exactly one of the two fields is
// meaningful at a time; the resume token wins when both are set.
type ResumeData struct {
	ResumeToken string `json:"ResumeToken,omitempty"`
	ClusterTime string `json:"ClusterTime,omitempty"`
}

// Empty returns true when the checkpoint holds neither a token nor a cluster time
func (r ResumeData) Empty() bool {
	return r.ResumeToken == "" && r.ClusterTime == ""
}

// EncodeClusterTime encodes an operation time as "<T>:<I>"
func EncodeClusterTime(ts primitive.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return cast.ToString(ts.T) + ":" + cast.ToString(ts.I)
}

// DecodeClusterTime decodes an operation time from its "<T>:<I>" form
func DecodeClusterTime(raw string) (primitive.Timestamp, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return primitive.Timestamp{}, errors.New(errors.Validation, "malformed cluster time: %s", raw)
	}
	t, err := cast.ToUint32E(parts[0])
	if err != nil {
		return primitive.Timestamp{}, errors.Wrap(err, errors.Validation, "malformed cluster time: %s", raw)
	}
	i, err := cast.ToUint32E(parts[1])
	if err != nil {
		return primitive.Timestamp{}, errors.Wrap(err, errors.Validation, "malformed cluster time: %s", raw)
	}
	return primitive.Timestamp{T: t, I: i}, nil
}

// BuildStreamOpts maps a checkpoint onto change stream options. An empty checkpoint
// yields no-op options; a resume token resumes strictly after that token and takes
// precedence over any cluster time; a cluster time alone resumes from that operation
// time.
func BuildStreamOpts(resume ResumeData) (*options.ChangeStreamOptions, error) {
	opts := options.ChangeStream()
	switch {
	case resume.ResumeToken != "":
		opts = opts.SetResumeAfter(bson.M{"_data": resume.ResumeToken})
	case resume.ClusterTime != "":
		ts, err := DecodeClusterTime(resume.ClusterTime)
		if err != nil {
			return nil, err
		}
		opts = opts.SetStartAtOperationTime(&ts)
	}
	return opts, nil
}

// Feed is one open change feed subscription
type Feed interface {
	// Next blocks until the next raw event arrives, the feed fails, or ctx is done
	Next(ctx context.Context) (*RawEvent, error)
	// Close cancels the subscription
	Close(ctx context.Context) error
}

// Opener opens a change feed against the collection it is bound to, resumed per the
// given options
type Opener interface {
	Open(ctx context.Context, opts *options.ChangeStreamOptions) (Feed, error)
}
