package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/store"
)

// Checkpoints persists change feed checkpoints in the shared store, one key per
// watched collection. Writers own their key; reads tolerate a missing checkpoint by
// returning an empty one.
type Checkpoints struct {
	store store.Store
}

// NewCheckpoints returns a checkpoint store over the given store
func NewCheckpoints(s store.Store) *Checkpoints {
	return &Checkpoints{store: s}
}

func checkpointKey(db, coll string) string {
	return fmt.Sprintf("watch:checkpoint:%s.%s", db, coll)
}

// Get reads the last persisted checkpoint for the collection. A missing checkpoint is
// not an error - it yields an empty ResumeData and the feed starts from now.
func (c *Checkpoints) Get(ctx context.Context, db, coll string) (ResumeData, error) {
	raw, ok, err := c.store.Get(ctx, checkpointKey(db, coll))
	if err != nil || !ok {
		return ResumeData{}, err
	}
	var resume ResumeData
	if err := json.Unmarshal([]byte(raw), &resume); err != nil {
		return ResumeData{}, errors.Wrap(err, errors.Validation, "malformed checkpoint for %s.%s", db, coll)
	}
	return resume, nil
}

// Set persists the checkpoint for the collection
func (c *Checkpoints) Set(ctx context.Context, db, coll string, resume ResumeData) error {
	bits, err := json.Marshal(resume)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode checkpoint")
	}
	return c.store.Set(ctx, checkpointKey(db, coll), string(bits))
}
