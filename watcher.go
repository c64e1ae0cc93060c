package notify

import (
	"context"
	"time"

	"github.com/autom8ter/notify/feed"
	"github.com/autom8ter/notify/queue"
	"github.com/autom8ter/notify/util"
)

// WatcherConfig parameterizes the change feed watcher loop
type WatcherConfig struct {
	// Source identifies the watched collection; CollName doubles as the entity name
	Source ChangeSource `json:"source"`
	// Queue is where normalized change events are enqueued
	Queue string `json:"queue" validate:"required"`
	// FlagKey gates the loop; toggling it pauses/resumes the feed at runtime
	FlagKey string `json:"flagKey" validate:"required"`
}

// WatcherParams are the collaborators the watcher runs against
type WatcherParams struct {
	Config      WatcherConfig
	Opener      feed.Opener         `validate:"required"`
	Queue       *queue.DurableQueue `validate:"required"`
	Checkpoints *feed.Checkpoints   `validate:"required"`
	Flags       Flags               `validate:"required"`
	Logger      Logger              `validate:"required"`
}

// Watcher is the change feed consumer loop. It resumes the feed from the last
// persisted checkpoint, normalizes every raw event into a ChangeRecord, enqueues the
// non-empty ones and advances the checkpoint after every event - including events
// that produced no payload, so the cursor never sticks.
//
// The loop is a two-state machine (active/paused) driven by its feature flag:
// deactivation cancels the open feed subscription promptly; reactivation
// reopens the feed from the checkpoint re-read from the store, tolerating checkpoint
// advancement by another process while paused.
type Watcher struct {
	config      WatcherConfig
	opener      feed.Opener
	queue       *queue.DurableQueue
	checkpoints *feed.Checkpoints
	flags       Flags
	logger      Logger
}

// NewWatcher returns a watcher for the given config and collaborators
func NewWatcher(params WatcherParams) (*Watcher, error) {
	if err := util.ValidateStruct(&params.Config); err != nil {
		return nil, err
	}
	if err := util.ValidateStruct(&params.Config.Source); err != nil {
		return nil, err
	}
	if err := util.ValidateStruct(&params); err != nil {
		return nil, err
	}
	return &Watcher{
		config:      params.Config,
		opener:      params.Opener,
		queue:       params.Queue,
		checkpoints: params.Checkpoints,
		flags:       params.Flags,
		logger:      params.Logger,
	}, nil
}

// Run drives the watcher until ctx is done. Feed/store connectivity failures stop
// the loop (process supervision restarts it and the feed resumes from the
// checkpoint).
func (w *Watcher) Run(ctx context.Context) error {
	// toggle signals coalesce into a single pending notification; the flag value is
	// re-read from the provider on every signal, so a burst of toggles always
	// settles on the provider's current value and no edge can be lost
	changes := make(chan struct{}, 1)
	w.flags.Subscribe(w.config.FlagKey, func(bool) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	for {
		if ctx.Err() != nil {
			return nil
		}
		active, err := w.flags.GetBool(ctx, w.config.FlagKey)
		if err != nil {
			return err
		}
		if !active {
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
			}
			continue
		}
		w.logger.Info(ctx, "change feed watcher active", map[string]any{
			"db":   w.config.Source.DbName,
			"coll": w.config.Source.CollName,
		})
		if err := w.watch(ctx, changes); err != nil {
			return err
		}
	}
}

// watch runs one feed session: open resumed from the checkpoint, consume until the
// flag deactivates, ctx ends, or the feed fails.
func (w *Watcher) watch(ctx context.Context, changes <-chan struct{}) error {
	resume, err := w.checkpoints.Get(ctx, w.config.Source.DbName, w.config.Source.CollName)
	if err != nil {
		return err
	}
	opts, err := feed.BuildStreamOpts(resume)
	if err != nil {
		return err
	}
	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	f, err := w.opener.Open(feedCtx, opts)
	if err != nil {
		return err
	}
	defer f.Close(context.Background())

	events := make(chan *feed.RawEvent)
	errs := make(chan error, 1)
	go func() {
		for {
			event, err := f.Next(feedCtx)
			if err != nil {
				errs <- err
				return
			}
			select {
			case events <- event:
			case <-feedCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			active, err := w.flags.GetBool(ctx, w.config.FlagKey)
			if err != nil {
				return err
			}
			if !active {
				w.logger.Info(ctx, "change feed watcher paused", map[string]any{
					"db":   w.config.Source.DbName,
					"coll": w.config.Source.CollName,
				})
				return nil
			}
		case err := <-errs:
			if feedCtx.Err() != nil {
				return nil
			}
			return err
		case event := <-events:
			if err := w.handle(ctx, event); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event *feed.RawEvent) error {
	record, err := BuildChangeRecord(event)
	switch {
	case err != nil:
		// a malformed event recurs identically on replay, so it is logged with its
		// own identifier and dropped; the checkpoint still advances past it
		w.logger.Error(ctx, "dropping malformed change event", err, map[string]any{
			"resumeToken": event.ID.Data,
		})
	case record.Empty():
		w.logger.Debug(ctx, "change event carried no payload", map[string]any{
			"operationType": event.OperationType,
		})
	default:
		item, err := NewChangeQueueItem(time.Now().UTC(), record, w.eventSource(event))
		if err != nil {
			return err
		}
		encoded, err := item.Encode()
		if err != nil {
			return err
		}
		if _, err := w.queue.Enqueue(ctx, w.config.Queue, encoded); err != nil {
			return err
		}
	}
	// the checkpoint write is deliberately not transactional with the enqueue: a
	// crash in between replays the change after resume, within the at-least-once
	// guarantee
	return w.checkpoints.Set(ctx, w.config.Source.DbName, w.config.Source.CollName, event.ResumeData())
}

func (w *Watcher) eventSource(event *feed.RawEvent) ChangeSource {
	if event.Namespace.Coll != "" {
		return ChangeSource{DbName: event.Namespace.Db, CollName: event.Namespace.Coll}
	}
	return w.config.Source
}
