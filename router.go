package notify

import (
	"context"
	"time"

	"github.com/autom8ter/machine/v4"
	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/queue"
	"github.com/autom8ter/notify/util"
	"github.com/samber/lo"
)

// RouterConfig parameterizes one router loop. The primary and retry loops run the
// same code: only the queue they consume, their flag, and where dispatch outcomes are
// routed differ.
type RouterConfig struct {
	// Queue is the queue this loop consumes
	Queue string `json:"queue" validate:"required"`
	// RetryQueue receives a pinned single-destination item for every failed dispatch.
	// On the retry loop it equals Queue.
	RetryQueue string `json:"retryQueue" validate:"required"`
	// FlagKey gates the loop; when the flag is off the loop idles
	FlagKey string `json:"flagKey" validate:"required"`
	// Retry marks the retry loop: dispatch outcomes ack/nack the consumed item
	// instead of enqueueing new retry items
	Retry bool `json:"retry"`
	// RetryThreshold is the delivery-attempt budget before an item is dead-lettered
	RetryThreshold int `json:"retryThreshold" validate:"gte=1"`
	// MetadataCollection is the well-known collection whose changes are entity
	// definitions rather than entity data
	MetadataCollection string `json:"metadataCollection" validate:"required"`
	// PollInterval is how often the loop polls its queue
	PollInterval time.Duration `json:"pollInterval" validate:"gt=0"`
	// MaxDispatches caps concurrent in-flight dispatches issued by this loop
	MaxDispatches int `json:"maxDispatches" validate:"gte=1"`
}

// RouterParams are the collaborators one router loop runs against
type RouterParams struct {
	Config      RouterConfig
	Queue       *queue.DurableQueue `validate:"required"`
	Cache       *ConfigCache        `validate:"required"`
	Finder      EntityFinder        `validate:"required"`
	Dispatchers Dispatchers         `validate:"required"`
	Flags       Flags               `validate:"required"`
	Logger      Logger              `validate:"required"`
}

// Router is the notification consumer loop: it dequeues change events, classifies
// them (entity-metadata change vs entity-data change), resolves destinations and fans
// out to dispatchers through a bounded worker pool. Destination outcomes are tracked
// and retried in isolation - "all destinations succeeded" is never computed.
type Router struct {
	config      RouterConfig
	queue       *queue.DurableQueue
	cache       *ConfigCache
	finder      EntityFinder
	dispatchers Dispatchers
	flags       Flags
	logger      Logger
	machine     machine.Machine
}

// NewRouter returns a router loop for the given config and collaborators
func NewRouter(params RouterParams) (*Router, error) {
	if err := util.ValidateStruct(&params.Config); err != nil {
		return nil, err
	}
	if err := util.ValidateStruct(&params); err != nil {
		return nil, err
	}
	return &Router{
		config:      params.Config,
		queue:       params.Queue,
		cache:       params.Cache,
		finder:      params.Finder,
		dispatchers: params.Dispatchers,
		flags:       params.Flags,
		logger:      params.Logger,
		machine:     machine.New(machine.WithThrottledRoutines(params.Config.MaxDispatches)),
	}, nil
}

// Run polls the queue until ctx is done. Store/broker connectivity failures stop the
// loop (process supervision restarts it); per-item failures are logged and, on the
// retry loop, nacked against the retry threshold. Dispatch worker failures surface
// through the machine pool when the loop exits.
func (r *Router) Run(ctx context.Context) error {
	err := r.poll(ctx)
	if waitErr := r.machine.Wait(); err == nil {
		err = waitErr
	}
	return err
}

func (r *Router) poll(ctx context.Context) error {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// the flag is re-checked per item so turning the loop off takes effect
			// mid-backlog, not after the drain completes
			for {
				enabled, err := r.flags.GetBool(ctx, r.config.FlagKey)
				if err != nil {
					return err
				}
				if !enabled {
					break
				}
				processed, err := r.ProcessNext(ctx)
				if err != nil {
					if errors.Extract(err).Code == errors.Unavailable {
						return err
					}
					r.logger.Error(ctx, "failed to process queue item", err, map[string]any{
						"queue": r.config.Queue,
					})
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// ProcessNext dequeues and routes a single item. It reports whether an item was
// available. On the retry loop a processing failure nacks the item before the error
// is returned.
func (r *Router) ProcessNext(ctx context.Context) (bool, error) {
	token, ok, err := r.queue.Dequeue(ctx, r.config.Queue)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := r.process(ctx, token); err != nil {
		if r.config.Retry {
			if nackErr := r.queue.Nack(ctx, r.config.Queue, token, r.config.RetryThreshold); nackErr != nil {
				return true, nackErr
			}
		}
		return true, err
	}
	return true, nil
}

func (r *Router) process(ctx context.Context, token string) error {
	item, err := DecodeChangeQueueItem(token)
	if err != nil {
		return err
	}
	source, err := item.ChangeSource()
	if err != nil {
		return err
	}
	record, err := item.Record()
	if err != nil {
		return err
	}
	if source.CollName == r.config.MetadataCollection {
		if err := r.cacheEntityRecord(ctx, record); err != nil {
			return err
		}
		return r.ack(ctx, token)
	}
	destinations := item.NotifConfigs
	if len(destinations) == 0 {
		destinations, err = r.resolveDestinations(ctx, source.CollName)
		if err != nil {
			return err
		}
	}
	// a destination pinned twice must not double-deliver
	destinations = lo.UniqBy(destinations, func(c NotifConfig) string {
		return c.Protocol + "|" + c.TargetURL
	})
	if len(destinations) == 0 {
		// no destinations is a no-op, not an error; the item is still consumed
		r.logger.Debug(ctx, "no notification destinations", map[string]any{
			"entity": source.CollName,
			"id":     record.Id,
		})
		return r.ack(ctx, token)
	}
	data, err := r.buildNotifData(item, source, record)
	if err != nil {
		return err
	}
	for _, destination := range destinations {
		r.dispatch(ctx, item, data, destination, token)
	}
	if !r.config.Retry {
		// the source event is acked as soon as fan-out is issued: delivery failures
		// are durably tracked on the retry queue, not on this item. A crash between
		// this ack and a failed dispatch's retry-enqueue can lose that destination's
		// retry - observed upstream behavior, kept under review.
		_, err := r.queue.Ack(ctx, r.config.Queue, token, false)
		return err
	}
	return nil
}

// cacheEntityRecord handles a change to the entity-metadata collection: the entity's
// notification configs are cached and nothing is dispatched.
func (r *Router) cacheEntityRecord(ctx context.Context, record ChangeRecord) error {
	doc, err := record.Document()
	if err != nil {
		return err
	}
	name, raw := entityConfigs(doc)
	r.logger.Info(ctx, "caching entity notification configs", map[string]any{
		"entity": name,
	})
	return r.cache.SetRaw(ctx, name, raw)
}

// entityConfigs extracts the entity name and raw notification configs from a
// metadata document, defaulting both to the empty string when absent/null
func entityConfigs(doc *Document) (name string, raw string) {
	name = doc.GetString("name")
	raw = doc.Raw("notifConfigs")
	if raw == "null" {
		raw = ""
	}
	return name, raw
}

// resolveDestinations reads the entity's configs from the cache, falling back to a
// metadata API lookup on a miss and opportunistically repopulating the cache from the
// response.
func (r *Router) resolveDestinations(ctx context.Context, entity string) ([]NotifConfig, error) {
	configs, ok, err := r.cache.Get(ctx, entity)
	if err != nil {
		return nil, err
	}
	if ok {
		return configs, nil
	}
	doc, err := r.finder.FindByName(ctx, entity)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	name, raw := entityConfigs(doc)
	if name == "" {
		name = entity
	}
	if err := r.cache.SetRaw(ctx, name, raw); err != nil {
		return nil, err
	}
	return DecodeNotifConfigs(raw)
}

func (r *Router) buildNotifData(item ChangeQueueItem, source ChangeSource, record ChangeRecord) (NotifData, error) {
	doc, err := record.Document()
	if err != nil {
		return NotifData{}, err
	}
	if err := doc.Del("_id"); err != nil {
		return NotifData{}, err
	}
	if err := doc.Set("id", record.Id); err != nil {
		return NotifData{}, err
	}
	return NotifData{
		EventTime:  time.Now().UTC(),
		ChangeTime: item.ChangeTime,
		Id:         record.Id,
		ChangeType: string(record.ChangeType),
		Entity:     source.CollName,
		Document:   doc.Value(),
	}, nil
}

// dispatch fires one destination without blocking the loop. The completion routing
// runs on the worker: retry-loop items are acked/nacked per outcome; primary-loop
// failures enqueue a new retry item pinning only the failed destination.
func (r *Router) dispatch(ctx context.Context, item ChangeQueueItem, data NotifData, destination NotifConfig, token string) {
	dispatcher := r.dispatchers.Get(destination.Protocol)
	if dispatcher == nil {
		r.logger.Warn(ctx, "no dispatcher for protocol", map[string]any{
			"protocol": destination.Protocol,
			"entity":   data.Entity,
			"id":       data.Id,
		})
		if r.config.Retry {
			if err := r.queue.Nack(ctx, r.config.Queue, token, r.config.RetryThreshold); err != nil {
				r.logger.Error(ctx, "failed to nack undispatchable item", err, nil)
			}
		}
		return
	}
	r.machine.Go(ctx, func(ctx context.Context) error {
		err := dispatcher.Dispatch(ctx, data, destination.TargetURL)
		if r.config.Retry {
			return r.routeRetryOutcome(ctx, data, destination, token, err)
		}
		return r.routePrimaryOutcome(ctx, item, data, destination, err)
	})
}

func (r *Router) routePrimaryOutcome(ctx context.Context, item ChangeQueueItem, data NotifData, destination NotifConfig, dispatchErr error) error {
	if dispatchErr == nil {
		r.logger.Debug(ctx, "notification delivered", map[string]any{
			"protocol": destination.Protocol,
			"target":   destination.TargetURL,
			"id":       data.Id,
		})
		return nil
	}
	retryItem := ChangeQueueItem{
		ChangeTime:   item.ChangeTime,
		ChangeRecord: item.ChangeRecord,
		Source:       item.Source,
		NotifConfigs: []NotifConfig{destination},
	}
	encoded, err := retryItem.Encode()
	if err != nil {
		r.logger.Error(ctx, "failed to encode retry item, destination retry lost", err, map[string]any{
			"protocol": destination.Protocol,
			"target":   destination.TargetURL,
			"id":       data.Id,
		})
		return err
	}
	if _, err := r.queue.Enqueue(ctx, r.config.RetryQueue, encoded); err != nil {
		// the source item was already acked: losing this enqueue loses the
		// destination's retry, so it is logged and surfaced to stop the loop
		r.logger.Error(ctx, "failed to queue destination for retry", err, map[string]any{
			"protocol": destination.Protocol,
			"target":   destination.TargetURL,
			"id":       data.Id,
		})
		return err
	}
	r.logger.Warn(ctx, "dispatch failed, destination queued for retry", map[string]any{
		"protocol": destination.Protocol,
		"target":   destination.TargetURL,
		"id":       data.Id,
		"error":    dispatchErr.Error(),
	})
	return nil
}

func (r *Router) routeRetryOutcome(ctx context.Context, data NotifData, destination NotifConfig, token string, dispatchErr error) error {
	if dispatchErr == nil {
		r.logger.Info(ctx, "retried notification delivered", map[string]any{
			"protocol": destination.Protocol,
			"target":   destination.TargetURL,
			"id":       data.Id,
		})
		_, err := r.queue.Ack(ctx, r.config.Queue, token, false)
		return err
	}
	r.logger.Warn(ctx, "retried dispatch failed", map[string]any{
		"protocol": destination.Protocol,
		"target":   destination.TargetURL,
		"id":       data.Id,
		"error":    dispatchErr.Error(),
	})
	return r.queue.Nack(ctx, r.config.Queue, token, r.config.RetryThreshold)
}

func (r *Router) ack(ctx context.Context, token string) error {
	_, err := r.queue.Ack(ctx, r.config.Queue, token, false)
	return err
}

// Wait blocks until all in-flight dispatches issued by this loop have completed
func (r *Router) Wait() error {
	return r.machine.Wait()
}
