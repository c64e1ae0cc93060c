package notify

import (
	"context"
	"time"

	"github.com/autom8ter/notify/errors"
	"github.com/autom8ter/notify/feed"
	"github.com/autom8ter/notify/queue"
	"github.com/autom8ter/notify/store"
	"github.com/autom8ter/notify/util"
	"golang.org/x/sync/errgroup"
)

// Config configures a pipeline instance. Zero values fall back to the defaults in
// DefaultConfig.
type Config struct {
	// Source is the watched collection
	Source ChangeSource `json:"source"`
	// ChangesQueue carries freshly observed changes from the watcher to the primary router
	ChangesQueue string `json:"changesQueue"`
	// RetryQueue carries pinned single-destination items for failed dispatches
	RetryQueue string `json:"retryQueue"`
	// MetadataCollection is the collection whose documents are entity definitions
	MetadataCollection string `json:"metadataCollection"`
	// WatcherFlag / PrimaryFlag / RetryFlag gate the three loops independently
	WatcherFlag string `json:"watcherFlag"`
	PrimaryFlag string `json:"primaryFlag"`
	RetryFlag   string `json:"retryFlag"`
	// RetryThreshold is the delivery-attempt budget before dead-lettering
	RetryThreshold int `json:"retryThreshold"`
	// PollInterval is the router polling interval
	PollInterval time.Duration `json:"pollInterval"`
	// MaxDispatches caps concurrent in-flight dispatches per router loop
	MaxDispatches int `json:"maxDispatches"`
}

// DefaultConfig returns the pipeline defaults for the given source collection
func DefaultConfig(source ChangeSource) Config {
	return Config{
		Source:             source,
		ChangesQueue:       "changes",
		RetryQueue:         "retry",
		MetadataCollection: "Entities",
		WatcherFlag:        "notify.watcher.enabled",
		PrimaryFlag:        "notify.router.primary.enabled",
		RetryFlag:          "notify.router.retry.enabled",
		RetryThreshold:     5,
		PollInterval:       250 * time.Millisecond,
		MaxDispatches:      64,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig(c.Source)
	if c.ChangesQueue == "" {
		c.ChangesQueue = defaults.ChangesQueue
	}
	if c.RetryQueue == "" {
		c.RetryQueue = defaults.RetryQueue
	}
	if c.MetadataCollection == "" {
		c.MetadataCollection = defaults.MetadataCollection
	}
	if c.WatcherFlag == "" {
		c.WatcherFlag = defaults.WatcherFlag
	}
	if c.PrimaryFlag == "" {
		c.PrimaryFlag = defaults.PrimaryFlag
	}
	if c.RetryFlag == "" {
		c.RetryFlag = defaults.RetryFlag
	}
	if c.RetryThreshold <= 0 {
		c.RetryThreshold = defaults.RetryThreshold
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.MaxDispatches <= 0 {
		c.MaxDispatches = defaults.MaxDispatches
	}
	return c
}

// PipelineParams are the external collaborators a pipeline runs against
type PipelineParams struct {
	Config      Config
	Store       store.Store  `validate:"required"`
	Opener      feed.Opener  `validate:"required"`
	Dispatchers Dispatchers  `validate:"required"`
	Finder      EntityFinder `validate:"required"`
	Flags       Flags        `validate:"required"`
	Logger      Logger       `validate:"required"`
}

// Pipeline wires the three loops - change feed watcher, primary router, retry
// router - over a shared store. The loops share no mutable state beyond the queue
// and cache keys in that store.
type Pipeline struct {
	watcher *Watcher
	primary *Router
	retry   *Router
}

// NewPipeline builds a pipeline from the given collaborators
func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if err := util.ValidateStruct(params); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "notify: invalid pipeline params")
	}
	config := params.Config.withDefaults()
	q := queue.New(params.Store)
	cache := NewConfigCache(params.Store)
	checkpoints := feed.NewCheckpoints(params.Store)

	watcher, err := NewWatcher(WatcherParams{
		Config: WatcherConfig{
			Source:  config.Source,
			Queue:   config.ChangesQueue,
			FlagKey: config.WatcherFlag,
		},
		Opener:      params.Opener,
		Queue:       q,
		Checkpoints: checkpoints,
		Flags:       params.Flags,
		Logger:      params.Logger,
	})
	if err != nil {
		return nil, err
	}
	primary, err := NewRouter(RouterParams{
		Config: RouterConfig{
			Queue:              config.ChangesQueue,
			RetryQueue:         config.RetryQueue,
			FlagKey:            config.PrimaryFlag,
			Retry:              false,
			RetryThreshold:     config.RetryThreshold,
			MetadataCollection: config.MetadataCollection,
			PollInterval:       config.PollInterval,
			MaxDispatches:      config.MaxDispatches,
		},
		Queue:       q,
		Cache:       cache,
		Finder:      params.Finder,
		Dispatchers: params.Dispatchers,
		Flags:       params.Flags,
		Logger:      params.Logger,
	})
	if err != nil {
		return nil, err
	}
	retry, err := NewRouter(RouterParams{
		Config: RouterConfig{
			Queue:              config.RetryQueue,
			RetryQueue:         config.RetryQueue,
			FlagKey:            config.RetryFlag,
			Retry:              true,
			RetryThreshold:     config.RetryThreshold,
			MetadataCollection: config.MetadataCollection,
			PollInterval:       config.PollInterval,
			MaxDispatches:      config.MaxDispatches,
		},
		Queue:       q,
		Cache:       cache,
		Finder:      params.Finder,
		Dispatchers: params.Dispatchers,
		Flags:       params.Flags,
		Logger:      params.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		watcher: watcher,
		primary: primary,
		retry:   retry,
	}, nil
}

// Watcher returns the change feed watcher loop
func (p *Pipeline) Watcher() *Watcher {
	return p.watcher
}

// PrimaryRouter returns the router consuming the changes queue
func (p *Pipeline) PrimaryRouter() *Router {
	return p.primary
}

// RetryRouter returns the router consuming the retry queue
func (p *Pipeline) RetryRouter() *Router {
	return p.retry
}

// Run runs the three loops until ctx is done or one of them fails
func (p *Pipeline) Run(ctx context.Context) error {
	egp, ctx := errgroup.WithContext(ctx)
	egp.Go(func() error {
		return p.watcher.Run(ctx)
	})
	egp.Go(func() error {
		return p.primary.Run(ctx)
	})
	egp.Go(func() error {
		return p.retry.Run(ctx)
	})
	return egp.Wait()
}
