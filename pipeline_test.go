package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/autom8ter/notify"
	"github.com/autom8ter/notify/queue"
	"github.com/autom8ter/notify/store/inmem"
	"github.com/autom8ter/notify/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPipeline(t *testing.T) {
	t.Run("delivers a change end to end", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		source := notify.ChangeSource{DbName: "testing", CollName: "orders"}
		config := notify.DefaultConfig(source)
		config.PollInterval = 25 * time.Millisecond

		f := testutil.NewFeed()
		capture := testutil.NewCaptureDispatcher()
		finder := testutil.NewFinder(map[string]*notify.Document{
			"orders": testutil.NewEntityDoc("orders", []notify.NotifConfig{
				{Protocol: "webhook", TargetURL: "https://hooks.example.com/orders"},
			}),
		})
		flags := notify.NewMemoryFlags(map[string]bool{
			config.WatcherFlag: true,
			config.PrimaryFlag: true,
			config.RetryFlag:   true,
		})
		pipeline, err := notify.NewPipeline(notify.PipelineParams{
			Config:      config,
			Store:       inmem.New(),
			Opener:      testutil.NewOpener(f),
			Dispatchers: notify.Dispatchers{"webhook": capture},
			Finder:      finder,
			Flags:       flags,
			Logger:      notify.NoOpLogger(),
		})
		assert.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			done <- pipeline.Run(ctx)
		}()

		event := testutil.NewInsertEventFor("testing", "orders", "order-1", map[string]any{
			"_id":   "order-1",
			"total": 42.5,
		})
		assert.NoError(t, f.Push(ctx, event))

		assert.Eventually(t, func() bool {
			return len(capture.Dispatches()) == 1
		}, 5*time.Second, 10*time.Millisecond)
		delivered := capture.Dispatches()[0]
		assert.Equal(t, "order-1", delivered.Data.Id)
		assert.Equal(t, "orders", delivered.Data.Entity)
		assert.Equal(t, 42.5, delivered.Data.Document["total"])

		cancel()
		assert.NoError(t, <-done)
	})
	t.Run("dead-letters destinations that never recover", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		source := notify.ChangeSource{DbName: "testing", CollName: "orders"}
		config := notify.DefaultConfig(source)
		config.PollInterval = 25 * time.Millisecond

		target := "https://hooks.example.com/orders"
		f := testutil.NewFeed()
		capture := testutil.NewCaptureDispatcher()
		capture.FailDestination(target, assert.AnError)
		finder := testutil.NewFinder(map[string]*notify.Document{
			"orders": testutil.NewEntityDoc("orders", []notify.NotifConfig{
				{Protocol: "webhook", TargetURL: target},
			}),
		})
		flags := notify.NewMemoryFlags(map[string]bool{
			config.WatcherFlag: true,
			config.PrimaryFlag: true,
			config.RetryFlag:   true,
		})
		s := inmem.New()
		pipeline, err := notify.NewPipeline(notify.PipelineParams{
			Config:      config,
			Store:       s,
			Opener:      testutil.NewOpener(f),
			Dispatchers: notify.Dispatchers{"webhook": capture},
			Finder:      finder,
			Flags:       flags,
			Logger:      notify.NoOpLogger(),
		})
		assert.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			done <- pipeline.Run(ctx)
		}()

		event := testutil.NewInsertEventFor("testing", "orders", "order-1", map[string]any{"_id": "order-1"})
		assert.NoError(t, f.Push(ctx, event))

		// the retry loop redelivers the pinned destination until the attempt budget
		// runs out, then parks the item on the dead letter list
		q := queue.New(s)
		assert.Eventually(t, func() bool {
			dead, err := q.DeadLetters(ctx, config.RetryQueue)
			return err == nil && len(dead) == 1
		}, 5*time.Second, 10*time.Millisecond)
		dead, err := q.DeadLetters(ctx, config.RetryQueue)
		assert.NoError(t, err)
		item, err := notify.DecodeChangeQueueItem(dead[0])
		assert.NoError(t, err)
		assert.Equal(t, []notify.NotifConfig{{Protocol: "webhook", TargetURL: target}}, item.NotifConfigs)
		assert.Empty(t, capture.Dispatches())

		cancel()
		assert.NoError(t, <-done)
	})
}
