package queue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autom8ter/notify/queue"
	"github.com/autom8ter/notify/store/inmem"
)

func TestDurableQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("fifo within one queue", func(t *testing.T) {
		q := queue.New(inmem.New())
		count, err := q.Enqueue(ctx, "changes", "m1", "m2", "m3")
		assert.NoError(t, err)
		assert.EqualValues(t, 3, count)
		for _, want := range []string{"m1", "m2", "m3"} {
			got, ok, err := q.Dequeue(ctx, "changes")
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, want, got)
		}
	})

	t.Run("dequeued message is invisible but recoverable", func(t *testing.T) {
		q := queue.New(inmem.New())
		_, err := q.Enqueue(ctx, "changes", "m1")
		assert.NoError(t, err)
		token, ok, err := q.Dequeue(ctx, "changes")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "m1", token)

		_, ok, err = q.Dequeue(ctx, "changes")
		assert.NoError(t, err)
		assert.False(t, ok)

		inflight, err := q.InFlight(ctx, "changes")
		assert.NoError(t, err)
		assert.Equal(t, []string{"m1"}, inflight)
	})

	t.Run("ack removes from in-flight exactly once", func(t *testing.T) {
		q := queue.New(inmem.New())
		_, err := q.Enqueue(ctx, "changes", "m1")
		assert.NoError(t, err)
		token, _, err := q.Dequeue(ctx, "changes")
		assert.NoError(t, err)

		acked, err := q.Ack(ctx, "changes", token, false)
		assert.NoError(t, err)
		assert.True(t, acked)
		inflight, err := q.InFlight(ctx, "changes")
		assert.NoError(t, err)
		assert.Empty(t, inflight)

		acked, err = q.Ack(ctx, "changes", token, false)
		assert.NoError(t, err)
		assert.False(t, acked)
	})

	t.Run("ack with requeue returns the message", func(t *testing.T) {
		q := queue.New(inmem.New())
		_, err := q.Enqueue(ctx, "changes", "m1")
		assert.NoError(t, err)
		token, _, err := q.Dequeue(ctx, "changes")
		assert.NoError(t, err)
		acked, err := q.Ack(ctx, "changes", token, true)
		assert.NoError(t, err)
		assert.True(t, acked)
		count, err := q.Len(ctx, "changes")
		assert.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("nack below threshold requeues", func(t *testing.T) {
		q := queue.New(inmem.New())
		_, err := q.Enqueue(ctx, "retry", "m1")
		assert.NoError(t, err)
		token, _, err := q.Dequeue(ctx, "retry")
		assert.NoError(t, err)
		assert.Nil(t, q.Nack(ctx, "retry", token, 3))
		count, err := q.Len(ctx, "retry")
		assert.NoError(t, err)
		assert.EqualValues(t, 1, count)
		dead, err := q.DeadLetters(ctx, "retry")
		assert.NoError(t, err)
		assert.Empty(t, dead)
	})

	t.Run("nack past threshold dead-letters", func(t *testing.T) {
		q := queue.New(inmem.New())
		_, err := q.Enqueue(ctx, "retry", "m1")
		assert.NoError(t, err)
		for i := 0; i < 3; i++ {
			token, ok, err := q.Dequeue(ctx, "retry")
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Nil(t, q.Nack(ctx, "retry", token, 3))
		}
		count, err := q.Len(ctx, "retry")
		assert.NoError(t, err)
		assert.EqualValues(t, 0, count)
		dead, err := q.DeadLetters(ctx, "retry")
		assert.NoError(t, err)
		assert.Equal(t, []string{"m1"}, dead)
	})

	t.Run("nack of an unknown token is a no-op", func(t *testing.T) {
		q := queue.New(inmem.New())
		assert.Nil(t, q.Nack(ctx, "retry", "ghost", 3))
		dead, err := q.DeadLetters(ctx, "retry")
		assert.NoError(t, err)
		assert.Empty(t, dead)
	})

	t.Run("queues are independent", func(t *testing.T) {
		q := queue.New(inmem.New())
		_, err := q.Enqueue(ctx, "changes", "c1")
		assert.NoError(t, err)
		_, err = q.Enqueue(ctx, "retry", "r1")
		assert.NoError(t, err)
		got, _, err := q.Dequeue(ctx, "retry")
		assert.NoError(t, err)
		assert.Equal(t, "r1", got)
		count, err := q.Len(ctx, "changes")
		assert.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}
