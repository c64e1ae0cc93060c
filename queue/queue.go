package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/autom8ter/notify/store"
)

// DurableQueue is a FIFO-per-name queue with at-least-once delivery over a shared
// store. Dequeue atomically moves the oldest visible message into a per-queue
// in-flight list, so a crash between Dequeue and Ack leaves the message recoverable
// instead of lost. The dequeue token is the message content itself - there is no
// synthetic message id.
//
// Messages that fail past their retry threshold are moved to a <queue>:dead list and
// kept for inspection, never silently dropped.
type DurableQueue struct {
	store store.Store
}

// New returns a durable queue over the given store
func New(s store.Store) *DurableQueue {
	return &DurableQueue{store: s}
}

func queueKey(queue string) string {
	return "queue:" + queue
}

func inflightKey(queue string) string {
	return queueKey(queue) + ":inflight"
}

func deadKey(queue string) string {
	return queueKey(queue) + ":dead"
}

func attemptsKey(queue, token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%s:attempts:%s", queueKey(queue), hex.EncodeToString(sum[:]))
}

// Enqueue appends messages in submission order and returns the number appended.
// Duplicate content is allowed.
func (q *DurableQueue) Enqueue(ctx context.Context, queue string, messages ...string) (int64, error) {
	if len(messages) == 0 {
		return 0, nil
	}
	if _, err := q.store.Push(ctx, queueKey(queue), messages...); err != nil {
		return 0, err
	}
	return int64(len(messages)), nil
}

// Dequeue atomically moves the oldest visible message in-flight and returns it as its
// own token. ok is false when the queue is empty - the signal for "no work", not an
// error.
func (q *DurableQueue) Dequeue(ctx context.Context, queue string) (string, bool, error) {
	return q.store.PopPush(ctx, queueKey(queue), inflightKey(queue))
}

// Ack removes one matching message from the in-flight list and clears its attempt
// counter. It returns false when no matching message is in flight (already acked or
// expired). With requeue, the message is additionally returned to the tail of the
// main queue.
func (q *DurableQueue) Ack(ctx context.Context, queue, token string, requeue bool) (bool, error) {
	removed, err := q.store.Rem(ctx, inflightKey(queue), token)
	if err != nil {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}
	if err := q.store.Del(ctx, attemptsKey(queue, token)); err != nil {
		return false, err
	}
	if requeue {
		if _, err := q.store.Push(ctx, queueKey(queue), token); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Nack records a failed delivery attempt. Below retryThreshold the message returns to
// the main queue; at or past it the message is dead-lettered and its counter cleared.
// A token with no matching in-flight message is a no-op.
func (q *DurableQueue) Nack(ctx context.Context, queue, token string, retryThreshold int) error {
	removed, err := q.store.Rem(ctx, inflightKey(queue), token)
	if err != nil {
		return err
	}
	if removed == 0 {
		return nil
	}
	attempts, err := q.store.Incr(ctx, attemptsKey(queue, token))
	if err != nil {
		return err
	}
	if attempts < int64(retryThreshold) {
		_, err = q.store.Push(ctx, queueKey(queue), token)
		return err
	}
	if _, err := q.store.Push(ctx, deadKey(queue), token); err != nil {
		return err
	}
	return q.store.Del(ctx, attemptsKey(queue, token))
}

// Len returns the number of visible messages
func (q *DurableQueue) Len(ctx context.Context, queue string) (int64, error) {
	return q.store.Len(ctx, queueKey(queue))
}

// InFlight returns the messages dequeued but not yet acked, oldest first
func (q *DurableQueue) InFlight(ctx context.Context, queue string) ([]string, error) {
	return q.store.Range(ctx, inflightKey(queue))
}

// DeadLetters returns the messages that exhausted their retry budget, oldest first
func (q *DurableQueue) DeadLetters(ctx context.Context, queue string) ([]string, error) {
	return q.store.Range(ctx, deadKey(queue))
}
