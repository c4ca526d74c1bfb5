package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/queue/memory"
)

func receiveDelivery(t *testing.T, deliveries <-chan simplemoderation.Delivery) simplemoderation.Delivery {
	t.Helper()
	select {
	case d, ok := <-deliveries:
		require.True(t, ok, "delivery channel closed unexpectedly")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return simplemoderation.Delivery{}
	}
}

func TestPublishSubscribeAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := memory.New()
	defer q.Close()

	task := simplemoderation.ModerationTask{ContentID: uuid.New(), Text: "hello", Language: "en"}
	require.NoError(t, q.Publish(ctx, task))
	assert.Equal(t, 1, q.Len())

	deliveries, err := q.Subscribe(ctx)
	require.NoError(t, err)

	d := receiveDelivery(t, deliveries)
	assert.Equal(t, task, d.Task)
	assert.Equal(t, 1, d.Attempt)
	require.NoError(t, d.Ack())

	assert.Equal(t, 0, q.Len())
}

func TestNackRedeliversWithIncrementedAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := memory.New()
	defer q.Close()

	task := simplemoderation.ModerationTask{ContentID: uuid.New(), Text: "retry me", Language: "en"}
	require.NoError(t, q.Publish(ctx, task))

	deliveries, err := q.Subscribe(ctx)
	require.NoError(t, err)

	first := receiveDelivery(t, deliveries)
	assert.Equal(t, 1, first.Attempt)
	require.NoError(t, first.Nack())

	second := receiveDelivery(t, deliveries)
	assert.Equal(t, task, second.Task)
	assert.Equal(t, 2, second.Attempt)
	require.NoError(t, second.Ack())
}

func TestRedeliveryPrecedesNewWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := memory.New()
	defer q.Close()

	retried := simplemoderation.ModerationTask{ContentID: uuid.New(), Text: "old", Language: "en"}
	fresh := simplemoderation.ModerationTask{ContentID: uuid.New(), Text: "new", Language: "en"}
	require.NoError(t, q.Publish(ctx, retried))
	require.NoError(t, q.Publish(ctx, fresh))

	deliveries, err := q.Subscribe(ctx)
	require.NoError(t, err)

	first := receiveDelivery(t, deliveries)
	require.Equal(t, retried, first.Task)
	require.NoError(t, first.Nack())

	// The nacked message jumps the queue ahead of fresh work.
	second := receiveDelivery(t, deliveries)
	assert.Equal(t, retried, second.Task)
	require.NoError(t, second.Ack())

	third := receiveDelivery(t, deliveries)
	assert.Equal(t, fresh, third.Task)
	require.NoError(t, third.Ack())
}

func TestRejectDiscards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := memory.New()
	defer q.Close()

	task := simplemoderation.ModerationTask{ContentID: uuid.New(), Text: "poison", Language: "en"}
	require.NoError(t, q.Publish(ctx, task))

	deliveries, err := q.Subscribe(ctx)
	require.NoError(t, err)

	d := receiveDelivery(t, deliveries)
	require.NoError(t, d.Reject())

	assert.Equal(t, 0, q.Len())
	select {
	case extra := <-deliveries:
		t.Fatalf("unexpected redelivery after reject: %+v", extra.Task)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := memory.New()
	defer q.Close()

	task := simplemoderation.ModerationTask{ContentID: uuid.New(), Text: "once", Language: "en"}
	require.NoError(t, q.Publish(ctx, task))

	deliveries, err := q.Subscribe(ctx)
	require.NoError(t, err)

	d := receiveDelivery(t, deliveries)
	require.NoError(t, d.Ack())
	// A late nack on a settled delivery must not requeue.
	require.NoError(t, d.Nack())

	assert.Equal(t, 0, q.Len())
}

func TestClosedQueueRefusesWork(t *testing.T) {
	ctx := context.Background()

	q := memory.New()
	require.NoError(t, q.Close())

	err := q.Publish(ctx, simplemoderation.ModerationTask{ContentID: uuid.New()})
	assert.ErrorIs(t, err, simplemoderation.ErrQueueClosed)

	_, err = q.Subscribe(ctx)
	assert.ErrorIs(t, err, simplemoderation.ErrQueueClosed)

	// Closing twice is harmless.
	assert.NoError(t, q.Close())
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	q := memory.New()
	defer q.Close()

	deliveries, err := q.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-deliveries:
		assert.False(t, ok, "channel should close after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("delivery channel did not close after cancellation")
	}
}
