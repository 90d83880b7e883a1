package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast_FanOut(t *testing.T) {
	b := NewBroadcast[int](4)
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	assert.Equal(t, 2, b.Send(7))
	assert.Equal(t, 7, <-a)
	assert.Equal(t, 7, <-c)
}

func TestBroadcast_SlowSubscriberKeepsNewest(t *testing.T) {
	b := NewBroadcast[int](2)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Send(i)
	}

	assert.Equal(t, 4, <-ch)
	assert.Equal(t, 5, <-ch)
}

func TestBroadcast_CancelClosesChannel(t *testing.T) {
	b := NewBroadcast[string](1)
	ch, cancel := b.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())
	assert.Equal(t, 0, b.Send("x"))
}

func TestQueue_TrySendDropsWhenFull(t *testing.T) {
	q := NewQueue[int](1)
	assert.True(t, q.TrySend(1))
	assert.False(t, q.TrySend(2))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, <-q.Recv())
}

func TestQueue_SendHonoursCancellation(t *testing.T) {
	q := NewQueue[int](1)
	require.NoError(t, q.Send(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Send(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogStream_DropsOldest(t *testing.T) {
	s := NewLogStream[int](3)
	for i := 1; i <= 5; i++ {
		s.Send(i)
	}

	assert.Equal(t, uint64(2), s.Dropped())
	assert.Equal(t, 3, <-s.Recv())
	assert.Equal(t, 4, <-s.Recv())
	assert.Equal(t, 5, <-s.Recv())
}

func TestWatch_ToggleNotifies(t *testing.T) {
	w := NewWatch(false)
	changed := w.Changed()

	assert.True(t, Toggle(w))

	select {
	case <-changed:
	default:
		t.Fatal("expected change notification")
	}
	assert.True(t, w.Get())
	assert.False(t, Toggle(w))
}
