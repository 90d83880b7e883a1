package pump

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/sim"
)

func newPump(t *testing.T) (*MotorPump, *sim.Motor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := sim.NewMotor(0)
	p := New(m)
	require.NoError(t, p.Init(ctx, 1, device.PumpFeedback{
		Tacho:  bus.NewBroadcast[model.Reading](8),
		Health: bus.NewBroadcast[model.DeviceEvent](2),
	}))
	return p, m
}

func TestRunFor_StartsWaitsAndFloats(t *testing.T) {
	p, m := newPump(t)
	var slept time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	require.NoError(t, p.RunFor(context.Background(), 2*time.Second))

	assert.Equal(t, 2*time.Second, slept)
	assert.Equal(t, []string{"start 100", "float"}, m.Calls())
}

func TestRunFor_SupersededByStop(t *testing.T) {
	p, m := newPump(t)
	sleeping := make(chan struct{})
	p.sleep = func(ctx context.Context, d time.Duration) error {
		close(sleeping)
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- p.RunFor(context.Background(), time.Hour) }()

	<-sleeping
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, <-done)

	assert.Equal(t, []string{"start 100", "brake"}, m.Calls())
}

func TestRunFor_CancelledStillFloats(t *testing.T) {
	p, m := newPump(t)
	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(c context.Context, d time.Duration) error {
		cancel()
		<-c.Done()
		return c.Err()
	}

	err := p.RunFor(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"start 100", "float"}, m.Calls())
}

func TestRunStopFloat(t *testing.T) {
	p, m := newPump(t)
	ctx := context.Background()
	p.Duty = 80

	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.Stop(ctx))
	require.NoError(t, p.Float(ctx))

	assert.Equal(t, []string{"start 80", "brake", "float"}, m.Calls())
}
