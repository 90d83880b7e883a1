package manager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/sim"
)

func press(b model.RemoteButton) model.RemoteEvent {
	return model.RemoteEvent{Button: b, Pressed: true}
}

func release(b model.RemoteButton) model.RemoteEvent {
	return model.RemoteEvent{Button: b, Pressed: false}
}

func finderHouse(cmds chan model.ArmCmd) *mockHouse {
	h := newMockHouse()
	h.On("WaterSettings", uint8(1)).Return(waterSettings, nil)
	h.On("ArmCommands", uint8(1)).Return((chan<- model.ArmCmd)(cmds), nil)
	h.On("ArmStates", uint8(1)).Return(h.states, nil)
	return h
}

// idleArm serves a confirmed session with an arm already at rest.
func idleArm(h *mockHouse) *mockHouse {
	h.On("ArmState", uint8(1)).Return(model.Idle, nil)
	h.On("ArmPosition", uint8(1)).Return(model.Position{X: 100, Y: 100}, nil)
	return h
}

func sent(cmds chan model.ArmCmd) []model.ArmCmd {
	var out []model.ArmCmd
	for {
		select {
		case c := <-cmds:
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestFindPosition_Cancel(t *testing.T) {
	cmds := make(chan model.ArmCmd, 16)
	h := finderHouse(cmds)
	remote := &sim.Remote{Script: []model.RemoteEvent{
		press(model.RemoteRight),
		press(model.RemoteRight),
		press(model.RemoteBack),
	}}
	m, _ := newTestManager(h, Options{Remote: remote})

	pos, err := m.FindPosition(context.Background(), 1)

	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, []model.ArmCmd{
		{Kind: model.ArmStartX, Speed: DefaultRemoteSpeed},
		{Kind: model.ArmStartX, Speed: DefaultRemoteSpeed},
		{Kind: model.ArmStopX},
	}, sent(cmds))
	h.AssertNotCalled(t, "SetWaterPosition", mock.Anything, mock.Anything)
	assert.Equal(t, 1, h.locks)
	assert.False(t, h.isHeld())
}

func TestFindPosition_Confirm(t *testing.T) {
	cmds := make(chan model.ArmCmd, 16)
	h := idleArm(finderHouse(cmds))
	h.On("SetWaterPosition", uint8(1), model.Position{X: 100, Y: 100}).Return(nil).Once()
	remote := &sim.Remote{Script: []model.RemoteEvent{
		press(model.RemoteDown),
		release(model.RemoteDown),
		press(model.RemoteLeft),
		release(model.RemoteLeft),
		press(model.RemoteConfirm),
	}}
	m, _ := newTestManager(h, Options{Remote: remote, RemoteSpeed: 30})

	pos, err := m.FindPosition(context.Background(), 1)

	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, model.Position{X: 100, Y: 100}, *pos)
	assert.Equal(t, []model.ArmCmd{
		{Kind: model.ArmStartY, Speed: -30},
		{Kind: model.ArmStopY},
		{Kind: model.ArmStartX, Speed: -30},
		{Kind: model.ArmStopX},
	}, sent(cmds))
	h.AssertExpectations(t)
	assert.Contains(t, drainSysLog(m), "Water zone 1 position (100,100,0)")
}

func TestFindPosition_ConfirmWhileMovingReadsRestingPosition(t *testing.T) {
	cmds := make(chan model.ArmCmd, 16)
	h := finderHouse(cmds)
	h.On("ArmState", uint8(1)).Return(model.Busy, nil)
	var stopped atomic.Bool
	h.On("ArmPosition", uint8(1)).Return(model.Position{X: 140, Y: 100}, nil).Run(func(mock.Arguments) {
		assert.True(t, stopped.Load(), "position read before the arm came to rest")
	})
	h.On("SetWaterPosition", uint8(1), model.Position{X: 140, Y: 100}).Return(nil).Once()
	remote := &sim.Remote{Script: []model.RemoteEvent{
		press(model.RemoteRight),
		press(model.RemoteConfirm),
	}}
	m, _ := newTestManager(h, Options{Remote: remote, ArmIdleTimeout: time.Second})

	go func() {
		for cmd := range cmds {
			if cmd.Kind == model.ArmStopX {
				time.Sleep(20 * time.Millisecond)
				stopped.Store(true)
				h.states.Send(model.Idle)
				return
			}
		}
	}()

	pos, err := m.FindPosition(context.Background(), 1)

	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, model.Position{X: 140, Y: 100}, *pos)
	h.AssertExpectations(t)
}

func TestFindPosition_ArmNeverStops(t *testing.T) {
	cmds := make(chan model.ArmCmd, 16)
	h := finderHouse(cmds)
	h.On("ArmState", uint8(1)).Return(model.Busy, nil)
	remote := &sim.Remote{Script: []model.RemoteEvent{
		press(model.RemoteUp),
		press(model.RemoteConfirm),
	}}
	m, _ := newTestManager(h, Options{Remote: remote, ArmIdleTimeout: 30 * time.Millisecond})

	pos, err := m.FindPosition(context.Background(), 1)

	assert.ErrorContains(t, err, "did not stop")
	assert.Nil(t, pos)
	h.AssertNotCalled(t, "ArmPosition", mock.Anything)
	h.AssertNotCalled(t, "SetWaterPosition", mock.Anything, mock.Anything)
	assert.False(t, h.isHeld())
}

func TestFindPosition_ExitWhileMovingStopsBothAxes(t *testing.T) {
	cmds := make(chan model.ArmCmd, 16)
	h := finderHouse(cmds)
	remote := &sim.Remote{Script: []model.RemoteEvent{
		press(model.RemoteUp),
		press(model.RemoteRight),
		press(model.RemoteExit),
	}}
	m, _ := newTestManager(h, Options{Remote: remote})

	pos, err := m.FindPosition(context.Background(), 1)

	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, []model.ArmCmd{
		{Kind: model.ArmStartY, Speed: DefaultRemoteSpeed},
		{Kind: model.ArmStartX, Speed: DefaultRemoteSpeed},
		{Kind: model.ArmStopX},
		{Kind: model.ArmStopY},
	}, sent(cmds))
}

func TestFindPosition_UnknownZone(t *testing.T) {
	h := newMockHouse()
	h.On("WaterSettings", uint8(4)).Return(model.WaterSettings{}, model.ZoneNotFound(model.KindWater, 4))
	m, _ := newTestManager(h, Options{Remote: &sim.Remote{}})

	_, err := m.FindPosition(context.Background(), 4)
	assert.ErrorIs(t, err, model.ErrZoneNotFound)
	assert.Zero(t, h.locks)
}

func TestFindPosition_NoRemote(t *testing.T) {
	h := finderHouse(make(chan model.ArmCmd, 1))
	m, _ := newTestManager(h, Options{})

	_, err := m.FindPosition(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestFindPosition_CancelledContext(t *testing.T) {
	cmds := make(chan model.ArmCmd, 16)
	h := finderHouse(cmds)
	remote := &sim.Remote{}
	m, _ := newTestManager(h, Options{Remote: remote})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.FindPosition(ctx, 1)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.isHeld())
}
