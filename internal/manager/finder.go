package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

var ErrNoRemote = errors.New("no remote control attached")

// FindPosition lets the operator drive the arm of a water zone with the
// remote. Confirm stores the reached position as the zone's target and
// returns it; Back or Exit return nil and leave the target unchanged.
// The house lock is held for the whole session.
func (m *Manager) FindPosition(ctx context.Context, waterID uint8) (*model.Position, error) {
	s, err := m.house.WaterSettings(waterID)
	if err != nil {
		return nil, err
	}
	armID := s.Position.ArmID
	cmds, err := m.house.ArmCommands(armID)
	if err != nil {
		return nil, err
	}
	states, err := m.house.ArmStates(armID)
	if err != nil {
		return nil, err
	}
	if m.opts.Remote == nil {
		return nil, ErrNoRemote
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan model.RemoteEvent, 8)
	if err := m.opts.Remote.Init(ctx, events); err != nil {
		return nil, model.DeviceIO(err)
	}

	if err := m.house.Lock(ctx); err != nil {
		return nil, err
	}
	defer m.house.Unlock()

	log.Info().Uint8("water", waterID).Uint8("arm", armID).Msg("Position finder started")

	// Subscribed before the final stops so their Idle is not missed.
	sub, cancelSub := states.Subscribe()
	defer cancelSub()

	f := finder{cmds: cmds, speed: m.opts.RemoteSpeed}
	confirmed, err := f.run(ctx, events)
	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	f.stopAll(stopCtx)
	stopCancel()
	if err != nil {
		return nil, err
	}
	if !confirmed {
		log.Info().Uint8("water", waterID).Msg("Position finder cancelled")
		return nil, nil
	}

	idle, err := m.settle(ctx, armID, sub)
	if err != nil {
		return nil, err
	}
	if !idle {
		return nil, fmt.Errorf("arm %d did not stop within %s", armID, m.opts.ArmIdleTimeout)
	}
	pos, err := m.house.ArmPosition(armID)
	if err != nil {
		return nil, err
	}
	if err := m.house.SetWaterPosition(waterID, pos); err != nil {
		return nil, err
	}
	m.syslog("Water zone %d position %s", waterID, pos)
	return &pos, nil
}

// settle waits until the arm reports Idle, so the position read next is
// where it came to rest.
func (m *Manager) settle(ctx context.Context, armID uint8, states <-chan model.CmdState) (bool, error) {
	if m.armState(armID) == model.Idle {
		return true, nil
	}
	return waitIdle(ctx, states, func() model.CmdState { return m.armState(armID) }, m.opts.ArmIdleTimeout)
}

type finder struct {
	cmds    chan<- model.ArmCmd
	speed   int8
	movingX bool
	movingY bool
}

func (f *finder) run(ctx context.Context, events <-chan model.RemoteEvent) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case ev := <-events:
			cmd, done, confirmed := f.translate(ev)
			if done {
				return confirmed, nil
			}
			if cmd == nil {
				continue
			}
			if err := f.send(ctx, *cmd); err != nil {
				return false, err
			}
		}
	}
}

// translate maps a remote event to an arm command. Right and Up drive
// the positive direction of their axis.
func (f *finder) translate(ev model.RemoteEvent) (cmd *model.ArmCmd, done, confirmed bool) {
	switch ev.Button {
	case model.RemoteConfirm:
		return nil, ev.Pressed, true
	case model.RemoteBack, model.RemoteExit:
		return nil, ev.Pressed, false
	case model.RemoteRight, model.RemoteLeft:
		if !ev.Pressed {
			f.movingX = false
			return &model.ArmCmd{Kind: model.ArmStopX}, false, false
		}
		speed := f.speed
		if ev.Button == model.RemoteLeft {
			speed = -speed
		}
		f.movingX = true
		return &model.ArmCmd{Kind: model.ArmStartX, Speed: speed}, false, false
	case model.RemoteUp, model.RemoteDown:
		if !ev.Pressed {
			f.movingY = false
			return &model.ArmCmd{Kind: model.ArmStopY}, false, false
		}
		speed := f.speed
		if ev.Button == model.RemoteDown {
			speed = -speed
		}
		f.movingY = true
		return &model.ArmCmd{Kind: model.ArmStartY, Speed: speed}, false, false
	}
	return nil, false, false
}

func (f *finder) send(ctx context.Context, cmd model.ArmCmd) error {
	select {
	case f.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopAll halts any axis still moving when the session ends.
func (f *finder) stopAll(ctx context.Context) {
	if f.movingX {
		f.send(ctx, model.ArmCmd{Kind: model.ArmStopX})
		f.movingX = false
	}
	if f.movingY {
		f.send(ctx, model.ArmCmd{Kind: model.ArmStopY})
		f.movingY = false
	}
}
