// Package arm implements the planar positioner on top of two hub motors.
package arm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

const (
	DefaultSpeed            int8 = 50
	DefaultCalibrationSpeed int8 = 20
	DefaultCalibrationIdle       = 500 * time.Millisecond
)

type axis struct {
	name      model.Axis
	motor     device.Motor
	telemetry *bus.Broadcast[model.MotorTelemetry]
	state     *bus.Broadcast[model.CmdState]
}

// Arm satisfies device.Arm. The z coordinate has no motor and is only
// carried along with goto requests.
type Arm struct {
	id uint8
	x  axis
	y  axis

	Speed            int8
	CalibrationSpeed int8
	CalibrationIdle  time.Duration

	mu  sync.RWMutex
	pos model.Position
	fb  device.ArmFeedback
}

func New(x, y device.Motor) *Arm {
	return &Arm{
		x:                axis{name: model.AxisX, motor: x},
		y:                axis{name: model.AxisY, motor: y},
		Speed:            DefaultSpeed,
		CalibrationSpeed: DefaultCalibrationSpeed,
		CalibrationIdle:  DefaultCalibrationIdle,
	}
}

func (a *Arm) Init(ctx context.Context, id uint8, fb device.ArmFeedback) error {
	a.id = id
	a.fb = fb
	health := bus.NewBroadcast[model.DeviceEvent](4)

	for _, ax := range []*axis{&a.x, &a.y} {
		ax.telemetry = bus.NewBroadcast[model.MotorTelemetry](16)
		ax.state = bus.NewBroadcast[model.CmdState](8)

		// Subscribe before the motor starts reporting.
		tel, cancelTel := ax.telemetry.Subscribe()
		st, cancelSt := ax.state.Subscribe()
		go a.forward(ctx, ax.name, tel, st, func() { cancelTel(); cancelSt() })

		if err := ax.motor.Init(ctx, device.MotorFeedback{Telemetry: ax.telemetry, State: ax.state, Health: health}); err != nil {
			return fmt.Errorf("init arm %d axis %s: %w", id, ax.name, model.DeviceIO(err))
		}
	}

	hc, cancelHealth := health.Subscribe()
	go func() {
		defer cancelHealth()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-hc:
				ev.ID = id
				if fb.Health != nil {
					fb.Health.Send(ev)
				}
			}
		}
	}()

	log.Info().Uint8("arm", id).Msg("Arm initialized")
	return nil
}

func (a *Arm) forward(ctx context.Context, name model.Axis, tel <-chan model.MotorTelemetry, st <-chan model.CmdState, done func()) {
	defer done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-tel:
			a.apply(name, frame)
		case s := <-st:
			// Frames queued ahead of the state go first, so Idle is never
			// reported before the position it stopped at.
			for pending := true; pending; {
				select {
				case frame := <-tel:
					a.apply(name, frame)
				default:
					pending = false
				}
			}
			if a.fb.State != nil {
				a.fb.State.Send(model.AxisState{Axis: name, State: s})
			}
		}
	}
}

func (a *Arm) apply(name model.Axis, frame model.MotorTelemetry) {
	a.mu.Lock()
	switch name {
	case model.AxisX:
		a.pos.X = frame.Pos
	case model.AxisY:
		a.pos.Y = frame.Pos
	}
	a.mu.Unlock()
	if a.fb.Position != nil {
		a.fb.Position.Send(model.AxisPosition{Axis: name, Pos: frame.Pos})
	}
}

func (a *Arm) Goto(ctx context.Context, x, y, z int32) error {
	a.mu.Lock()
	a.pos.Z = z
	a.mu.Unlock()
	if a.fb.Position != nil {
		a.fb.Position.Send(model.AxisPosition{Axis: model.AxisZ, Pos: z})
	}

	if err := a.x.motor.GotoAbs(ctx, x, a.Speed); err != nil {
		return model.DeviceIO(err)
	}
	return model.DeviceIO(a.y.motor.GotoAbs(ctx, y, a.Speed))
}

func (a *Arm) GotoX(ctx context.Context, x int32) error {
	return model.DeviceIO(a.x.motor.GotoAbs(ctx, x, a.Speed))
}

func (a *Arm) GotoY(ctx context.Context, y int32) error {
	return model.DeviceIO(a.y.motor.GotoAbs(ctx, y, a.Speed))
}

func (a *Arm) StartX(ctx context.Context, speed int8) error {
	return model.DeviceIO(a.x.motor.Start(ctx, speed))
}

func (a *Arm) StartY(ctx context.Context, speed int8) error {
	return model.DeviceIO(a.y.motor.Start(ctx, speed))
}

func (a *Arm) StopX(ctx context.Context) error {
	return model.DeviceIO(a.x.motor.Brake(ctx))
}

func (a *Arm) StopY(ctx context.Context) error {
	return model.DeviceIO(a.y.motor.Brake(ctx))
}

func (a *Arm) Stop(ctx context.Context) error {
	errX := a.StopX(ctx)
	errY := a.StopY(ctx)
	if errX != nil {
		return errX
	}
	return errY
}

func (a *Arm) UpdatePos(ctx context.Context) error {
	if err := a.x.motor.RequestUpdate(ctx); err != nil {
		return model.DeviceIO(err)
	}
	return model.DeviceIO(a.y.motor.RequestUpdate(ctx))
}

func (a *Arm) Position() model.Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

func (a *Arm) Calibrate(ctx context.Context) (model.Position, error) {
	before := a.Position()
	reached := [2]*int32{}

	g, gctx := errgroup.WithContext(ctx)
	for i, ax := range []*axis{&a.x, &a.y} {
		g.Go(func() error {
			pos, err := calibrateAxis(gctx, ax.motor, ax.telemetry, a.CalibrationSpeed, a.CalibrationIdle)
			reached[i] = pos
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.Position{}, fmt.Errorf("calibrate arm %d: %w", a.id, model.DeviceIO(err))
	}
	if reached[0] != nil {
		before.X = *reached[0]
	}
	if reached[1] != nil {
		before.Y = *reached[1]
	}

	for _, ax := range []*axis{&a.x, &a.y} {
		if err := ax.motor.PresetEncoder(ctx, 0); err != nil {
			return before, fmt.Errorf("zero arm %d axis %s: %w", a.id, ax.name, model.DeviceIO(err))
		}
	}

	a.mu.Lock()
	a.pos.X, a.pos.Y = 0, 0
	a.mu.Unlock()

	log.Info().
		Uint8("arm", a.id).
		Int32("x_before", before.X).
		Int32("y_before", before.Y).
		Msg("Arm calibrated")
	return before, nil
}

// calibrateAxis runs one axis toward its zero endstop. The axis is done
// when its speed, having gone negative, returns to zero or above, or when
// no negative speed is seen within idle. It returns the last position
// reported while moving, nil if the axis never moved.
func calibrateAxis(ctx context.Context, m device.Motor, telemetry *bus.Broadcast[model.MotorTelemetry], speed int8, idle time.Duration) (*int32, error) {
	frames, cancel := telemetry.Subscribe()
	defer cancel()

	if err := m.Start(ctx, -speed); err != nil {
		return nil, err
	}

	timer := time.NewTimer(idle)
	defer timer.Stop()

	var last *int32
	started := false
	for {
		select {
		case <-ctx.Done():
			m.Float(context.WithoutCancel(ctx))
			return last, ctx.Err()
		case frame := <-frames:
			if frame.Speed < 0 {
				started = true
				pos := frame.Pos
				last = &pos
			} else if started {
				pos := frame.Pos
				last = &pos
				return last, m.Float(ctx)
			}
		case <-timer.C:
			if !started {
				return last, m.Float(ctx)
			}
		}
	}
}
