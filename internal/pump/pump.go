// Package pump drives a water pump through a single hub motor.
package pump

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

const DefaultDuty int8 = 100

// MotorPump satisfies device.Pump. Every primitive is serialized; a timed
// run is superseded by any later command.
type MotorPump struct {
	Duty int8

	motor  device.Motor
	id     uint8
	mu     sync.Mutex
	cancel context.CancelFunc
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(m device.Motor) *MotorPump {
	return &MotorPump{Duty: DefaultDuty, motor: m, sleep: sleepCtx}
}

func (p *MotorPump) Init(ctx context.Context, id uint8, fb device.PumpFeedback) error {
	p.id = id
	telemetry := bus.NewBroadcast[model.MotorTelemetry](8)
	frames, cancel := telemetry.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-frames:
				if fb.Tacho != nil {
					speed := float32(f.Speed)
					if speed < 0 {
						speed = -speed
					}
					fb.Tacho.Send(model.ValidReading(id, speed))
				}
			}
		}
	}()

	var health *bus.Broadcast[model.DeviceEvent]
	if fb.Health != nil {
		health = bus.NewBroadcast[model.DeviceEvent](4)
		events, cancelHealth := health.Subscribe()
		go func() {
			defer cancelHealth()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-events:
					ev.ID = id
					fb.Health.Send(ev)
				}
			}
		}()
	}

	err := p.motor.Init(ctx, device.MotorFeedback{
		Telemetry: telemetry,
		State:     bus.NewBroadcast[model.CmdState](1),
		Health:    health,
	})
	if err != nil {
		return fmt.Errorf("init pump %d: %w", id, model.DeviceIO(err))
	}
	return nil
}

func (p *MotorPump) supersede() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *MotorPump) Run(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supersede()
	return model.DeviceIO(p.motor.Start(ctx, p.Duty))
}

// Stop brakes the pump.
func (p *MotorPump) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supersede()
	return model.DeviceIO(p.motor.Brake(ctx))
}

// Float lets the pump coast.
func (p *MotorPump) Float(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supersede()
	return model.DeviceIO(p.motor.Float(ctx))
}

// RunFor starts the pump, waits d and floats it. A cancelled ctx still
// floats the pump before returning.
func (p *MotorPump) RunFor(ctx context.Context, d time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.supersede()
	p.cancel = cancel
	err := p.motor.Start(ctx, p.Duty)
	p.mu.Unlock()
	if err != nil {
		return model.DeviceIO(err)
	}

	log.Debug().Uint8("pump", p.id).Dur("duration", d).Msg("Pump running")
	p.sleep(runCtx, d)

	p.mu.Lock()
	defer p.mu.Unlock()
	if runCtx.Err() != nil && ctx.Err() == nil {
		// superseded by a later command
		return nil
	}
	p.cancel = nil
	if err := p.motor.Float(context.WithoutCancel(ctx)); err != nil {
		return model.DeviceIO(err)
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
