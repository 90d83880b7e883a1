package zone

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type PumpFacts struct {
	Running  bool
	Degraded bool
	Fault    string
}

type Pump struct {
	Device device.Pump

	id       uint8
	bus      *Bus
	settings settingsBox[model.PumpSettings]
	status   *Status[PumpFacts]

	tacho   *bus.Broadcast[model.Reading]
	health  *bus.Broadcast[model.DeviceEvent]
	speeds  <-chan model.Reading
	events  <-chan model.DeviceEvent
	cmds    chan model.PumpMsg
	results chan error
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewPump(id uint8, s model.PumpSettings, b *Bus) *Pump {
	z := &Pump{
		id:      id,
		bus:     b,
		status:  newStatus(PumpFacts{}),
		tacho:   bus.NewBroadcast[model.Reading](16),
		health:  bus.NewBroadcast[model.DeviceEvent](4),
		cmds:    make(chan model.PumpMsg, 8),
		results: make(chan error, 8),
		sleep:   sleepCtx,
	}
	z.settings.set(s)
	z.speeds, _ = z.tacho.Subscribe()
	z.events, _ = z.health.Subscribe()
	return z
}

func (z *Pump) Kind() model.Kind                          { return model.KindPump }
func (z *Pump) ID() uint8                                 { return z.id }
func (z *Pump) Display() model.DisplayStatus              { return z.status.Display() }
func (z *Pump) Status() *Status[PumpFacts]                { return z.status }
func (z *Pump) Settings() model.PumpSettings              { return z.settings.get() }
func (z *Pump) Tacho() *bus.Broadcast[model.Reading]      { return z.tacho }
func (z *Pump) Health() *bus.Broadcast[model.DeviceEvent] { return z.health }

// Commands is the pump's command channel. Commands run one at a time.
func (z *Pump) Commands() chan<- model.PumpMsg { return z.cmds }

func (z *Pump) Config() model.ZoneConfig {
	s := z.settings.get()
	return model.ZoneConfig{Kind: model.KindPump, ID: z.id, Pump: &s}
}

func (z *Pump) Apply(cfg model.ZoneConfig) error {
	if err := checkConfig(cfg, model.KindPump, z.id); err != nil {
		return err
	}
	z.settings.set(*cfg.Pump)
	return nil
}

func (z *Pump) Init(ctx context.Context, fn Attach) {
	if z.Device != nil && !attach(ctx, fn, model.KindPump, z.id, "motor", func(ctx context.Context) error {
		return z.Device.Init(ctx, z.id, device.PumpFeedback{Tacho: z.tacho, Health: z.health})
	}) {
		z.Device = nil
	}
}

func (z *Pump) Run(ctx context.Context) error {
	if z.Device == nil {
		forcePublish(z.bus, model.KindPump, z.id, z.status, model.Red, msgNoDevice)
	} else {
		forcePublish(z.bus, model.KindPump, z.id, z.status, model.Green, "")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		z.process(ctx)
	}()
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-z.speeds:
			facts := z.status.update(func(f *PumpFacts) { f.Running = r.Valid && r.Value > 0 })
			z.refresh(facts)
		case err := <-z.results:
			facts := z.status.update(func(f *PumpFacts) {
				switch {
				case err != nil:
					f.Fault = err.Error()
				case !f.Degraded:
					f.Fault = ""
				}
			})
			z.refresh(facts)
		case ev := <-z.events:
			if ev.Connected {
				continue
			}
			facts := z.status.update(func(f *PumpFacts) {
				f.Degraded = true
				f.Running = false
				f.Fault = "Disconnected"
				if ev.Msg != "" {
					f.Fault = "Disconnected, " + ev.Msg
				}
			})
			z.bus.logf(model.KindPump, z.id, facts.Fault)
			z.refresh(facts)
		}
	}
}

func (z *Pump) refresh(f PumpFacts) {
	switch {
	case f.Degraded || f.Fault != "":
		publish(z.bus, model.KindPump, z.id, z.status, model.Red, f.Fault)
	case f.Running:
		publish(z.bus, model.KindPump, z.id, z.status, model.Blue, "Running")
	default:
		publish(z.bus, model.KindPump, z.id, z.status, model.Green, "")
	}
}

// process executes queued commands against the device, one at a time.
func (z *Pump) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-z.cmds:
			err := z.execute(ctx, msg.Cmd)
			if err != nil {
				log.Error().Err(err).Uint8("pump", z.id).Str("cmd", msg.Cmd.Kind.String()).Msg("Pump command failed")
			}
			select {
			case z.results <- err:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (z *Pump) execute(ctx context.Context, cmd model.PumpCmd) error {
	if z.Device == nil {
		return model.DeviceUnavailable(model.KindPump, z.id)
	}
	z.bus.logf(model.KindPump, z.id, "cmd "+cmd.Kind.String())

	switch cmd.Kind {
	case model.PumpRun:
		return z.Device.Run(ctx)
	case model.PumpStop:
		return z.Device.Stop(ctx)
	case model.PumpFloat:
		return z.Device.Float(ctx)
	case model.PumpRunFor:
		s := z.settings.get()
		secs := model.Seconds(cmd.Secs)
		if secs == 0 {
			secs = s.RunForSecs
		}
		if err := z.Device.RunFor(ctx, secs.Duration()); err != nil {
			return err
		}
		if s.RestSecs > 0 {
			z.sleep(ctx, s.RestSecs.Duration())
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown pump command %d", model.ErrParse, cmd.Kind)
	}
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
