package zone

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/datadog"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type LightFacts struct {
	Lamp bool
	Lux  model.Reading
}

type Light struct {
	Meter device.Lightmeter
	Lamp  device.Lamp

	// Ticks and Now replace the minute schedule ticker and the wall clock.
	Ticks <-chan time.Time
	Now   func() time.Time

	id       uint8
	bus      *Bus
	settings settingsBox[model.LightSettings]
	status   *Status[LightFacts]

	lux      *bus.Broadcast[model.Reading]
	samples  <-chan model.Reading
	lampCmds chan model.LampCmd
}

func NewLight(id uint8, s model.LightSettings, b *Bus) *Light {
	z := &Light{
		Now:      model.Now,
		id:       id,
		bus:      b,
		status:   newStatus(LightFacts{}),
		lux:      bus.NewBroadcast[model.Reading](16),
		lampCmds: make(chan model.LampCmd, 8),
	}
	z.settings.set(s)
	z.samples, _ = z.lux.Subscribe()
	return z
}

func (z *Light) Kind() model.Kind                   { return model.KindLight }
func (z *Light) ID() uint8                          { return z.id }
func (z *Light) Display() model.DisplayStatus       { return z.status.Display() }
func (z *Light) Status() *Status[LightFacts]        { return z.status }
func (z *Light) Settings() model.LightSettings      { return z.settings.get() }
func (z *Light) Lux() *bus.Broadcast[model.Reading] { return z.lux }
func (z *Light) LampCommands() <-chan model.LampCmd { return z.lampCmds }

func (z *Light) Config() model.ZoneConfig {
	s := z.settings.get()
	return model.ZoneConfig{Kind: model.KindLight, ID: z.id, Light: &s}
}

func (z *Light) Apply(cfg model.ZoneConfig) error {
	if err := checkConfig(cfg, model.KindLight, z.id); err != nil {
		return err
	}
	z.settings.set(*cfg.Light)
	return nil
}

func (z *Light) Init(ctx context.Context, fn Attach) {
	if z.Meter != nil && !attach(ctx, fn, model.KindLight, z.id, "lightmeter", func(ctx context.Context) error {
		return z.Meter.Init(ctx, z.id, z.lux)
	}) {
		z.Meter = nil
	}
	if z.Lamp != nil && !attach(ctx, fn, model.KindLight, z.id, "lamp", func(ctx context.Context) error {
		return z.Lamp.Init(ctx, z.id, z.lampCmds)
	}) {
		z.Lamp = nil
	}
}

func (z *Light) Run(ctx context.Context) error {
	ticks := z.Ticks
	if ticks == nil {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		ticks = ticker.C
		z.onTick(ctx, z.Now())
	}

	if z.Meter == nil {
		forcePublish(z.bus, model.KindLight, z.id, z.status, model.Red, msgNoDevice)
	} else {
		forcePublish(z.bus, model.KindLight, z.id, z.status, model.Green, "")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-z.samples:
			z.onLux(r)
		case now := <-ticks:
			z.onTick(ctx, now)
		}
	}
}

func (z *Light) onTick(ctx context.Context, now time.Time) {
	s := z.settings.get()
	want := model.TimeOf(now).Within(s.LampOn, s.LampOff)
	facts := z.status.Snapshot()
	if want == facts.Lamp {
		return
	}

	select {
	case z.lampCmds <- model.LampCmd{ID: z.id, On: want}:
	case <-ctx.Done():
		return
	default:
		log.Warn().Uint8("light", z.id).Bool("on", want).Msg("Lamp command queue full, dropping command")
		return
	}

	facts = z.status.update(func(f *LightFacts) { f.Lamp = want })
	state := "off"
	if want {
		state = "on"
	}
	z.bus.logf(model.KindLight, z.id, "lamp "+state)
	log.Info().Uint8("light", z.id).Str("lamp", state).Str("at", model.TimeOf(now).String()).Msg("Lamp schedule")

	if facts.Lux.Valid {
		ind, msg := lightDisplay(facts, s)
		publish(z.bus, model.KindLight, z.id, z.status, ind, msg)
	}
}

func (z *Light) onLux(r model.Reading) {
	facts := z.status.update(func(f *LightFacts) { f.Lux = r })
	if r.Valid {
		datadog.Gauge("grow.light.lux", float64(r.Value), datadog.ZoneTags("light", z.id)...)
		z.bus.logf(model.KindLight, z.id, fmt.Sprintf("light %.0f", r.Value))
	} else {
		z.bus.logf(model.KindLight, z.id, "light missing")
	}
	ind, msg := lightDisplay(facts, z.settings.get())
	publish(z.bus, model.KindLight, z.id, z.status, ind, msg)
}
