package zone

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/datadog"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type AirFacts struct {
	Temperature model.Reading
	FanRPM      model.Reading
	Fan         model.FanSetting
	FanKnown    bool
}

type Air struct {
	Thermometer device.Thermometer
	Fan         device.Fan

	id       uint8
	bus      *Bus
	settings settingsBox[model.AirSettings]
	status   *Status[AirFacts]

	temperature *bus.Broadcast[model.Reading]
	rpm         *bus.Broadcast[model.Reading]
	temps       <-chan model.Reading
	rpms        <-chan model.Reading
	fanCmds     chan model.FanCmd
}

func NewAir(id uint8, s model.AirSettings, b *Bus) *Air {
	z := &Air{
		id:          id,
		bus:         b,
		status:      newStatus(AirFacts{}),
		temperature: bus.NewBroadcast[model.Reading](16),
		rpm:         bus.NewBroadcast[model.Reading](16),
		fanCmds:     make(chan model.FanCmd, 8),
	}
	z.settings.set(s)
	z.temps, _ = z.temperature.Subscribe()
	z.rpms, _ = z.rpm.Subscribe()
	return z
}

func (z *Air) Kind() model.Kind             { return model.KindAir }
func (z *Air) ID() uint8                    { return z.id }
func (z *Air) Display() model.DisplayStatus { return z.status.Display() }
func (z *Air) Status() *Status[AirFacts]    { return z.status }
func (z *Air) Settings() model.AirSettings  { return z.settings.get() }

// Temperature and RPM are the feedback senders bound by the devices.
func (z *Air) Temperature() *bus.Broadcast[model.Reading] { return z.temperature }
func (z *Air) RPM() *bus.Broadcast[model.Reading]         { return z.rpm }

// FanCommands is the receiving end the fan device consumes.
func (z *Air) FanCommands() <-chan model.FanCmd { return z.fanCmds }

func (z *Air) Config() model.ZoneConfig {
	s := z.settings.get()
	return model.ZoneConfig{Kind: model.KindAir, ID: z.id, Air: &s}
}

func (z *Air) Apply(cfg model.ZoneConfig) error {
	if err := checkConfig(cfg, model.KindAir, z.id); err != nil {
		return err
	}
	z.settings.set(*cfg.Air)
	return nil
}

func (z *Air) Init(ctx context.Context, fn Attach) {
	if z.Thermometer != nil && !attach(ctx, fn, model.KindAir, z.id, "thermometer", func(ctx context.Context) error {
		return z.Thermometer.Init(ctx, z.id, z.temperature)
	}) {
		z.Thermometer = nil
	}
	if z.Fan != nil && !attach(ctx, fn, model.KindAir, z.id, "fan", func(ctx context.Context) error {
		return z.Fan.Init(ctx, z.id, z.rpm, z.fanCmds)
	}) {
		z.Fan = nil
	}
}

func (z *Air) Run(ctx context.Context) error {
	if z.Thermometer == nil {
		forcePublish(z.bus, model.KindAir, z.id, z.status, model.Red, msgNoDevice)
	} else {
		forcePublish(z.bus, model.KindAir, z.id, z.status, model.Green, "")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-z.temps:
			z.onTemperature(ctx, r)
		case r := <-z.rpms:
			z.onRPM(r)
		}
	}
}

func (z *Air) onTemperature(ctx context.Context, r model.Reading) {
	s := z.settings.get()
	facts := z.status.update(func(f *AirFacts) { f.Temperature = r })

	if !r.Valid {
		z.bus.logf(model.KindAir, z.id, "temperature missing")
		ind, msg := airDisplay(facts, s)
		publish(z.bus, model.KindAir, z.id, z.status, ind, msg)
		return
	}

	datadog.Gauge("grow.air.temperature", float64(r.Value), datadog.ZoneTags("air", z.id)...)
	z.bus.logf(model.KindAir, z.id, fmt.Sprintf("temperature %.1f", r.Value))

	want := FanFor(r.Value, s)
	if (!facts.FanKnown || facts.Fan != want) && z.sendFan(ctx, want) {
		facts = z.status.update(func(f *AirFacts) {
			f.Fan = want
			f.FanKnown = true
		})
	}

	ind, msg := airDisplay(facts, s)
	publish(z.bus, model.KindAir, z.id, z.status, ind, msg)
}

// sendFan reports whether the command was queued. A dropped command leaves
// the recorded setting untouched so the next sample retries it.
func (z *Air) sendFan(ctx context.Context, setting model.FanSetting) bool {
	select {
	case z.fanCmds <- model.FanCmd{ID: z.id, Setting: setting}:
		z.bus.logf(model.KindAir, z.id, "fan "+setting.String())
		log.Info().Uint8("air", z.id).Str("fan", setting.String()).Msg("Fan setting changed")
		return true
	case <-ctx.Done():
		return false
	default:
		log.Warn().Uint8("air", z.id).Str("fan", setting.String()).Msg("Fan command queue full, dropping command")
		return false
	}
}

func (z *Air) onRPM(r model.Reading) {
	facts := z.status.update(func(f *AirFacts) { f.FanRPM = r })
	if r.Valid {
		datadog.Gauge("grow.air.fan_rpm", float64(r.Value), datadog.ZoneTags("air", z.id)...)
	}
	ind, msg := airDisplay(facts, z.settings.get())
	publish(z.bus, model.KindAir, z.id, z.status, ind, msg)
}
