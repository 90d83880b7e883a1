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

type WaterFacts struct {
	Moisture model.Reading
	Class    MoistureClass
}

type Water struct {
	Sensor device.MoistureSensor

	// Ticks replaces the settling ticker when set.
	Ticks <-chan time.Time

	id       uint8
	bus      *Bus
	settings settingsBox[model.WaterSettings]
	status   *Status[WaterFacts]

	moisture *bus.Broadcast[model.Reading]
	samples  <-chan model.Reading
	reports  chan model.DisplayStatus
}

func NewWater(id uint8, s model.WaterSettings, b *Bus) *Water {
	z := &Water{
		id:       id,
		bus:      b,
		status:   newStatus(WaterFacts{Class: NoData}),
		moisture: bus.NewBroadcast[model.Reading](16),
		reports:  make(chan model.DisplayStatus, 4),
	}
	z.settings.set(s)
	z.samples, _ = z.moisture.Subscribe()
	return z
}

func (z *Water) Kind() model.Kind                        { return model.KindWater }
func (z *Water) ID() uint8                               { return z.id }
func (z *Water) Display() model.DisplayStatus            { return z.status.Display() }
func (z *Water) Status() *Status[WaterFacts]             { return z.status }
func (z *Water) Settings() model.WaterSettings           { return z.settings.get() }
func (z *Water) Moisture() *bus.Broadcast[model.Reading] { return z.moisture }

func (z *Water) Config() model.ZoneConfig {
	s := z.settings.get()
	return model.ZoneConfig{Kind: model.KindWater, ID: z.id, Water: &s}
}

func (z *Water) Apply(cfg model.ZoneConfig) error {
	if err := checkConfig(cfg, model.KindWater, z.id); err != nil {
		return err
	}
	z.settings.set(*cfg.Water)
	return nil
}

// SetPosition replaces the arm target of this zone.
func (z *Water) SetPosition(p model.Position) {
	s := z.settings.get()
	s.Position.X, s.Position.Y, s.Position.Z = p.X, p.Y, p.Z
	z.settings.set(s)
}

func (z *Water) Init(ctx context.Context, fn Attach) {
	if z.Sensor == nil {
		return
	}
	if !attach(ctx, fn, model.KindWater, z.id, "moisture", func(ctx context.Context) error {
		return z.Sensor.Init(ctx, z.id, z.moisture)
	}) {
		z.Sensor = nil
	}
}

// Report hands an externally decided status to the runner, which
// publishes it as its own.
func (z *Water) Report(ctx context.Context, ind model.Indicator, msg string) error {
	select {
	case z.reports <- model.NewDisplayStatus(ind, msg):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request emits a watering request for this zone now.
func (z *Water) Request(ctx context.Context) error {
	return z.bus.Update.Send(ctx, z.request())
}

func (z *Water) request() Update {
	return Update{
		Kind:  model.KindWater,
		ID:    z.id,
		Water: &WaterRequest{Settings: z.settings.get(), Moisture: z.status.Snapshot().Moisture},
	}
}

func (z *Water) Run(ctx context.Context) error {
	ticks := z.Ticks
	var ticker *time.Ticker
	period := z.settling()
	if ticks == nil {
		ticker = time.NewTicker(period)
		defer ticker.Stop()
		ticks = ticker.C
	}

	if z.Sensor == nil {
		forcePublish(z.bus, model.KindWater, z.id, z.status, model.Red, msgNoDevice)
	} else {
		ind, msg := moistureDisplay(z.status.Snapshot().Class)
		forcePublish(z.bus, model.KindWater, z.id, z.status, ind, msg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-z.samples:
			z.onSample(r)
		case d := <-z.reports:
			publish(z.bus, model.KindWater, z.id, z.status, d.Indicator, d.Msg)
		case <-ticks:
			z.onSettled(ctx)
			if ticker != nil {
				if p := z.settling(); p != period {
					period = p
					ticker.Reset(p)
				}
			}
		}
	}
}

func (z *Water) settling() time.Duration {
	d := z.settings.get().SettlingTime.Duration()
	if d <= 0 {
		d = time.Hour
	}
	return d
}

func (z *Water) onSample(r model.Reading) {
	s := z.settings.get()
	class := ClassifyMoisture(r, s)
	z.status.update(func(f *WaterFacts) {
		f.Moisture = r
		f.Class = class
	})

	if r.Valid {
		datadog.Gauge("grow.water.moisture", float64(r.Value), datadog.ZoneTags("water", z.id)...)
		z.bus.logf(model.KindWater, z.id, fmt.Sprintf("moisture %.1f %s", r.Value, class))
	} else {
		z.bus.logf(model.KindWater, z.id, "moisture missing")
	}
	log.Debug().Uint8("water", z.id).Float32("moisture", r.Value).Str("class", class.String()).Msg("Moisture sample")

	ind, msg := moistureDisplay(class)
	publish(z.bus, model.KindWater, z.id, z.status, ind, msg)
}

func (z *Water) onSettled(ctx context.Context) {
	facts := z.status.Snapshot()
	s := z.settings.get()
	if !facts.Moisture.Valid || facts.Moisture.Value >= s.MoistureLimitWater {
		return
	}
	if err := z.bus.Update.Send(ctx, z.request()); err != nil {
		log.Debug().Err(err).Uint8("water", z.id).Msg("Watering request dropped")
	}
}
