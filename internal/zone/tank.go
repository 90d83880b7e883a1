package zone

import (
	"context"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/datadog"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type TankFacts struct {
	Level model.Indicator
	Valid bool
}

type Tank struct {
	Sensor device.TankSensor

	id     uint8
	bus    *Bus
	status *Status[TankFacts]

	level    *bus.Broadcast[model.TankReading]
	readings <-chan model.TankReading
}

func NewTank(id uint8, b *Bus) *Tank {
	z := &Tank{
		id:     id,
		bus:    b,
		status: newStatus(TankFacts{}),
		level:  bus.NewBroadcast[model.TankReading](8),
	}
	z.readings, _ = z.level.Subscribe()
	return z
}

func (z *Tank) Kind() model.Kind                         { return model.KindTank }
func (z *Tank) ID() uint8                                { return z.id }
func (z *Tank) Display() model.DisplayStatus             { return z.status.Display() }
func (z *Tank) Status() *Status[TankFacts]               { return z.status }
func (z *Tank) Level() *bus.Broadcast[model.TankReading] { return z.level }

func (z *Tank) Config() model.ZoneConfig {
	return model.ZoneConfig{Kind: model.KindTank, ID: z.id}
}

func (z *Tank) Apply(cfg model.ZoneConfig) error {
	return checkConfig(cfg, model.KindTank, z.id)
}

func (z *Tank) Init(ctx context.Context, fn Attach) {
	if z.Sensor != nil && !attach(ctx, fn, model.KindTank, z.id, "level", func(ctx context.Context) error {
		return z.Sensor.Init(ctx, z.id, z.level)
	}) {
		z.Sensor = nil
	}
}

func (z *Tank) Run(ctx context.Context) error {
	if z.Sensor == nil {
		forcePublish(z.bus, model.KindTank, z.id, z.status, model.Red, msgNoDevice)
	} else {
		forcePublish(z.bus, model.KindTank, z.id, z.status, model.Green, "")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-z.readings:
			z.onLevel(r)
		}
	}
}

func (z *Tank) onLevel(r model.TankReading) {
	facts := z.status.update(func(f *TankFacts) {
		f.Level = r.Level
		f.Valid = r.Valid
	})
	if r.Valid {
		datadog.Gauge("grow.tank.level", float64(r.Level), datadog.ZoneTags("tank", z.id)...)
		z.bus.logf(model.KindTank, z.id, "level "+r.Level.String())
	} else {
		z.bus.logf(model.KindTank, z.id, "level missing")
	}
	ind, msg := tankDisplay(facts)
	publish(z.bus, model.KindTank, z.id, z.status, ind, msg)
}
