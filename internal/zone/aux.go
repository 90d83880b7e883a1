package zone

import (
	"context"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type AuxFacts struct {
	Connected bool
	Degraded  bool
	Fault     string
}

type Aux struct {
	Device device.AuxDevice

	id     uint8
	bus    *Bus
	status *Status[AuxFacts]

	health *bus.Broadcast[model.DeviceEvent]
	events <-chan model.DeviceEvent
}

func NewAux(id uint8, b *Bus) *Aux {
	z := &Aux{
		id:     id,
		bus:    b,
		status: newStatus(AuxFacts{}),
		health: bus.NewBroadcast[model.DeviceEvent](4),
	}
	z.events, _ = z.health.Subscribe()
	return z
}

func (z *Aux) Kind() model.Kind                          { return model.KindAux }
func (z *Aux) ID() uint8                                 { return z.id }
func (z *Aux) Display() model.DisplayStatus              { return z.status.Display() }
func (z *Aux) Status() *Status[AuxFacts]                 { return z.status }
func (z *Aux) Health() *bus.Broadcast[model.DeviceEvent] { return z.health }

func (z *Aux) Config() model.ZoneConfig {
	return model.ZoneConfig{Kind: model.KindAux, ID: z.id}
}

func (z *Aux) Apply(cfg model.ZoneConfig) error {
	return checkConfig(cfg, model.KindAux, z.id)
}

func (z *Aux) Init(ctx context.Context, fn Attach) {
	if z.Device != nil && !attach(ctx, fn, model.KindAux, z.id, "hub", func(ctx context.Context) error {
		return z.Device.Init(ctx, z.id, z.health)
	}) {
		z.Device = nil
	}
}

func (z *Aux) Run(ctx context.Context) error {
	if z.Device == nil {
		forcePublish(z.bus, model.KindAux, z.id, z.status, model.Red, msgNoDevice)
	} else {
		forcePublish(z.bus, model.KindAux, z.id, z.status, model.Green, "")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-z.events:
			facts := z.status.update(func(f *AuxFacts) {
				f.Connected = ev.Connected
				if !ev.Connected && !f.Degraded {
					f.Degraded = true
					f.Fault = "Disconnected"
					if ev.Msg != "" {
						f.Fault = "Disconnected, " + ev.Msg
					}
				}
			})
			if ev.Msg != "" {
				z.bus.logf(model.KindAux, z.id, ev.Msg)
			}
			if facts.Degraded {
				publish(z.bus, model.KindAux, z.id, z.status, model.Red, facts.Fault)
				continue
			}
			publish(z.bus, model.KindAux, z.id, z.status, model.Green, "")
		}
	}
}
