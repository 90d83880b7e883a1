package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/arm"
	"github.com/thatsimonsguy/grow-controller/internal/config"
	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/gpio"
	"github.com/thatsimonsguy/grow-controller/internal/house"
	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/notifications"
	"github.com/thatsimonsguy/grow-controller/internal/pump"
	"github.com/thatsimonsguy/grow-controller/internal/sim"
	"github.com/thatsimonsguy/grow-controller/internal/temperature"
	"github.com/thatsimonsguy/grow-controller/internal/zone"
)

// surfaces are the operator-facing devices outside any zone.
type surfaces struct {
	board   device.Board
	display device.TextDisplay
	remote  device.RemoteControl
	buttons device.ButtonPanel
}

func buildSurfaces(cfg config.Config) (surfaces, error) {
	if cfg.Simulate {
		return surfaces{
			board:   &sim.Board{},
			display: &sim.Display{},
			remote:  &sim.Remote{},
			buttons: &sim.Buttons{},
		}, nil
	}

	var s surfaces
	if len(cfg.ButtonPins) > 0 {
		pins := make(map[model.Button]int, len(cfg.ButtonPins))
		for name, pin := range cfg.ButtonPins {
			b, err := gpio.ParseButton(name)
			if err != nil {
				return s, err
			}
			pins[b] = pin
		}
		s.buttons = &gpio.ButtonPanel{Pins: pins}
	}
	return s, nil
}

// relays lists the lamp relays by name for boot-time checks.
func relays(cfg config.Config) map[string]gpio.Pin {
	out := make(map[string]gpio.Pin, len(cfg.LampRelayPins))
	for id, pin := range cfg.LampRelayPins {
		out[fmt.Sprintf("lamp%d", id)] = gpio.Pin{Number: pin, ActiveHigh: cfg.LampRelayActiveHigh}
	}
	return out
}

// buildZones creates one zone per settings entry and hands it its devices.
// Without -simulate only the 1-wire thermometers and relay lamps are
// driven; every other zone runs without a device and reports it unavailable.
func buildZones(cfg config.Config, cfgs []model.ZoneConfig, b *zone.Bus) house.Zones {
	var zs house.Zones
	poll := time.Duration(cfg.MoisturePollSeconds) * time.Second

	for _, c := range cfgs {
		switch c.Kind {
		case model.KindAir:
			z := zone.NewAir(c.ID, *c.Air, b)
			if cfg.Simulate {
				t := sim.NewSensor(24)
				t.Interval, t.Jitter = 10*time.Second, 0.3
				z.Thermometer = t
				z.Fan = &sim.Fan{}
			} else if dev, ok := cfg.ThermometerDevices[c.ID]; ok {
				z.Thermometer = thermometer(cfg, c.ID, dev)
			}
			zs.Air = append(zs.Air, z)
		case model.KindLight:
			z := zone.NewLight(c.ID, *c.Light, b)
			if cfg.Simulate {
				m := sim.NewSensor(4000)
				m.Interval, m.Jitter = 10*time.Second, 50
				z.Meter = m
				z.Lamp = &sim.Lamp{}
			} else if pin, ok := cfg.LampRelayPins[c.ID]; ok {
				z.Lamp = &gpio.RelayLamp{Pin: gpio.Pin{Number: pin, ActiveHigh: cfg.LampRelayActiveHigh}}
			}
			zs.Light = append(zs.Light, z)
		case model.KindWater:
			z := zone.NewWater(c.ID, *c.Water, b)
			if cfg.Simulate {
				s := sim.NewSensor(45)
				s.Interval, s.Jitter = poll, 2
				z.Sensor = s
			}
			zs.Water = append(zs.Water, z)
		case model.KindTank:
			z := zone.NewTank(c.ID, b)
			if cfg.Simulate {
				z.Sensor = sim.NewTank(model.Green)
			}
			zs.Tank = append(zs.Tank, z)
		case model.KindPump:
			z := zone.NewPump(c.ID, *c.Pump, b)
			if cfg.Simulate {
				p := pump.New(sim.NewMotor(0))
				p.Duty = cfg.PumpDuty
				z.Device = p
			}
			zs.Pump = append(zs.Pump, z)
		case model.KindArm:
			z := zone.NewArm(c.ID, b)
			if cfg.Simulate {
				a := arm.New(sim.NewMotor(0), sim.NewMotor(0))
				a.CalibrationSpeed = cfg.CalibrationSpeed
				z.Device = a
			}
			zs.Arm = append(zs.Arm, z)
		case model.KindAux:
			z := zone.NewAux(c.ID, b)
			if cfg.Simulate {
				z.Device = &sim.Aux{}
			}
			zs.Aux = append(zs.Aux, z)
		default:
			log.Warn().Str("kind", c.Kind.String()).Uint8("id", c.ID).Msg("Skipping zone of unknown kind")
		}
	}
	return zs
}

func thermometer(cfg config.Config, id uint8, dev string) *temperature.OneWire {
	f := temperature.NewFilter(fmt.Sprintf("air%d", id), cfg.TempMaxDelta, cfg.TempMaxAnomalies)
	if notifications.Enabled() {
		f.Notify = notifications.Send
	}
	return temperature.NewOneWire(dev, 10*time.Second, f)
}
