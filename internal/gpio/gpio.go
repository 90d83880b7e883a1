// Package gpio drives the relays and push buttons wired directly to the
// controller's header pins.
package gpio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/pinctrl"
)

type Pin struct {
	Number     int
	ActiveHigh bool
}

var (
	ioMu     sync.Mutex
	safeMode bool
	setLevel = pinctrl.Drive
	getLevel = pinctrl.ReadLevel
	setInput = pinctrl.Input
	snapshot = pinctrl.Snapshot
)

// MockGPIO replaces pin access with in-memory functions.
func MockGPIO(set func(pin int, high bool), get func(pin int) bool) {
	ioMu.Lock()
	defer ioMu.Unlock()
	setLevel = func(pin int, high bool) error {
		set(pin, high)
		return nil
	}
	getLevel = func(pin int) (bool, error) {
		return get(pin), nil
	}
	setInput = func(int) error { return nil }
	snapshot = func(pins ...int) (map[int]pinctrl.PinState, error) {
		states := make(map[int]pinctrl.PinState, len(pins))
		for _, pin := range pins {
			level := pinctrl.LevelLow
			if get(pin) {
				level = pinctrl.LevelHigh
			}
			states[pin] = pinctrl.PinState{Pin: pin, Mode: pinctrl.ModeOutput, Pull: pinctrl.PullNone, Drive: level, Level: level}
		}
		return states, nil
	}
}

// ResetGPIO restores pinctrl-backed access and leaves safe mode.
func ResetGPIO() {
	ioMu.Lock()
	defer ioMu.Unlock()
	setLevel = pinctrl.Drive
	getLevel = pinctrl.ReadLevel
	setInput = pinctrl.Input
	snapshot = pinctrl.Snapshot
	safeMode = false
}

// SetSafeMode turns relay writes into no-ops.
func SetSafeMode(enabled bool) {
	ioMu.Lock()
	defer ioMu.Unlock()
	safeMode = enabled
}

func Read(pin Pin) (bool, error) {
	ioMu.Lock()
	get := getLevel
	ioMu.Unlock()
	level, err := get(pin.Number)
	if err != nil {
		return false, fmt.Errorf("failed to read pin %d: %w", pin.Number, err)
	}
	return level, nil
}

func Activate(pin Pin) error {
	return write(pin, pin.ActiveHigh)
}

func Deactivate(pin Pin) error {
	return write(pin, !pin.ActiveHigh)
}

func CurrentlyActive(pin Pin) (bool, error) {
	level, err := Read(pin)
	if err != nil {
		return false, err
	}
	return level == pin.ActiveHigh, nil
}

func write(pin Pin, high bool) error {
	ioMu.Lock()
	set, safe := setLevel, safeMode
	ioMu.Unlock()
	if safe {
		return nil
	}
	if err := set(pin.Number, high); err != nil {
		return fmt.Errorf("failed to drive pin %d: %w", pin.Number, err)
	}
	return nil
}

// ValidateStartupPins fails when any relay is already energized. Relays
// are expected to come up off after a reboot.
func ValidateStartupPins(relays map[string]Pin) error {
	names := make([]string, 0, len(relays))
	numbers := make([]int, 0, len(relays))
	for name, pin := range relays {
		names = append(names, name)
		numbers = append(numbers, pin.Number)
	}
	sort.Strings(names)

	ioMu.Lock()
	read := snapshot
	ioMu.Unlock()
	states, err := read(numbers...)
	if err != nil {
		return fmt.Errorf("failed to read relay pins: %w", err)
	}

	for _, name := range names {
		pin := relays[name]
		st := states[pin.Number]
		log.Info().Str("relay", name).Stringer("pin", st).Msg("Relay pin at startup")
		if st.Level == pinctrl.LevelUnknown {
			return fmt.Errorf("pin %d (%s) has no readable level at startup", pin.Number, name)
		}
		if st.Level.High() == pin.ActiveHigh {
			return fmt.Errorf("pin %d (%s) is in wrong state at startup (expected active=false)", pin.Number, name)
		}
	}
	return nil
}

// RelayLamp switches a grow lamp through a relay.
type RelayLamp struct {
	Pin Pin
}

func (l *RelayLamp) Init(ctx context.Context, id uint8, cmds <-chan model.LampCmd) error {
	if err := Deactivate(l.Pin); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				if err := Deactivate(l.Pin); err != nil {
					log.Error().Err(err).Uint8("light", id).Msg("failed to switch lamp off on exit")
				}
				return
			case cmd := <-cmds:
				if err := l.Set(ctx, cmd.On); err != nil {
					log.Error().Err(err).Uint8("light", id).Bool("on", cmd.On).Msg("lamp command failed")
				}
			}
		}
	}()
	return nil
}

func (l *RelayLamp) Set(_ context.Context, on bool) error {
	if on {
		return Activate(l.Pin)
	}
	return Deactivate(l.Pin)
}

// ButtonPanel polls push buttons wired between a pin and ground. A press
// is reported once on the falling edge.
type ButtonPanel struct {
	Pins     map[model.Button]int
	Interval time.Duration
}

const defaultPollInterval = 50 * time.Millisecond

func (p *ButtonPanel) Init(ctx context.Context, tx chan<- model.ButtonEvent) error {
	buttons := make([]model.Button, 0, len(p.Pins))
	for b, pin := range p.Pins {
		ioMu.Lock()
		in := setInput
		ioMu.Unlock()
		if err := in(pin); err != nil {
			return fmt.Errorf("failed to configure button pin %d: %w", pin, err)
		}
		buttons = append(buttons, b)
	}
	sort.Slice(buttons, func(i, j int) bool { return buttons[i] < buttons[j] })

	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		pressed := make(map[model.Button]bool, len(buttons))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, b := range buttons {
				level, err := Read(Pin{Number: p.Pins[b]})
				if err != nil {
					log.Warn().Err(err).Int("button", int(b)).Msg("button read failed")
					continue
				}
				down := !level
				if down && !pressed[b] {
					select {
					case tx <- model.ButtonEvent{Button: b}:
					case <-ctx.Done():
						return
					}
				}
				pressed[b] = down
			}
		}
	}()
	return nil
}

// ParseButton maps a configured button name to its button.
func ParseButton(name string) (model.Button, error) {
	switch name {
	case "page":
		return model.ButtonPage, nil
	case "blink":
		return model.ButtonBlink, nil
	case "water":
		return model.ButtonWater, nil
	}
	return 0, fmt.Errorf("unknown button %q", name)
}
