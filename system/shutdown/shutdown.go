package shutdown

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/gpio"
)

var ExitFunc = os.Exit

var (
	mu     sync.Mutex
	relays []gpio.Pin
)

// RegisterRelays records relays that must be switched off on exit.
func RegisterRelays(pins ...gpio.Pin) {
	mu.Lock()
	defer mu.Unlock()
	relays = append(relays, pins...)
}

func relaysOff() {
	mu.Lock()
	pins := append([]gpio.Pin(nil), relays...)
	mu.Unlock()
	for _, pin := range pins {
		if err := gpio.Deactivate(pin); err != nil {
			log.Error().Err(err).Int("pin", pin.Number).Msg("Failed to deactivate relay")
			continue
		}
		if active, err := gpio.CurrentlyActive(pin); err == nil && active {
			log.Error().Int("pin", pin.Number).Msg("Relay still active after shutdown")
		}
	}
	if len(pins) > 0 {
		log.Info().Int("relays", len(pins)).Msg("Relays deactivated")
	}
}

// Teardown blanks the operator surfaces and switches relays off. It runs
// after the task context is cancelled, so it uses its own deadline.
func Teardown(board device.Board, display device.TextDisplay) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if board != nil {
		if err := board.Write(ctx, 0); err != nil {
			log.Error().Err(err).Msg("Failed to clear indicator board")
		}
	}
	if display != nil {
		if err := display.Clear(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to clear display")
		}
	}
	relaysOff()
}

// WithError logs a fatal startup error, switches relays off and exits
// non-zero.
func WithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	relaysOff()
	ExitFunc(1)
}
