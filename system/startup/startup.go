package startup

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/gpio"
)

// Attacher retries device initialisation with exponential backoff.
type Attacher struct {
	Timeout         time.Duration
	InitialInterval time.Duration
}

func NewAttacher(timeout time.Duration) *Attacher {
	return &Attacher{Timeout: timeout, InitialInterval: 500 * time.Millisecond}
}

// Attach calls init until it succeeds, ctx is done or the timeout elapses.
// Its signature matches zone.Attach.
func (a *Attacher) Attach(ctx context.Context, name string, init func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.InitialInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = a.Timeout

	attempts := 0
	op := func() error {
		attempts++
		if err := ctx.Err(); err != nil {
			return err
		}
		return init(ctx)
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Str("device", name).
			Int("attempt", attempts).
			Dur("retry_in", next).
			Msg("Device init failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("failed to attach %s after %d attempts: %w", name, attempts, err)
	}
	log.Info().Str("device", name).Int("attempts", attempts).Msg("Device attached")
	return nil
}

// WriteBootScript writes a shell script that drives every relay to its
// inactive level.
func WriteBootScript(path string, relays map[string]gpio.Pin) error {
	names := make([]string, 0, len(relays))
	for name := range relays {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"#!/bin/bash", "", "# grow controller relay configuration at boot", ""}
	for _, name := range names {
		pin := relays[name]
		drive := "dh"
		if pin.ActiveHigh {
			drive = "dl"
		}
		lines = append(lines,
			fmt.Sprintf("# %s", name),
			fmt.Sprintf("pinctrl set %d op pn %s", pin.Number, drive),
			"",
		)
	}

	contents := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(contents), 0755); err != nil {
		return fmt.Errorf("failed to write boot script: %w", err)
	}
	return nil
}
