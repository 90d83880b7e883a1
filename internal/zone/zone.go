// Package zone is the zone runtime: one supervisor per zone that turns
// device feedback into status transitions on the zone bus.
package zone

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// Zone is the behaviour shared by every zone kind.
type Zone interface {
	Kind() model.Kind
	ID() uint8
	Display() model.DisplayStatus
	Config() model.ZoneConfig
	Apply(cfg model.ZoneConfig) error
	// Init binds the zone's devices to its feedback channels.
	Init(ctx context.Context, attach Attach)
	// Run supervises the zone until ctx is cancelled.
	Run(ctx context.Context) error
}

// Attach binds one device. Wiring code can pass a retrying variant.
type Attach func(ctx context.Context, name string, init func(ctx context.Context) error) error

func AttachOnce(ctx context.Context, _ string, init func(ctx context.Context) error) error {
	return init(ctx)
}

func attach(ctx context.Context, fn Attach, kind model.Kind, id uint8, device string, init func(ctx context.Context) error) bool {
	if fn == nil {
		fn = AttachOnce
	}
	name := kind.String() + "/" + device
	if err := fn(ctx, name, init); err != nil {
		log.Warn().
			Err(err).
			Str("zone", kind.String()).
			Uint8("id", id).
			Str("device", device).
			Msg("Device failed to initialize, zone runs without it")
		return false
	}
	return true
}

func publish[F any](b *Bus, kind model.Kind, id uint8, st *Status[F], ind model.Indicator, msg string) bool {
	d := model.NewDisplayStatus(ind, msg)
	if !st.setDisplay(d) {
		return false
	}
	b.Display.Send(model.ZoneDisplay{Kind: kind, ID: id, Status: d})
	b.Update.TrySend(Update{Kind: kind, ID: id})

	ev := log.Info()
	if ind == model.Red {
		ev = log.Warn()
	}
	ev.Str("zone", kind.String()).
		Uint8("id", id).
		Str("indicator", ind.String()).
		Str("msg", msg).
		Msg("Zone status changed")
	return true
}

// forcePublish publishes the current status even if it is unchanged.
// Runners call it once at startup so the bus carries every zone.
func forcePublish[F any](b *Bus, kind model.Kind, id uint8, st *Status[F], ind model.Indicator, msg string) {
	d := model.NewDisplayStatus(ind, msg)
	st.mu.Lock()
	st.disp = d
	st.mu.Unlock()
	b.Display.Send(model.ZoneDisplay{Kind: kind, ID: id, Status: d})
	b.Update.TrySend(Update{Kind: kind, ID: id})
}

func checkConfig(cfg model.ZoneConfig, kind model.Kind, id uint8) error {
	if cfg.Kind != kind || cfg.ID != id {
		return fmt.Errorf("%w: config for %s %d applied to %s %d", model.ErrParse, cfg.Kind, cfg.ID, kind, id)
	}
	return cfg.Validate()
}

const msgNoDevice = "device unavailable"
