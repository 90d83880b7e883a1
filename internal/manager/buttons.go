package manager

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// ButtonWaterZone is the water zone the panel's water button triggers.
const ButtonWaterZone uint8 = 1

// RunButtons binds the panel and handles presses until ctx is done.
// request raises a watering request for a water zone.
func (m *Manager) RunButtons(ctx context.Context, panel device.ButtonPanel, request func(ctx context.Context, id uint8) error) error {
	events := make(chan model.ButtonEvent, 8)
	if err := panel.Init(ctx, events); err != nil {
		return model.DeviceIO(err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			m.onButton(ctx, ev, request)
		}
	}
}

func (m *Manager) onButton(ctx context.Context, ev model.ButtonEvent, request func(ctx context.Context, id uint8) error) {
	log.Debug().Int("button", int(ev.Button)).Msg("Button pressed")
	switch ev.Button {
	case model.ButtonPage:
		m.pager.Advance()
	case model.ButtonBlink:
		if err := m.Blink(ctx); err != nil {
			log.Warn().Err(err).Msg("Blink failed")
		}
	case model.ButtonWater:
		if request == nil {
			return
		}
		if err := request(ctx, ButtonWaterZone); err != nil {
			log.Warn().Err(err).Uint8("water", ButtonWaterZone).Msg("Watering request failed")
		}
	}
}
