package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// Indicator board bits, least significant first.
const (
	BitBlue byte = 1 << iota
	BitTankGreen
	BitTankYellow
	BitTankRed
	BitWaterRed
	BitAirRed
	BitLightRed
	BitAuxRed
)

const blinkStep = 150 * time.Millisecond

// BoardBits folds zone statuses into the board byte. Bits shared by
// several zones are set when any of them qualifies.
func BoardBits(zones []model.ZoneDisplay) byte {
	var bits byte
	for _, z := range zones {
		ind := z.Status.Indicator
		if ind == model.Blue {
			bits |= BitBlue
		}
		switch z.Kind {
		case model.KindTank:
			switch ind {
			case model.Green:
				bits |= BitTankGreen
			case model.Yellow:
				bits |= BitTankYellow
			case model.Red:
				bits |= BitTankRed
			}
		case model.KindWater:
			if ind == model.Red {
				bits |= BitWaterRed
			}
		case model.KindAir:
			if ind == model.Red {
				bits |= BitAirRed
			}
		case model.KindLight:
			if ind == model.Red {
				bits |= BitLightRed
			}
		case model.KindPump, model.KindArm, model.KindAux:
			if ind == model.Red {
				bits |= BitAuxRed
			}
		}
	}
	return bits
}

// UpdateBoard writes the current zone statuses to the indicator board.
func (m *Manager) UpdateBoard(ctx context.Context) byte {
	bits := BoardBits(m.house.CollectDisplayStatus())
	if m.opts.Board == nil {
		return bits
	}
	m.boardMu.Lock()
	defer m.boardMu.Unlock()
	if err := m.opts.Board.Write(ctx, bits); err != nil {
		log.Warn().Err(err).Msg("Failed to write indicator board")
	}
	return bits
}

// Blink walks a single lit bit across the board, then restores it.
func (m *Manager) Blink(ctx context.Context) error {
	if m.opts.Board == nil {
		return nil
	}
	m.boardMu.Lock()
	for i := range 8 {
		if err := m.opts.Board.Write(ctx, 1<<i); err != nil {
			m.boardMu.Unlock()
			return model.DeviceIO(err)
		}
		if err := m.sleep(ctx, blinkStep); err != nil {
			break
		}
	}
	m.boardMu.Unlock()
	m.UpdateBoard(context.WithoutCancel(ctx))
	return nil
}
