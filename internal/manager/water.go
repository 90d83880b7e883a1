package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/datadog"
	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/zone"
)

// Result is the outcome of one watering procedure.
type Result struct {
	RunID   string
	Outcome Outcome
	Tries   int
	Err     error
}

// Water runs the watering procedure for one water zone. At most one
// procedure per zone runs at a time; a concurrent call returns OutcomeBusy.
func (m *Manager) Water(ctx context.Context, id uint8, req zone.WaterRequest) Result {
	if !m.begin(id) {
		log.Info().Uint8("water", id).Msg("Watering already in progress")
		return Result{Outcome: OutcomeBusy}
	}
	defer m.end(id)

	started := time.Now()
	res := m.water(ctx, id, req)
	res.RunID = uuid.NewString()

	ev := log.Info()
	if !res.Outcome.Success() {
		ev = log.Warn().Err(res.Err)
	}
	ev.Str("run", res.RunID).
		Uint8("water", id).
		Str("outcome", res.Outcome.String()).
		Int("tries", res.Tries).
		Msg("Watering finished")

	datadog.Count("grow.watering.outcome", 1, append(datadog.ZoneTags("water", id), "outcome:"+res.Outcome.String())...)

	if m.opts.History != nil {
		run := db.WateringRun{
			ID:       res.RunID,
			WaterID:  id,
			Outcome:  res.Outcome.String(),
			Tries:    res.Tries,
			Moisture: req.Moisture,
			Started:  started,
			Finished: time.Now(),
		}
		if res.Err != nil {
			run.Err = res.Err.Error()
		}
		if err := m.opts.History.RecordWateringRun(run); err != nil {
			log.Error().Err(err).Str("run", res.RunID).Msg("Failed to record watering run")
		}
	}

	if res.Outcome.alerting() {
		m.notify(fmt.Sprintf("Water zone %d", id), res.Err.Error())
	}
	return res
}

func (m *Manager) begin(id uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[id] {
		return false
	}
	m.inflight[id] = true
	return true
}

func (m *Manager) end(id uint8) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()
}

func (m *Manager) water(ctx context.Context, id uint8, req zone.WaterRequest) Result {
	s := req.Settings

	if !req.Moisture.Valid {
		m.syslog("Water zone %d failed: no moisture data", id)
		return Result{Outcome: OutcomeMissingMoisture, Err: model.MissingSensorData(model.KindWater, id)}
	}
	if req.Moisture.Value >= s.MoistureLimitWater {
		log.Debug().Uint8("water", id).Float32("moisture", req.Moisture.Value).Msg("Moisture above limit, not watering")
		return Result{Outcome: OutcomeAboveLimit}
	}

	tank, err := m.house.DisplayStatus(model.KindTank, s.TankID)
	if err != nil {
		m.syslog("Water zone %d failed: tank %d missing", id, s.TankID)
		return Result{Outcome: OutcomeTankMissing, Err: err}
	}
	if tank.Indicator == model.Red {
		msg := fmt.Sprintf("Tank %d empty", s.TankID)
		m.syslog("%s", msg)
		if err := m.house.ReportWater(ctx, id, model.Red, msg); err != nil {
			log.Warn().Err(err).Uint8("water", id).Msg("Failed to report water status")
		}
		return Result{Outcome: OutcomeTankEmpty, Err: model.TankEmpty(s.TankID)}
	}

	armID := s.Position.ArmID
	states, err := m.house.ArmStates(armID)
	if err != nil {
		m.syslog("Water zone %d failed: arm %d missing", id, armID)
		return Result{Outcome: OutcomeArmMissing, Err: err}
	}

	if err := m.house.Lock(ctx); err != nil {
		return Result{Outcome: OutcomeCancelled, Err: err}
	}
	defer m.house.Unlock()

	target := s.Position
	confirmed := false
	tries := 0
	for tries < wateringTries && !confirmed {
		tries++
		idle, err := m.gotoAndWait(ctx, armID, states, target.Position())
		if err != nil {
			return m.armFailure(ctx, id, tries, err)
		}
		if !idle {
			return m.armFailure(ctx, id, tries, fmt.Errorf("arm %d did not become idle within %s", armID, m.opts.ArmIdleTimeout))
		}

		ok, diff, err := m.house.ConfirmArmPosition(id, m.opts.ConfirmDelta)
		if err != nil {
			return m.armFailure(ctx, id, tries, err)
		}
		log.Debug().Uint8("water", id).Int("try", tries).Bool("ok", ok).Str("diff", diff.String()).Msg("Arm position check")
		confirmed = ok
	}
	if !confirmed {
		m.syslog("Water zone %d failed: position not confirmed", id)
		return Result{Outcome: OutcomePositionNotConfirmed, Tries: tries, Err: model.PositionNotConfirmed(id)}
	}

	if err := m.house.PumpRun(ctx, s.PumpID); err != nil {
		m.syslog("Water zone %d failed: pump %d: %v", id, s.PumpID, err)
		return Result{Outcome: OutcomePumpError, Tries: tries, Err: err}
	}
	slept := m.sleep(ctx, s.PumpTime.Duration())
	if err := m.house.PumpStop(context.WithoutCancel(ctx), s.PumpID); err != nil {
		m.syslog("Water zone %d failed: pump %d: %v", id, s.PumpID, err)
		return Result{Outcome: OutcomePumpError, Tries: tries, Err: err}
	}
	if slept != nil {
		m.syslog("Water zone %d cancelled", id)
		return Result{Outcome: OutcomeCancelled, Tries: tries, Err: slept}
	}

	m.syslog("Water zone %d ok", id)
	return Result{Outcome: OutcomeOk, Tries: tries}
}

func (m *Manager) armFailure(ctx context.Context, id uint8, tries int, err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Tries: tries, Err: err}
		}
	}
	m.syslog("Water zone %d failed: arm: %v", id, err)
	return Result{Outcome: OutcomeArmError, Tries: tries, Err: err}
}

// gotoAndWait issues the move and waits for the arm to report Idle. The
// state subscription is taken before the move so the transition is not
// missed.
func (m *Manager) gotoAndWait(ctx context.Context, armID uint8, states stateSource, p model.Position) (bool, error) {
	sub, cancel := states.Subscribe()
	defer cancel()

	if err := m.house.ArmGoto(ctx, armID, p.X, p.Y, p.Z); err != nil {
		return false, err
	}
	return waitIdle(ctx, sub, func() model.CmdState { return m.armState(armID) }, m.opts.ArmIdleTimeout)
}

// armState treats an arm that cannot be queried as Busy.
func (m *Manager) armState(armID uint8) model.CmdState {
	s, err := m.house.ArmState(armID)
	if err != nil {
		return model.Busy
	}
	return s
}

type stateSource interface {
	Subscribe() (<-chan model.CmdState, func())
}

// waitIdle blocks until Idle arrives on states or until timeout, when
// the current state decides.
func waitIdle(ctx context.Context, states <-chan model.CmdState, current func() model.CmdState, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case s, ok := <-states:
			if !ok {
				return current() == model.Idle, nil
			}
			if s == model.Idle {
				return true, nil
			}
		case <-timer.C:
			return current() == model.Idle, nil
		}
	}
}
