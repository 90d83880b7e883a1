package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// Motor integrates speed into an encoder position. Moving toward Endstop
// with negative speed stalls the motor there.
type Motor struct {
	Tick    time.Duration
	Endstop int32

	mu        sync.Mutex
	pos       int32
	speed     int8
	target    *int32
	skew      []int32
	calls     []string
	fb        device.MotorFeedback
	connected bool
}

// NewMotor places the motor at pos with its zero endstop at 0.
func NewMotor(pos int32) *Motor {
	m := &Motor{Tick: 10 * time.Millisecond, pos: pos, connected: true}
	if pos < 0 {
		m.Endstop = pos
	}
	return m
}

func (m *Motor) Init(ctx context.Context, fb device.MotorFeedback) error {
	m.mu.Lock()
	m.fb = fb
	m.mu.Unlock()
	go m.run(ctx)
	return nil
}

func (m *Motor) run(ctx context.Context) {
	ticker := time.NewTicker(m.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.step()
		}
	}
}

func (m *Motor) step() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.target != nil {
		diff := *m.target - m.pos
		stride := int32(abs8(m.speed))
		if stride == 0 {
			stride = 1
		}
		switch {
		case diff > stride:
			m.pos += stride
		case diff < -stride:
			m.pos -= stride
		default:
			m.pos = *m.target
			m.target = nil
			m.speed = 0
			m.telemetry()
			m.state(model.Idle)
			return
		}
		m.telemetry()
		return
	}

	if m.speed == 0 {
		return
	}
	m.pos += int32(m.speed)
	if m.speed < 0 && m.pos <= m.Endstop {
		m.pos = m.Endstop
		m.speed = 0
	}
	m.telemetry()
}

func (m *Motor) telemetry() {
	if m.fb.Telemetry != nil {
		m.fb.Telemetry.Send(model.MotorTelemetry{Speed: m.speed, Pos: m.pos})
	}
}

func (m *Motor) state(s model.CmdState) {
	if m.fb.State != nil {
		m.fb.State.Send(s)
	}
}

func (m *Motor) record(format string, args ...any) error {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
	if !m.connected {
		return fmt.Errorf("motor hub disconnected")
	}
	return nil
}

func (m *Motor) Start(_ context.Context, speed int8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("start %d", speed); err != nil {
		return err
	}
	m.target = nil
	m.speed = speed
	if speed < 0 && m.pos <= m.Endstop {
		m.speed = 0
	}
	m.state(model.Busy)
	m.telemetry()
	return nil
}

func (m *Motor) GotoAbs(_ context.Context, pos int32, speed int8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("goto %d", pos); err != nil {
		return err
	}
	if len(m.skew) > 0 {
		pos += m.skew[0]
		m.skew = m.skew[1:]
	}
	m.target = &pos
	m.speed = speed
	m.state(model.Busy)
	return nil
}

func (m *Motor) Brake(_ context.Context) error {
	return m.halt("brake")
}

func (m *Motor) Float(_ context.Context) error {
	return m.halt("float")
}

func (m *Motor) halt(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("%s", name); err != nil {
		return err
	}
	m.target = nil
	m.speed = 0
	m.telemetry()
	m.state(model.Idle)
	return nil
}

func (m *Motor) PresetEncoder(_ context.Context, pos int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("preset %d", pos); err != nil {
		return err
	}
	m.Endstop -= m.pos - pos
	m.pos = pos
	m.telemetry()
	return nil
}

func (m *Motor) RequestUpdate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update"); err != nil {
		return err
	}
	m.telemetry()
	return nil
}

// Skew offsets the next goto targets, one entry per call, so the motor
// lands off target.
func (m *Motor) Skew(offsets ...int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skew = append(m.skew, offsets...)
}

func (m *Motor) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	if m.fb.Health != nil {
		m.fb.Health.Send(model.DeviceEvent{Connected: false, Msg: "hub disconnected"})
	}
}

func (m *Motor) Pos() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Calls returns the primitives issued so far, e.g. "goto 84" or "float".
func (m *Motor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Motor) Count(prefix string) int {
	n := 0
	for _, c := range m.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func abs8(v int8) int8 {
	if v < 0 {
		return -v
	}
	return v
}
