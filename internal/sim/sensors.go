// Package sim provides simulated devices for -simulate runs and tests.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

var ErrReadFailed = errors.New("simulated read failure")

// Sensor is a scalar sensor usable as a thermometer, light meter or
// moisture sensor. With a zero Interval it only publishes on Push.
type Sensor struct {
	Interval time.Duration
	Jitter   float32

	mu     sync.Mutex
	id     uint8
	value  float32
	failed bool
	fb     *bus.Broadcast[model.Reading]
}

func NewSensor(value float32) *Sensor {
	return &Sensor{value: value}
}

func (s *Sensor) Init(ctx context.Context, id uint8, feedback *bus.Broadcast[model.Reading]) error {
	s.mu.Lock()
	s.id = id
	s.fb = feedback
	s.mu.Unlock()
	if s.Interval > 0 {
		go s.run(ctx)
	}
	return nil
}

func (s *Sensor) run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.Jitter > 0 {
				s.value += (rand.Float32()*2 - 1) * s.Jitter
			}
			s.mu.Unlock()
			s.publish()
		}
	}
}

func (s *Sensor) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fb == nil {
		return
	}
	if s.failed {
		s.fb.Send(model.MissingReading(s.id))
		return
	}
	s.fb.Send(model.ValidReading(s.id, s.value))
}

// Push sets the value and publishes it immediately.
func (s *Sensor) Push(v float32) {
	s.mu.Lock()
	s.value = v
	s.failed = false
	s.mu.Unlock()
	s.publish()
}

// Fail makes reads fail and publishes a missing sample.
func (s *Sensor) Fail() {
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
	s.publish()
}

func (s *Sensor) Read(context.Context) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return 0, ErrReadFailed
	}
	return s.value, nil
}

type Tank struct {
	mu    sync.Mutex
	id    uint8
	level model.Indicator
	fb    *bus.Broadcast[model.TankReading]
}

func NewTank(level model.Indicator) *Tank {
	return &Tank{level: level}
}

func (t *Tank) Init(_ context.Context, id uint8, feedback *bus.Broadcast[model.TankReading]) error {
	t.mu.Lock()
	t.id = id
	t.fb = feedback
	t.mu.Unlock()
	t.Push(t.level)
	return nil
}

func (t *Tank) Push(level model.Indicator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.level = level
	if t.fb != nil {
		t.fb.Send(model.TankReading{ID: t.id, Level: level, Valid: true})
	}
}

func (t *Tank) Level(context.Context) (model.Indicator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level, nil
}

var fanRPM = map[model.FanSetting]float32{model.FanOff: 0, model.FanLow: 900, model.FanHigh: 1800}

type Fan struct {
	mu       sync.Mutex
	id       uint8
	setting  model.FanSetting
	duty     float32
	history  []model.FanSetting
	rpm      *bus.Broadcast[model.Reading]
	stallRPM bool
}

func (f *Fan) Init(ctx context.Context, id uint8, rpm *bus.Broadcast[model.Reading], cmds <-chan model.FanCmd) error {
	f.mu.Lock()
	f.id = id
	f.rpm = rpm
	f.mu.Unlock()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-cmds:
				f.Set(ctx, cmd.Setting)
			}
		}
	}()
	return nil
}

func (f *Fan) Set(_ context.Context, setting model.FanSetting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setting = setting
	f.history = append(f.history, setting)
	if f.rpm != nil {
		f.rpm.Send(model.ValidReading(f.id, f.currentRPM()))
	}
	return nil
}

func (f *Fan) SetDutyCycle(_ context.Context, duty float32) error {
	if duty < 0 || duty > 1 {
		return errors.New("duty cycle out of range")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duty = duty
	return nil
}

func (f *Fan) RPM(context.Context) (float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentRPM(), nil
}

func (f *Fan) currentRPM() float32 {
	if f.stallRPM {
		return 0
	}
	return fanRPM[f.setting]
}

// Stall makes the fan report zero rpm regardless of its setting.
func (f *Fan) Stall() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stallRPM = true
}

func (f *Fan) History() []model.FanSetting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.FanSetting(nil), f.history...)
}

type Lamp struct {
	mu      sync.Mutex
	on      bool
	history []bool
}

func (l *Lamp) Init(ctx context.Context, _ uint8, cmds <-chan model.LampCmd) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-cmds:
				l.Set(ctx, cmd.On)
			}
		}
	}()
	return nil
}

func (l *Lamp) Set(_ context.Context, on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = on
	l.history = append(l.history, on)
	return nil
}

func (l *Lamp) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

func (l *Lamp) History() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.history...)
}

// Aux reports hub connectivity.
type Aux struct {
	mu     sync.Mutex
	id     uint8
	health *bus.Broadcast[model.DeviceEvent]
}

func (a *Aux) Init(_ context.Context, id uint8, health *bus.Broadcast[model.DeviceEvent]) error {
	a.mu.Lock()
	a.id = id
	a.health = health
	a.mu.Unlock()
	a.Report(true, "connected")
	return nil
}

func (a *Aux) Report(connected bool, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.health != nil {
		a.health.Send(model.DeviceEvent{ID: a.id, Connected: connected, Msg: msg})
	}
}
