package manager

import (
	"bytes"
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type mockHouse struct {
	mock.Mock
	states *bus.Broadcast[model.CmdState]

	lockMu sync.Mutex
	held   bool
	locks  int
}

func newMockHouse() *mockHouse {
	return &mockHouse{states: bus.NewBroadcast[model.CmdState](8)}
}

func (h *mockHouse) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.lockMu.Lock()
	defer h.lockMu.Unlock()
	h.held = true
	h.locks++
	return nil
}

func (h *mockHouse) Unlock() {
	h.lockMu.Lock()
	defer h.lockMu.Unlock()
	h.held = false
}

func (h *mockHouse) isHeld() bool {
	h.lockMu.Lock()
	defer h.lockMu.Unlock()
	return h.held
}

func (h *mockHouse) WaterSettings(id uint8) (model.WaterSettings, error) {
	args := h.Called(id)
	return args.Get(0).(model.WaterSettings), args.Error(1)
}

func (h *mockHouse) DisplayStatus(kind model.Kind, id uint8) (model.DisplayStatus, error) {
	args := h.Called(kind, id)
	return args.Get(0).(model.DisplayStatus), args.Error(1)
}

func (h *mockHouse) CollectDisplayStatus() []model.ZoneDisplay {
	args := h.Called()
	return args.Get(0).([]model.ZoneDisplay)
}

func (h *mockHouse) ArmGoto(ctx context.Context, id uint8, x, y, z int32) error {
	return h.Called(ctx, id, x, y, z).Error(0)
}

func (h *mockHouse) ArmStates(id uint8) (*bus.Broadcast[model.CmdState], error) {
	args := h.Called(id)
	states, _ := args.Get(0).(*bus.Broadcast[model.CmdState])
	return states, args.Error(1)
}

func (h *mockHouse) ArmState(id uint8) (model.CmdState, error) {
	args := h.Called(id)
	return args.Get(0).(model.CmdState), args.Error(1)
}

func (h *mockHouse) ArmCommands(id uint8) (chan<- model.ArmCmd, error) {
	args := h.Called(id)
	cmds, _ := args.Get(0).(chan<- model.ArmCmd)
	return cmds, args.Error(1)
}

func (h *mockHouse) ArmPosition(id uint8) (model.Position, error) {
	args := h.Called(id)
	return args.Get(0).(model.Position), args.Error(1)
}

func (h *mockHouse) ConfirmArmPosition(waterID uint8, delta int32) (bool, model.Position, error) {
	args := h.Called(waterID, delta)
	return args.Bool(0), args.Get(1).(model.Position), args.Error(2)
}

func (h *mockHouse) SetWaterPosition(id uint8, p model.Position) error {
	return h.Called(id, p).Error(0)
}

func (h *mockHouse) PumpRun(ctx context.Context, id uint8) error {
	return h.Called(ctx, id).Error(0)
}

func (h *mockHouse) PumpStop(ctx context.Context, id uint8) error {
	return h.Called(ctx, id).Error(0)
}

func (h *mockHouse) ReportWater(ctx context.Context, id uint8, ind model.Indicator, msg string) error {
	return h.Called(ctx, id, ind, msg).Error(0)
}

type fakeHistory struct {
	mu    sync.Mutex
	runs  []db.WateringRun
	sys   []model.SysLog
	zones []model.ZoneLog
}

func (f *fakeHistory) RecordZoneLog(e model.ZoneLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones = append(f.zones, e)
	return nil
}

func (f *fakeHistory) RecordSysLog(e model.SysLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sys = append(f.sys, e)
	return nil
}

func (f *fakeHistory) RecordWateringRun(run db.WateringRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeHistory) counts() (runs, sys, zones int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs), len(f.sys), len(f.zones)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
