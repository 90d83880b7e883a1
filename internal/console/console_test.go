package console

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// mockHouse implements the methods the tests exercise. Anything else
// panics through the nil embedded interface.
type mockHouse struct {
	House
	mock.Mock
	locks   int
	unlocks int
}

func (h *mockHouse) Lock(context.Context) error { h.locks++; return nil }
func (h *mockHouse) Unlock()                    { h.unlocks++ }

func (h *mockHouse) ArmGotoX(ctx context.Context, id uint8, x int32) error {
	return h.Called(id, x).Error(0)
}

func (h *mockHouse) ArmCalibrate(ctx context.Context, id uint8) (model.Position, error) {
	args := h.Called(id)
	return args.Get(0).(model.Position), args.Error(1)
}

func (h *mockHouse) Apply(cfgs []model.ZoneConfig) ([]model.ZoneConfig, error) {
	args := h.Called(cfgs)
	skipped, _ := args.Get(0).([]model.ZoneConfig)
	return skipped, args.Error(1)
}

func (h *mockHouse) Configs() []model.ZoneConfig {
	return h.Called().Get(0).([]model.ZoneConfig)
}

func (h *mockHouse) PumpSettings(id uint8) (model.PumpSettings, error) {
	args := h.Called(id)
	return args.Get(0).(model.PumpSettings), args.Error(1)
}

func (h *mockHouse) PumpRunFor(ctx context.Context, id uint8, secs uint32) error {
	return h.Called(id, secs).Error(0)
}

func (h *mockHouse) SetFan(ctx context.Context, id uint8, setting model.FanSetting) error {
	return h.Called(id, setting).Error(0)
}

func (h *mockHouse) PumpFloat(ctx context.Context, id uint8) error {
	return h.Called(id).Error(0)
}

func (h *mockHouse) ConfirmArmPosition(waterID uint8, delta int32) (bool, model.Position, error) {
	args := h.Called(waterID, delta)
	return args.Bool(0), args.Get(1).(model.Position), args.Error(2)
}

func (h *mockHouse) ReadMoisture(ctx context.Context, id uint8) (float32, error) {
	args := h.Called(id)
	return args.Get(0).(float32), args.Error(1)
}

type fakeController struct {
	showLog  bool
	position *model.Position
	findErr  error
	found    []uint8
}

func (c *fakeController) UpdateBoard(context.Context) byte { return 0b10000001 }
func (c *fakeController) Blink(context.Context) error      { return nil }
func (c *fakeController) ToggleStatus() bool               { return true }

func (c *fakeController) ToggleLog() bool {
	c.showLog = !c.showLog
	return c.showLog
}

func (c *fakeController) FindPosition(_ context.Context, id uint8) (*model.Position, error) {
	c.found = append(c.found, id)
	return c.position, c.findErr
}

type fakeSettings struct {
	cfgs  []model.ZoneConfig
	saved []model.ZoneConfig
}

func (s *fakeSettings) Load() ([]model.ZoneConfig, error) { return s.cfgs, nil }

func (s *fakeSettings) Save(cfgs []model.ZoneConfig) error {
	s.saved = cfgs
	return nil
}

type fakeCalibrations struct{ recorded []db.Calibration }

func (f *fakeCalibrations) RecordCalibration(c db.Calibration) error {
	f.recorded = append(f.recorded, c)
	return nil
}

func newConsole() (*Console, *mockHouse, *fakeController, *bytes.Buffer) {
	h := &mockHouse{}
	ctrl := &fakeController{}
	out := &bytes.Buffer{}
	c := New(Deps{
		House:        h,
		Controller:   ctrl,
		Settings:     &fakeSettings{},
		Calibrations: &fakeCalibrations{},
		Out:          out,
		ConfirmDelta: 5,
	})
	return c, h, ctrl, out
}

func TestMatchPrefersSpecificCommands(t *testing.T) {
	c, _, _, _ := newConsole()

	tests := []struct {
		input string
		name  string
		arg   string
	}{
		{"pump1run", "pump1run", ""},
		{"pump1float", "pump1float", ""},
		{"pump1", "pump1", ""},
		{"ps", "ps", ""},
		{"pset 2", "pset", "2"},
		{"pshow 1", "pshow", "1"},
		{"pconfirm 1", "pconfirm", "1"},
		{"arm1x 120", "arm1x", "120"},
		{"arm1y -40", "arm1y", "-40"},
		{"arm1", "arm1", ""},
		{"armupdate", "armupdate", ""},
		{"armpos", "armpos", ""},
		{"update", "update", ""},
		{"fan1dc 0.5", "fan1dc", "0.5"},
		{"fan1set low", "fan1set", "low"},
		{"fan1", "fan1", ""},
		{"lamp1on", "lamp1on", ""},
		{"lamp1off", "lamp1off", ""},
		{"status", "status", ""},
		{"log", "log", ""},
		{"load", "load", ""},
		{"calib", "calib", ""},
		{"moist 2", "moist", "2"},
		{"l", "l", ""},
		{"q", "q", ""},
	}
	for _, tc := range tests {
		cmd, arg, ok := c.match(tc.input)
		require.True(t, ok, tc.input)
		assert.Equal(t, tc.name, cmd.name, tc.input)
		assert.Equal(t, tc.arg, arg, tc.input)
	}

	_, _, ok := c.match("xyz")
	assert.False(t, ok)
}

func TestExecuteIsCaseInsensitive(t *testing.T) {
	c, h, _, _ := newConsole()
	h.On("ArmGotoX", uint8(1), int32(120)).Return(nil).Once()

	require.NoError(t, c.Execute(context.Background(), "  ARM1X 120 "))
	h.AssertExpectations(t)
	assert.Equal(t, 1, h.locks)
	assert.Equal(t, 1, h.unlocks)
}

func TestExecuteParseErrorKeepsLoopAlive(t *testing.T) {
	c, h, _, _ := newConsole()

	err := c.Execute(context.Background(), "arm1x abc")
	assert.ErrorIs(t, err, model.ErrParse)
	h.AssertNotCalled(t, "ArmGotoX", mock.Anything, mock.Anything)
	assert.Equal(t, h.locks, h.unlocks)

	_, err = parseFloat32("")
	assert.ErrorIs(t, err, model.ErrParse)
}

func TestExecuteIgnoresUnknownInput(t *testing.T) {
	c, _, _, out := newConsole()

	require.NoError(t, c.Execute(context.Background(), "xyz"))
	require.NoError(t, c.Execute(context.Background(), "   "))
	assert.Empty(t, out.String())
}

func TestQuit(t *testing.T) {
	c, _, _, _ := newConsole()
	assert.ErrorIs(t, c.Execute(context.Background(), "q"), ErrQuit)
}

func TestToggles(t *testing.T) {
	c, _, ctrl, out := newConsole()

	require.NoError(t, c.Execute(context.Background(), "log"))
	assert.True(t, ctrl.showLog)
	require.NoError(t, c.Execute(context.Background(), "board"))

	assert.Equal(t, "log output on\nboard 10000001\n", out.String())
}

func TestPumpRunsForConfiguredTime(t *testing.T) {
	c, h, _, _ := newConsole()
	h.On("PumpSettings", uint8(1)).Return(model.PumpSettings{RunForSecs: 7}, nil)
	h.On("PumpRunFor", uint8(1), uint32(7)).Return(nil).Once()

	require.NoError(t, c.Execute(context.Background(), "pump1"))
	h.AssertExpectations(t)
}

func TestFanSetOverride(t *testing.T) {
	c, h, _, _ := newConsole()
	h.On("SetFan", uint8(1), model.FanHigh).Return(nil).Once()

	require.NoError(t, c.Execute(context.Background(), "FAN1SET high"))
	assert.ErrorIs(t, c.Execute(context.Background(), "fan1set max"), model.ErrParse)
	h.AssertExpectations(t)
	assert.Equal(t, 2, h.locks)
}

func TestPumpFloat(t *testing.T) {
	c, h, _, _ := newConsole()
	h.On("PumpFloat", uint8(1)).Return(nil).Once()

	require.NoError(t, c.Execute(context.Background(), "pump1float"))
	h.AssertExpectations(t)
}

func TestPsetReportsOutcome(t *testing.T) {
	c, h, ctrl, out := newConsole()

	require.NoError(t, c.Execute(context.Background(), "pset 2"))
	assert.Contains(t, out.String(), "Water zone 2 position unchanged")
	assert.Zero(t, h.locks, "finder takes the house lock itself")

	ctrl.position = &model.Position{X: 84, Y: 120}
	out.Reset()
	require.NoError(t, c.Execute(context.Background(), "pset 2"))
	assert.Contains(t, out.String(), "Water zone 2 position (84,120,0)")

	ctrl.findErr = errors.New("no remote control attached")
	assert.Error(t, c.Execute(context.Background(), "pset 2"))
	assert.Equal(t, []uint8{2, 2, 2}, ctrl.found)
}

func TestPconfirm(t *testing.T) {
	c, h, _, out := newConsole()
	h.On("ConfirmArmPosition", uint8(1), int32(5)).Return(false, model.Position{X: 10}, nil).Once()

	require.NoError(t, c.Execute(context.Background(), "pconfirm 1"))
	assert.Equal(t, "Water zone 1 position off by (10,0,0)\n", out.String())
}

func TestLoadAndSave(t *testing.T) {
	c, h, _, out := newConsole()
	settings := c.Settings.(*fakeSettings)
	settings.cfgs = []model.ZoneConfig{
		{Kind: model.KindTank, ID: 1},
		{Kind: model.KindTank, ID: 9},
	}
	h.On("Apply", settings.cfgs).Return([]model.ZoneConfig{{Kind: model.KindTank, ID: 9}}, nil)
	h.On("Configs").Return([]model.ZoneConfig{{Kind: model.KindTank, ID: 1}})

	require.NoError(t, c.Execute(context.Background(), "load"))
	assert.Contains(t, out.String(), "skipped tank 9: no such zone")
	assert.Contains(t, out.String(), "loaded 1 zone settings")

	require.NoError(t, c.Execute(context.Background(), "save"))
	assert.Equal(t, []model.ZoneConfig{{Kind: model.KindTank, ID: 1}}, settings.saved)
}

func TestCalibrateRecordsDrift(t *testing.T) {
	c, h, _, _ := newConsole()
	h.On("ArmCalibrate", uint8(1)).Return(model.Position{X: 3, Y: -2}, nil)

	require.NoError(t, c.Execute(context.Background(), "calib"))

	recorded := c.Calibrations.(*fakeCalibrations).recorded
	require.Len(t, recorded, 1)
	assert.Equal(t, uint8(1), recorded[0].ArmID)
	assert.Equal(t, model.Position{X: 3, Y: -2}, recorded[0].Drift)
	assert.Equal(t, 1, h.unlocks)
}

func TestMoistReadsGivenZone(t *testing.T) {
	c, h, _, out := newConsole()
	h.On("ReadMoisture", uint8(2)).Return(float32(41.5), nil)

	require.NoError(t, c.Execute(context.Background(), "moist 2"))
	assert.Equal(t, "moisture 2: 41.5%\n", out.String())
	assert.Equal(t, 1, h.locks, "sensor reads wait for a running watering cycle")
	assert.Equal(t, 1, h.unlocks)
}

func TestReadCommandsTakeHouseLock(t *testing.T) {
	c, _, _, _ := newConsole()
	for _, name := range []string{"armpos", "pconfirm", "moist", "light1", "temp1", "tank1", "fan1", "arm1"} {
		cmd, _, ok := c.match(name)
		require.True(t, ok, name)
		assert.True(t, cmd.locked, name)
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	c, _, _, _ := newConsole()
	help := c.Help()
	for _, cmd := range c.commands {
		assert.Contains(t, help, cmd.name)
	}
}
