package zone

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/grow-controller/internal/device"
	"github.com/thatsimonsguy/grow-controller/internal/model"
	"github.com/thatsimonsguy/grow-controller/internal/sim"
)

func start(t *testing.T, z Zone) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		z.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return cancel
}

func collect[T any](ch <-chan T, wait time.Duration) []T {
	var out []T
	timeout := time.After(wait)
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		case <-timeout:
			return out
		}
	}
}

func TestWater_SameSampleTwicePublishesOnce(t *testing.T) {
	b := NewBus()
	displays, cancel := b.Display.Subscribe()
	defer cancel()

	z := NewWater(1, waterSettings, b)
	z.Sensor = sim.NewSensor(0)
	z.Ticks = make(chan time.Time)
	start(t, z)

	z.Moisture().Send(model.ValidReading(1, 25))
	z.Moisture().Send(model.ValidReading(1, 25))

	got := collect(displays, 200*time.Millisecond)
	require.Len(t, got, 2, "initial status plus one transition")
	assert.Equal(t, model.Yellow, got[1].Status.Indicator)
	assert.Equal(t, "Moisture low", got[1].Status.Msg)
	assert.True(t, z.Display().SameAs(got[1].Status))

	logs := collect(b.Log.Recv(), 50*time.Millisecond)
	assert.Len(t, logs, 2, "every sample is logged")
}

func TestWater_RequestsWateringBelowLimit(t *testing.T) {
	b := NewBus()
	ticks := make(chan time.Time)
	z := NewWater(1, waterSettings, b)
	z.Sensor = sim.NewSensor(0)
	z.Ticks = ticks
	start(t, z)

	for _, v := range []float32{60, 55} {
		z.Moisture().Send(model.ValidReading(1, v))
		require.Eventually(t, func() bool { return z.Status().Snapshot().Moisture.Value == v }, time.Second, 5*time.Millisecond)
		ticks <- time.Now()
	}

	z.Moisture().Send(model.ValidReading(1, 45))
	require.Eventually(t, func() bool { return z.Status().Snapshot().Moisture.Value == 45 }, time.Second, 5*time.Millisecond)
	ticks <- time.Now()

	var requests []Update
	for _, u := range collect(b.Update.Recv(), 200*time.Millisecond) {
		if u.Water != nil {
			requests = append(requests, u)
		}
	}
	require.Len(t, requests, 1)
	assert.Equal(t, uint8(1), requests[0].ID)
	assert.Equal(t, float32(45), requests[0].Water.Moisture.Value)
	assert.Equal(t, waterSettings, requests[0].Water.Settings)
}

func TestWater_ReportOverridesStatus(t *testing.T) {
	b := NewBus()
	z := NewWater(1, waterSettings, b)
	z.Sensor = sim.NewSensor(0)
	z.Ticks = make(chan time.Time)
	start(t, z)

	require.NoError(t, z.Report(context.Background(), model.Red, "Tank 1 empty"))
	require.Eventually(t, func() bool { return z.Display().Msg == "Tank 1 empty" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.Red, z.Display().Indicator)
}

func TestWater_MissingSensorIsRed(t *testing.T) {
	b := NewBus()
	z := NewWater(2, waterSettings, b)
	z.Ticks = make(chan time.Time)
	start(t, z)

	require.Eventually(t, func() bool { return z.Display().Msg == msgNoDevice }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.Red, z.Display().Indicator)
}

func TestAir_FanStepsUpAndDown(t *testing.T) {
	b := NewBus()
	z := NewAir(1, model.AirSettings{TempFanLow: 25, TempFanHigh: 30, TempWarning: 35, TempHigh: 40}, b)
	z.Thermometer = sim.NewSensor(0)
	start(t, z)

	for _, temp := range []float32{24, 26, 28, 31, 29, 24} {
		z.Temperature().Send(model.ValidReading(1, temp))
		require.Eventually(t, func() bool {
			return z.Status().Snapshot().Temperature.Value == temp
		}, time.Second, 5*time.Millisecond)
	}

	var got []model.FanSetting
	for _, cmd := range collect(z.FanCommands(), 100*time.Millisecond) {
		got = append(got, cmd.Setting)
	}
	assert.Equal(t, []model.FanSetting{model.FanOff, model.FanLow, model.FanHigh, model.FanLow, model.FanOff}, got)
}

func TestAir_StayingInLowBandSendsOneCommand(t *testing.T) {
	b := NewBus()
	z := NewAir(1, model.AirSettings{TempFanLow: 25, TempFanHigh: 30, TempWarning: 35, TempHigh: 40}, b)
	start(t, z)

	for _, temp := range []float32{26, 27, 29.5, 28, 30} {
		z.Temperature().Send(model.ValidReading(1, temp))
		require.Eventually(t, func() bool {
			return z.Status().Snapshot().Temperature.Value == temp
		}, time.Second, 5*time.Millisecond)
	}

	cmds := collect(z.FanCommands(), 100*time.Millisecond)
	require.Len(t, cmds, 1)
	assert.Equal(t, model.FanLow, cmds[0].Setting)
}

func TestAir_DroppedFanCommandIsRetried(t *testing.T) {
	b := NewBus()
	z := NewAir(1, model.AirSettings{TempFanLow: 25, TempFanHigh: 30, TempWarning: 35, TempHigh: 40}, b)
	start(t, z)

	feed := func(temp float32) {
		z.Temperature().Send(model.ValidReading(1, temp))
		require.Eventually(t, func() bool {
			return z.Status().Snapshot().Temperature.Value == temp
		}, time.Second, 5*time.Millisecond)
	}

	// Nothing consumes the fan commands, so eight changes fill the queue.
	for range 4 {
		feed(24)
		feed(26)
	}
	feed(31)
	assert.Equal(t, model.FanLow, z.Status().Snapshot().Fan, "dropped command must not be recorded")

	require.Len(t, collect(z.FanCommands(), 50*time.Millisecond), 8)

	feed(31.5)
	cmds := collect(z.FanCommands(), 100*time.Millisecond)
	require.Len(t, cmds, 1)
	assert.Equal(t, model.FanHigh, cmds[0].Setting)
	assert.Equal(t, model.FanHigh, z.Status().Snapshot().Fan)
}

func TestAir_HighTemperatureIsRed(t *testing.T) {
	b := NewBus()
	z := NewAir(1, model.AirSettings{TempFanLow: 25, TempFanHigh: 30, TempWarning: 35, TempHigh: 40}, b)
	z.Thermometer = sim.NewSensor(0)
	start(t, z)

	z.Temperature().Send(model.ValidReading(1, 41))
	require.Eventually(t, func() bool { return z.Display().Indicator == model.Red }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Temperature high, 41.0 C", z.Display().Msg)
}

func TestLight_LampSchedule(t *testing.T) {
	b := NewBus()
	ticks := make(chan time.Time)
	z := NewLight(1, model.LightSettings{LuxLowYellow: 100, LuxLowRed: 10, LampOn: model.At(19, 30), LampOff: model.At(20, 45)}, b)
	z.Ticks = ticks
	start(t, z)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, hm := range [][2]int{{19, 29}, {19, 30}, {20, 0}, {20, 45}, {20, 46}} {
		ticks <- day.Add(time.Duration(hm[0])*time.Hour + time.Duration(hm[1])*time.Minute)
	}

	cmds := collect(z.LampCommands(), 100*time.Millisecond)
	require.Len(t, cmds, 2)
	assert.True(t, cmds[0].On)
	assert.False(t, cmds[1].On)
	assert.False(t, z.Status().Snapshot().Lamp)
}

func TestTimeOfDay_WindowWrapsMidnight(t *testing.T) {
	on, off := model.At(22, 0), model.At(6, 0)
	assert.True(t, model.At(23, 0).Within(on, off))
	assert.True(t, model.At(5, 59).Within(on, off))
	assert.False(t, model.At(6, 0).Within(on, off))
	assert.False(t, model.At(12, 0).Within(on, off))
}

func TestArm_AggregateStatePublishedOnTransitions(t *testing.T) {
	b := NewBus()
	z := NewArm(1, b)
	states, cancel := z.States().Subscribe()
	defer cancel()
	start(t, z)

	fb := z.Feedback()
	fb.State.Send(model.AxisState{Axis: model.AxisX, State: model.Busy})
	fb.State.Send(model.AxisState{Axis: model.AxisY, State: model.Busy})
	fb.State.Send(model.AxisState{Axis: model.AxisX, State: model.Idle})
	fb.State.Send(model.AxisState{Axis: model.AxisY, State: model.Idle})

	got := collect(states, 200*time.Millisecond)
	assert.Equal(t, []model.CmdState{model.Busy, model.Idle}, got)
}

func TestArm_TracksPosition(t *testing.T) {
	b := NewBus()
	z := NewArm(1, b)
	start(t, z)

	fb := z.Feedback()
	fb.Position.Send(model.AxisPosition{Axis: model.AxisX, Pos: 100})
	fb.Position.Send(model.AxisPosition{Axis: model.AxisY, Pos: 200})
	fb.Position.Send(model.AxisPosition{Axis: model.AxisZ, Pos: 3})

	require.Eventually(t, func() bool {
		return z.Status().Snapshot().Pos == model.Position{X: 100, Y: 200, Z: 3}
	}, time.Second, 5*time.Millisecond)
}

func TestArm_IdleCarriesFinalPosition(t *testing.T) {
	b := NewBus()
	z := NewArm(1, b)
	states, cancel := z.States().Subscribe()
	defer cancel()

	fb := z.Feedback()
	fb.State.Send(model.AxisState{Axis: model.AxisX, State: model.Busy})
	for pos := int32(10); pos <= 80; pos += 10 {
		fb.Position.Send(model.AxisPosition{Axis: model.AxisX, Pos: pos})
	}
	fb.State.Send(model.AxisState{Axis: model.AxisX, State: model.Idle})
	start(t, z)

	for {
		select {
		case s := <-states:
			if s != model.Idle {
				continue
			}
			assert.Equal(t, int32(80), z.Status().Snapshot().Pos.X)
			return
		case <-time.After(time.Second):
			t.Fatal("arm never reported idle")
		}
	}
}

func TestArm_DisconnectIsSticky(t *testing.T) {
	b := NewBus()
	z := NewArm(1, b)
	start(t, z)

	z.Feedback().Health.Send(model.DeviceEvent{ID: 1, Connected: false, Msg: "hub lost"})
	require.Eventually(t, func() bool { return z.Display().Indicator == model.Red }, time.Second, 5*time.Millisecond)

	z.Feedback().State.Send(model.AxisState{Axis: model.AxisX, State: model.Busy})
	z.Feedback().State.Send(model.AxisState{Axis: model.AxisX, State: model.Idle})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, model.Red, z.Display().Indicator)
	assert.Equal(t, "Disconnected, hub lost", z.Display().Msg)
}

type fakePump struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePump) record(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
	return nil
}

func (f *fakePump) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePump) Init(context.Context, uint8, device.PumpFeedback) error { return nil }
func (f *fakePump) Run(context.Context) error                              { return f.record("run") }
func (f *fakePump) Stop(context.Context) error                             { return f.record("stop") }
func (f *fakePump) Float(context.Context) error                            { return f.record("float") }
func (f *fakePump) RunFor(_ context.Context, d time.Duration) error {
	return f.record("run_for " + d.String())
}

func TestPump_ProcessesCommandsInOrder(t *testing.T) {
	b := NewBus()
	z := NewPump(1, model.PumpSettings{RunForSecs: 5}, b)
	dev := &fakePump{}
	z.Device = dev
	z.sleep = func(context.Context, time.Duration) error { return nil }
	start(t, z)

	z.Commands() <- model.PumpMsg{ID: 1, Cmd: model.PumpCmd{Kind: model.PumpRunFor}}
	z.Commands() <- model.PumpMsg{ID: 1, Cmd: model.PumpCmd{Kind: model.PumpRunFor, Secs: 2}}
	z.Commands() <- model.PumpMsg{ID: 1, Cmd: model.PumpCmd{Kind: model.PumpStop}}

	require.Eventually(t, func() bool { return len(dev.Calls()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"run_for 5s", "run_for 2s", "stop"}, dev.Calls())
}

func TestPump_TachoDrivesRunningStatus(t *testing.T) {
	b := NewBus()
	z := NewPump(1, model.PumpSettings{RunForSecs: 5}, b)
	z.Device = &fakePump{}
	start(t, z)

	z.Tacho().Send(model.ValidReading(1, 100))
	require.Eventually(t, func() bool { return z.Display().Indicator == model.Blue }, time.Second, 5*time.Millisecond)

	z.Tacho().Send(model.ValidReading(1, 0))
	require.Eventually(t, func() bool { return z.Display().Indicator == model.Green }, time.Second, 5*time.Millisecond)
}

func TestPump_MissingDeviceReportsError(t *testing.T) {
	b := NewBus()
	z := NewPump(1, model.PumpSettings{}, b)
	start(t, z)

	z.Commands() <- model.PumpMsg{ID: 1, Cmd: model.PumpCmd{Kind: model.PumpRun}}
	require.Eventually(t, func() bool {
		return z.Display().Msg == "device unavailable: pump 1"
	}, time.Second, 5*time.Millisecond)
}

func TestRunners_StopOnCancel(t *testing.T) {
	b := NewBus()
	zones := []Zone{
		NewAir(1, model.AirSettings{}, b),
		NewLight(1, model.LightSettings{}, b),
		NewWater(1, waterSettings, b),
		NewTank(1, b),
		NewPump(1, model.PumpSettings{}, b),
		NewArm(1, b),
		NewAux(1, b),
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, z := range zones {
		wg.Add(1)
		go func(z Zone) {
			defer wg.Done()
			z.Run(ctx)
		}(z)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runners did not stop after cancellation")
	}
}
