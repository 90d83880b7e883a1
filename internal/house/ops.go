package house

import (
	"context"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

func (h *House) ReadTemperature(ctx context.Context, id uint8) (float32, error) {
	z, err := h.Air(id)
	if err != nil {
		return 0, err
	}
	if z.Thermometer == nil {
		return 0, model.DeviceUnavailable(model.KindAir, id)
	}
	v, err := z.Thermometer.Read(ctx)
	return v, model.DeviceIO(err)
}

func (h *House) FanRPM(ctx context.Context, id uint8) (float32, error) {
	z, err := h.Air(id)
	if err != nil {
		return 0, err
	}
	if z.Fan == nil {
		return 0, model.DeviceUnavailable(model.KindAir, id)
	}
	v, err := z.Fan.RPM(ctx)
	return v, model.DeviceIO(err)
}

func (h *House) SetFan(ctx context.Context, id uint8, setting model.FanSetting) error {
	z, err := h.Air(id)
	if err != nil {
		return err
	}
	if z.Fan == nil {
		return model.DeviceUnavailable(model.KindAir, id)
	}
	return model.DeviceIO(z.Fan.Set(ctx, setting))
}

func (h *House) SetFanDutyCycle(ctx context.Context, id uint8, duty float32) error {
	z, err := h.Air(id)
	if err != nil {
		return err
	}
	if z.Fan == nil {
		return model.DeviceUnavailable(model.KindAir, id)
	}
	return model.DeviceIO(z.Fan.SetDutyCycle(ctx, duty))
}

func (h *House) ReadLight(ctx context.Context, id uint8) (float32, error) {
	z, err := h.Light(id)
	if err != nil {
		return 0, err
	}
	if z.Meter == nil {
		return 0, model.DeviceUnavailable(model.KindLight, id)
	}
	v, err := z.Meter.Read(ctx)
	return v, model.DeviceIO(err)
}

func (h *House) SetLamp(ctx context.Context, id uint8, on bool) error {
	z, err := h.Light(id)
	if err != nil {
		return err
	}
	if z.Lamp == nil {
		return model.DeviceUnavailable(model.KindLight, id)
	}
	return model.DeviceIO(z.Lamp.Set(ctx, on))
}

func (h *House) ReadMoisture(ctx context.Context, id uint8) (float32, error) {
	z, err := h.Water(id)
	if err != nil {
		return 0, err
	}
	if z.Sensor == nil {
		return 0, model.DeviceUnavailable(model.KindWater, id)
	}
	v, err := z.Sensor.Read(ctx)
	return v, model.DeviceIO(err)
}

func (h *House) ReadTank(ctx context.Context, id uint8) (model.Indicator, error) {
	z, err := h.Tank(id)
	if err != nil {
		return model.Red, err
	}
	if z.Sensor == nil {
		return model.Red, model.DeviceUnavailable(model.KindTank, id)
	}
	v, err := z.Sensor.Level(ctx)
	return v, model.DeviceIO(err)
}

func (h *House) PumpRun(ctx context.Context, id uint8) error {
	z, err := h.Pump(id)
	if err != nil {
		return err
	}
	if z.Device == nil {
		return model.DeviceUnavailable(model.KindPump, id)
	}
	return model.DeviceIO(z.Device.Run(ctx))
}

func (h *House) PumpStop(ctx context.Context, id uint8) error {
	z, err := h.Pump(id)
	if err != nil {
		return err
	}
	if z.Device == nil {
		return model.DeviceUnavailable(model.KindPump, id)
	}
	return model.DeviceIO(z.Device.Stop(ctx))
}

func (h *House) PumpFloat(ctx context.Context, id uint8) error {
	z, err := h.Pump(id)
	if err != nil {
		return err
	}
	if z.Device == nil {
		return model.DeviceUnavailable(model.KindPump, id)
	}
	return model.DeviceIO(z.Device.Float(ctx))
}

// PumpRunFor queues a timed run on the pump's command channel. A zero
// duration uses the pump's run_for_secs setting.
func (h *House) PumpRunFor(ctx context.Context, id uint8, secs uint32) error {
	z, err := h.Pump(id)
	if err != nil {
		return err
	}
	select {
	case z.Commands() <- model.PumpMsg{ID: id, Cmd: model.PumpCmd{Kind: model.PumpRunFor, Secs: secs}}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *House) ArmGoto(ctx context.Context, id uint8, x, y, z int32) error {
	a, err := h.Arm(id)
	if err != nil {
		return err
	}
	if a.Device == nil {
		return model.DeviceUnavailable(model.KindArm, id)
	}
	return model.DeviceIO(a.Device.Goto(ctx, x, y, z))
}

func (h *House) ArmGotoX(ctx context.Context, id uint8, x int32) error {
	a, err := h.Arm(id)
	if err != nil {
		return err
	}
	if a.Device == nil {
		return model.DeviceUnavailable(model.KindArm, id)
	}
	return model.DeviceIO(a.Device.GotoX(ctx, x))
}

func (h *House) ArmGotoY(ctx context.Context, id uint8, y int32) error {
	a, err := h.Arm(id)
	if err != nil {
		return err
	}
	if a.Device == nil {
		return model.DeviceUnavailable(model.KindArm, id)
	}
	return model.DeviceIO(a.Device.GotoY(ctx, y))
}

func (h *House) ArmUpdate(ctx context.Context, id uint8) error {
	a, err := h.Arm(id)
	if err != nil {
		return err
	}
	if a.Device == nil {
		return model.DeviceUnavailable(model.KindArm, id)
	}
	return model.DeviceIO(a.Device.UpdatePos(ctx))
}

func (h *House) ArmPosition(id uint8) (model.Position, error) {
	a, err := h.Arm(id)
	if err != nil {
		return model.Position{}, err
	}
	if a.Device == nil {
		return model.Position{}, model.DeviceUnavailable(model.KindArm, id)
	}
	return a.Device.Position(), nil
}

func (h *House) ArmCalibrate(ctx context.Context, id uint8) (model.Position, error) {
	a, err := h.Arm(id)
	if err != nil {
		return model.Position{}, err
	}
	if a.Device == nil {
		return model.Position{}, model.DeviceUnavailable(model.KindArm, id)
	}
	return a.Device.Calibrate(ctx)
}

func (h *House) ArmCommands(id uint8) (chan<- model.ArmCmd, error) {
	a, err := h.Arm(id)
	if err != nil {
		return nil, err
	}
	return a.Commands(), nil
}

func (h *House) ArmStates(id uint8) (*bus.Broadcast[model.CmdState], error) {
	a, err := h.Arm(id)
	if err != nil {
		return nil, err
	}
	return a.States(), nil
}

func (h *House) ArmState(id uint8) (model.CmdState, error) {
	a, err := h.Arm(id)
	if err != nil {
		return model.Busy, err
	}
	return a.Status().Snapshot().State, nil
}

func (h *House) WaterSettings(id uint8) (model.WaterSettings, error) {
	z, err := h.Water(id)
	if err != nil {
		return model.WaterSettings{}, err
	}
	return z.Settings(), nil
}

func (h *House) AirSettings(id uint8) (model.AirSettings, error) {
	z, err := h.Air(id)
	if err != nil {
		return model.AirSettings{}, err
	}
	return z.Settings(), nil
}

func (h *House) LightSettings(id uint8) (model.LightSettings, error) {
	z, err := h.Light(id)
	if err != nil {
		return model.LightSettings{}, err
	}
	return z.Settings(), nil
}

func (h *House) PumpSettings(id uint8) (model.PumpSettings, error) {
	z, err := h.Pump(id)
	if err != nil {
		return model.PumpSettings{}, err
	}
	return z.Settings(), nil
}

func (h *House) SetWaterPosition(id uint8, p model.Position) error {
	z, err := h.Water(id)
	if err != nil {
		return err
	}
	z.SetPosition(p)
	return nil
}

// ConfirmArmPosition reports whether the arm named by the water zone's
// target is within delta of it on every axis, and the difference
// target minus current.
func (h *House) ConfirmArmPosition(waterID uint8, delta int32) (bool, model.Position, error) {
	s, err := h.WaterSettings(waterID)
	if err != nil {
		return false, model.Position{}, err
	}
	current, err := h.ArmPosition(s.Position.ArmID)
	if err != nil {
		return false, model.Position{}, err
	}
	diff := s.Position.Position().Sub(current)
	ok := within(diff.X, delta) && within(diff.Y, delta) && within(diff.Z, delta)
	return ok, diff, nil
}

func within(v, delta int32) bool {
	if v < 0 {
		v = -v
	}
	return v <= delta
}

// ReportWater publishes a status for a water zone through its runner.
func (h *House) ReportWater(ctx context.Context, id uint8, ind model.Indicator, msg string) error {
	z, err := h.Water(id)
	if err != nil {
		return err
	}
	return z.Report(ctx, ind, msg)
}
