package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/manager"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type command struct {
	name string
	help string
	// locked commands hold the house lock while they run.
	locked bool
	run    func(ctx context.Context, arg string) error
}

// table lists commands in match order. A name that contains another must
// come before it.
func (c *Console) table() []command {
	return []command{
		{name: "armupdate", help: "request an arm position update", locked: true, run: c.armUpdate},
		{name: "armpos", help: "print the arm position", locked: true, run: c.armPos},
		{name: "update", help: "print every zone status", run: c.update},
		{name: "board", help: "redraw the indicator board", run: c.board},
		{name: "blink", help: "run the board lamp test", run: c.blink},
		{name: "status", help: "toggle zone status output", run: c.toggleStatus},
		{name: "log", help: "toggle zone log output", run: c.toggleLog},
		{name: "pset", help: "pset <n>: find the target of water zone n with the remote", run: c.pset},
		{name: "pshow", help: "pshow <n>: print the target of water zone n", run: c.pshow},
		{name: "pgoto", help: "pgoto <n>: move the arm to the target of water zone n", locked: true, run: c.pgoto},
		{name: "pconfirm", help: "pconfirm <n>: check the arm is at the target of water zone n", locked: true, run: c.pconfirm},
		{name: "load", help: "apply settings from the zones file", run: c.load},
		{name: "save", help: "write settings to the zones file", run: c.save},
		{name: "moist", help: "moist <n>: read moisture of water zone n", locked: true, run: c.moist},
		{name: "light1", help: "read the light meter", locked: true, run: c.light},
		{name: "temp1", help: "read the air temperature", locked: true, run: c.temp},
		{name: "tank1", help: "read the tank level", locked: true, run: c.tank},
		{name: "fan1dc", help: "fan1dc <f>: set the fan duty cycle", locked: true, run: c.fanDuty},
		{name: "fan1set", help: "fan1set <off|low|high>: override the fan setting", locked: true, run: c.fanSet},
		{name: "fan1", help: "read the fan speed", locked: true, run: c.fan},
		{name: "lamp1on", help: "switch the lamp on", locked: true, run: c.lamp(true)},
		{name: "lamp1off", help: "switch the lamp off", locked: true, run: c.lamp(false)},
		{name: "pump1run", help: "run the pump until stopped", locked: true, run: c.pumpRun},
		{name: "pump1float", help: "let the pump coast", locked: true, run: c.pumpFloat},
		{name: "pump1", help: "run the pump for its configured time", locked: true, run: c.pumpRunFor},
		{name: "ps", help: "stop the pump", locked: true, run: c.pumpStop},
		{name: "arm1x", help: "arm1x <i>: move the arm along x", locked: true, run: c.armX},
		{name: "arm1y", help: "arm1y <i>: move the arm along y", locked: true, run: c.armY},
		{name: "arm1", help: "print the arm state", locked: true, run: c.arm},
		{name: "calib", help: "calibrate the arm against its endstops", locked: true, run: c.calibrate},
		{name: "l", help: "list commands", run: c.list},
		{name: "q", help: "quit", run: func(context.Context, string) error { return ErrQuit }},
	}
}

func (c *Console) list(context.Context, string) error {
	fmt.Fprint(c.Out, c.Help())
	return nil
}

func (c *Console) update(context.Context, string) error {
	for _, d := range c.House.CollectDisplayStatus() {
		c.printf("%s", manager.StatusLine(d))
	}
	return nil
}

func (c *Console) board(ctx context.Context, _ string) error {
	c.printf("board %08b", c.Controller.UpdateBoard(ctx))
	return nil
}

func (c *Console) blink(ctx context.Context, _ string) error {
	return c.Controller.Blink(ctx)
}

func (c *Console) toggleStatus(context.Context, string) error {
	c.printf("status output %s", onOff(c.Controller.ToggleStatus()))
	return nil
}

func (c *Console) toggleLog(context.Context, string) error {
	c.printf("log output %s", onOff(c.Controller.ToggleLog()))
	return nil
}

func (c *Console) pset(ctx context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	c.printf("Water zone %d: drive with the remote, confirm to store, back to cancel", id)
	pos, err := c.Controller.FindPosition(ctx, id)
	if err != nil {
		return err
	}
	if pos == nil {
		c.printf("Water zone %d position unchanged", id)
		return nil
	}
	c.printf("Water zone %d position %s", id, pos)
	return nil
}

func (c *Console) pshow(_ context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	s, err := c.House.WaterSettings(id)
	if err != nil {
		return err
	}
	c.printf("Water zone %d arm %d %s", id, s.Position.ArmID, s.Position.Position())
	return nil
}

func (c *Console) pgoto(ctx context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	s, err := c.House.WaterSettings(id)
	if err != nil {
		return err
	}
	p := s.Position
	return c.House.ArmGoto(ctx, p.ArmID, p.X, p.Y, p.Z)
}

func (c *Console) pconfirm(_ context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	ok, diff, err := c.House.ConfirmArmPosition(id, c.ConfirmDelta)
	if err != nil {
		return err
	}
	if ok {
		c.printf("Water zone %d position confirmed", id)
	} else {
		c.printf("Water zone %d position off by %s", id, diff)
	}
	return nil
}

func (c *Console) load(context.Context, string) error {
	cfgs, err := c.Settings.Load()
	if err != nil {
		return err
	}
	skipped, err := c.House.Apply(cfgs)
	if err != nil {
		return err
	}
	for _, cfg := range skipped {
		c.printf("skipped %s %d: no such zone", cfg.Kind, cfg.ID)
	}
	c.printf("loaded %d zone settings", len(cfgs)-len(skipped))
	return nil
}

func (c *Console) save(context.Context, string) error {
	cfgs := c.House.Configs()
	if err := c.Settings.Save(cfgs); err != nil {
		return err
	}
	c.printf("saved %d zone settings", len(cfgs))
	return nil
}

func (c *Console) moist(ctx context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	v, err := c.House.ReadMoisture(ctx, id)
	if err != nil {
		return err
	}
	c.printf("moisture %d: %.1f%%", id, v)
	return nil
}

func (c *Console) light(ctx context.Context, _ string) error {
	v, err := c.House.ReadLight(ctx, 1)
	if err != nil {
		return err
	}
	c.printf("light: %.0f lux", v)
	return nil
}

func (c *Console) temp(ctx context.Context, _ string) error {
	v, err := c.House.ReadTemperature(ctx, 1)
	if err != nil {
		return err
	}
	c.printf("temperature: %.1f C", v)
	return nil
}

func (c *Console) tank(ctx context.Context, _ string) error {
	v, err := c.House.ReadTank(ctx, 1)
	if err != nil {
		return err
	}
	c.printf("tank: %s", v)
	return nil
}

func (c *Console) fanDuty(ctx context.Context, arg string) error {
	duty, err := parseFloat32(arg)
	if err != nil {
		return err
	}
	return c.House.SetFanDutyCycle(ctx, 1, duty)
}

func (c *Console) fanSet(ctx context.Context, arg string) error {
	var setting model.FanSetting
	switch firstField(arg) {
	case "off":
		setting = model.FanOff
	case "low":
		setting = model.FanLow
	case "high":
		setting = model.FanHigh
	default:
		return fmt.Errorf("%w: fan setting %q", model.ErrParse, arg)
	}
	return c.House.SetFan(ctx, 1, setting)
}

func (c *Console) fan(ctx context.Context, _ string) error {
	v, err := c.House.FanRPM(ctx, 1)
	if err != nil {
		return err
	}
	c.printf("fan: %.0f rpm", v)
	return nil
}

func (c *Console) lamp(on bool) func(ctx context.Context, arg string) error {
	return func(ctx context.Context, _ string) error {
		return c.House.SetLamp(ctx, 1, on)
	}
}

func (c *Console) pumpRun(ctx context.Context, _ string) error {
	return c.House.PumpRun(ctx, 1)
}

func (c *Console) pumpRunFor(ctx context.Context, _ string) error {
	s, err := c.House.PumpSettings(1)
	if err != nil {
		return err
	}
	return c.House.PumpRunFor(ctx, 1, uint32(s.RunForSecs))
}

func (c *Console) pumpStop(ctx context.Context, _ string) error {
	return c.House.PumpStop(ctx, 1)
}

func (c *Console) pumpFloat(ctx context.Context, _ string) error {
	return c.House.PumpFloat(ctx, 1)
}

func (c *Console) armX(ctx context.Context, arg string) error {
	x, err := parseInt32(arg)
	if err != nil {
		return err
	}
	return c.House.ArmGotoX(ctx, 1, x)
}

func (c *Console) armY(ctx context.Context, arg string) error {
	y, err := parseInt32(arg)
	if err != nil {
		return err
	}
	return c.House.ArmGotoY(ctx, 1, y)
}

func (c *Console) arm(context.Context, string) error {
	state, err := c.House.ArmState(1)
	if err != nil {
		return err
	}
	pos, err := c.House.ArmPosition(1)
	if err != nil {
		return err
	}
	c.printf("arm: %s at %s", state, pos)
	return nil
}

func (c *Console) armUpdate(ctx context.Context, _ string) error {
	return c.House.ArmUpdate(ctx, 1)
}

func (c *Console) armPos(context.Context, string) error {
	pos, err := c.House.ArmPosition(1)
	if err != nil {
		return err
	}
	c.printf("arm position %s", pos)
	return nil
}

func (c *Console) calibrate(ctx context.Context, _ string) error {
	drift, err := c.House.ArmCalibrate(ctx, 1)
	if err != nil {
		return err
	}
	c.printf("arm calibrated, drift %s", drift)
	if c.Calibrations == nil {
		return nil
	}
	if err := c.Calibrations.RecordCalibration(db.Calibration{ArmID: 1, At: model.Now(), Drift: drift}); err != nil {
		return fmt.Errorf("failed to record calibration: %w", err)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Help renders the command list.
func (c *Console) Help() string {
	var sb strings.Builder
	for _, cmd := range c.commands {
		fmt.Fprintf(&sb, "  %-10s %s\n", cmd.name, cmd.help)
	}
	return sb.String()
}
