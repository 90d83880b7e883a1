// Package console is the operator's line-command shell.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

type House interface {
	Lock(ctx context.Context) error
	Unlock()
	CollectDisplayStatus() []model.ZoneDisplay
	Configs() []model.ZoneConfig
	Apply(cfgs []model.ZoneConfig) ([]model.ZoneConfig, error)

	ReadTemperature(ctx context.Context, id uint8) (float32, error)
	FanRPM(ctx context.Context, id uint8) (float32, error)
	SetFan(ctx context.Context, id uint8, setting model.FanSetting) error
	SetFanDutyCycle(ctx context.Context, id uint8, duty float32) error
	ReadLight(ctx context.Context, id uint8) (float32, error)
	SetLamp(ctx context.Context, id uint8, on bool) error
	ReadMoisture(ctx context.Context, id uint8) (float32, error)
	ReadTank(ctx context.Context, id uint8) (model.Indicator, error)

	PumpSettings(id uint8) (model.PumpSettings, error)
	PumpRun(ctx context.Context, id uint8) error
	PumpStop(ctx context.Context, id uint8) error
	PumpFloat(ctx context.Context, id uint8) error
	PumpRunFor(ctx context.Context, id uint8, secs uint32) error

	ArmGoto(ctx context.Context, id uint8, x, y, z int32) error
	ArmGotoX(ctx context.Context, id uint8, x int32) error
	ArmGotoY(ctx context.Context, id uint8, y int32) error
	ArmUpdate(ctx context.Context, id uint8) error
	ArmPosition(id uint8) (model.Position, error)
	ArmState(id uint8) (model.CmdState, error)
	ArmCalibrate(ctx context.Context, id uint8) (model.Position, error)

	WaterSettings(id uint8) (model.WaterSettings, error)
	ConfirmArmPosition(waterID uint8, delta int32) (bool, model.Position, error)
}

// Controller is the manager surface the console drives.
type Controller interface {
	UpdateBoard(ctx context.Context) byte
	Blink(ctx context.Context) error
	FindPosition(ctx context.Context, waterID uint8) (*model.Position, error)
	ToggleLog() bool
	ToggleStatus() bool
}

type Settings interface {
	Load() ([]model.ZoneConfig, error)
	Save(cfgs []model.ZoneConfig) error
}

type Calibrations interface {
	RecordCalibration(c db.Calibration) error
}

type Deps struct {
	House        House
	Controller   Controller
	Settings     Settings
	Calibrations Calibrations
	Out          io.Writer
	ConfirmDelta int32
}

type Console struct {
	Deps
	commands []command
}

func New(d Deps) *Console {
	if d.Out == nil {
		d.Out = io.Discard
	}
	c := &Console{Deps: d}
	c.commands = c.table()
	return c
}

// Execute runs the first command whose name occurs in line. Unknown input
// is ignored.
func (c *Console) Execute(ctx context.Context, line string) error {
	lower := strings.ToLower(strings.TrimSpace(line))
	if lower == "" {
		return nil
	}
	cmd, arg, ok := c.match(lower)
	if !ok {
		return nil
	}
	if cmd.locked {
		if err := c.House.Lock(ctx); err != nil {
			return err
		}
		defer c.House.Unlock()
	}
	return cmd.run(ctx, arg)
}

func (c *Console) match(lower string) (command, string, bool) {
	for _, cmd := range c.commands {
		i := strings.Index(lower, cmd.name)
		if i < 0 {
			continue
		}
		return cmd, strings.TrimSpace(lower[i+len(cmd.name):]), true
	}
	return command{}, "", false
}

// Run reads commands from rl until quit, EOF or ctx is done. Quit is
// reported as ErrQuit; EOF leaves the controller running headless.
func (c *Console) Run(ctx context.Context, rl *readline.Instance) error {
	stop := context.AfterFunc(ctx, func() { rl.Close() })
	defer stop()
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			log.Info().Msg("Console closed")
			return nil
		}
		switch err := c.Execute(ctx, line); {
		case errors.Is(err, ErrQuit):
			log.Info().Msg("Quit requested from console")
			return ErrQuit
		case err != nil:
			fmt.Fprintln(c.Out, "error:", err)
		}
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format+"\n", args...)
}

func parseID(arg string) (uint8, error) {
	v, err := strconv.ParseUint(firstField(arg), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: zone id %q", model.ErrParse, arg)
	}
	return uint8(v), nil
}

func parseInt32(arg string) (int32, error) {
	v, err := strconv.ParseInt(firstField(arg), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: integer %q", model.ErrParse, arg)
	}
	return int32(v), nil
}

func parseFloat32(arg string) (float32, error) {
	v, err := strconv.ParseFloat(firstField(arg), 32)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", model.ErrParse, arg)
	}
	return float32(v), nil
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
