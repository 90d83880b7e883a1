// Package device declares the capability contracts between the controller
// and hardware drivers. Drivers are constructed by wiring code and bound to
// their zone's feedback channels through Init.
package device

import (
	"context"
	"time"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type Thermometer interface {
	// Init starts sampling into feedback until ctx is done.
	Init(ctx context.Context, id uint8, feedback *bus.Broadcast[model.Reading]) error
	Read(ctx context.Context) (float32, error)
}

type Fan interface {
	// Init publishes rpm samples and applies settings received on cmds.
	Init(ctx context.Context, id uint8, rpm *bus.Broadcast[model.Reading], cmds <-chan model.FanCmd) error
	Set(ctx context.Context, setting model.FanSetting) error
	SetDutyCycle(ctx context.Context, duty float32) error
	RPM(ctx context.Context) (float32, error)
}

type Lightmeter interface {
	Init(ctx context.Context, id uint8, feedback *bus.Broadcast[model.Reading]) error
	Read(ctx context.Context) (float32, error)
}

type Lamp interface {
	Init(ctx context.Context, id uint8, cmds <-chan model.LampCmd) error
	Set(ctx context.Context, on bool) error
}

type MoistureSensor interface {
	Init(ctx context.Context, id uint8, feedback *bus.Broadcast[model.Reading]) error
	Read(ctx context.Context) (float32, error)
}

type TankSensor interface {
	Init(ctx context.Context, id uint8, feedback *bus.Broadcast[model.TankReading]) error
	Level(ctx context.Context) (model.Indicator, error)
}

type PumpFeedback struct {
	Tacho  *bus.Broadcast[model.Reading]
	Health *bus.Broadcast[model.DeviceEvent]
}

// Pump implementations serialize their own motor access, so the command
// channel and direct calls may be mixed.
type Pump interface {
	Init(ctx context.Context, id uint8, fb PumpFeedback) error
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
	Float(ctx context.Context) error
	RunFor(ctx context.Context, d time.Duration) error
}

type ArmFeedback struct {
	Position *bus.Broadcast[model.AxisPosition]
	State    *bus.Broadcast[model.AxisState]
	Health   *bus.Broadcast[model.DeviceEvent]
}

type Arm interface {
	Init(ctx context.Context, id uint8, fb ArmFeedback) error
	Goto(ctx context.Context, x, y, z int32) error
	GotoX(ctx context.Context, x int32) error
	GotoY(ctx context.Context, y int32) error
	StartX(ctx context.Context, speed int8) error
	StartY(ctx context.Context, speed int8) error
	StopX(ctx context.Context) error
	StopY(ctx context.Context) error
	Stop(ctx context.Context) error
	UpdatePos(ctx context.Context) error
	Position() model.Position
	// Calibrate drives both axes to their zero endstops, zeroes the
	// encoders and returns the position read before zeroing.
	Calibrate(ctx context.Context) (model.Position, error)
}

type AuxDevice interface {
	Init(ctx context.Context, id uint8, health *bus.Broadcast[model.DeviceEvent]) error
}

type MotorFeedback struct {
	Telemetry *bus.Broadcast[model.MotorTelemetry]
	State     *bus.Broadcast[model.CmdState]
	Health    *bus.Broadcast[model.DeviceEvent]
}

// Motor is a single hub motor port with an encoder. Arm and pump
// components are built from motors.
type Motor interface {
	Init(ctx context.Context, fb MotorFeedback) error
	Start(ctx context.Context, speed int8) error
	GotoAbs(ctx context.Context, pos int32, speed int8) error
	Brake(ctx context.Context) error
	Float(ctx context.Context) error
	PresetEncoder(ctx context.Context, pos int32) error
	RequestUpdate(ctx context.Context) error
}

type Board interface {
	Init(ctx context.Context) error
	Write(ctx context.Context, bits byte) error
}

type TextDisplay interface {
	Init(ctx context.Context) error
	Print(ctx context.Context, lines []string) error
	Clear(ctx context.Context) error
}

// RemoteControl feeds tx until ctx is cancelled.
type RemoteControl interface {
	Init(ctx context.Context, tx chan<- model.RemoteEvent) error
}

type ButtonPanel interface {
	Init(ctx context.Context, tx chan<- model.ButtonEvent) error
}
