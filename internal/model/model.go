package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the seven zone variants. The declaration order is
// the sort order used by the text display.
type Kind int

const (
	KindAir Kind = iota
	KindLight
	KindWater
	KindTank
	KindPump
	KindArm
	KindAux
)

var kindNames = [...]string{"air", "light", "water", "tank", "pump", "arm", "aux"}

func Kinds() []Kind {
	return []Kind{KindAir, KindLight, KindWater, KindTank, KindPump, KindArm, KindAux}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Title is the capitalised name used in display headings.
func (k Kind) Title() string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown zone kind %q", ErrParse, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type Indicator int

const (
	Blue Indicator = iota
	Green
	Yellow
	Red
)

func (i Indicator) String() string {
	switch i {
	case Blue:
		return "Blue"
	case Green:
		return "Green"
	case Yellow:
		return "Yellow"
	case Red:
		return "Red"
	default:
		return fmt.Sprintf("Indicator(%d)", int(i))
	}
}

type DisplayStatus struct {
	Indicator Indicator `json:"indicator"`
	Msg       string    `json:"msg,omitempty"`
	Changed   time.Time `json:"changed"`
}

func NewDisplayStatus(ind Indicator, msg string) DisplayStatus {
	return DisplayStatus{Indicator: ind, Msg: msg, Changed: Now()}
}

// SameAs reports whether two statuses would render identically.
// The change timestamp is ignored.
func (d DisplayStatus) SameAs(o DisplayStatus) bool {
	return d.Indicator == o.Indicator && d.Msg == o.Msg
}

// ZoneDisplay is a status snapshot published on the zone bus.
type ZoneDisplay struct {
	Kind   Kind
	ID     uint8
	Status DisplayStatus
}

type ZoneLog struct {
	Kind Kind
	ID   uint8
	Time time.Time
	Msg  string
}

func (l ZoneLog) String() string {
	return fmt.Sprintf("%s %s %d: %s", l.Time.Format("15:04:05"), l.Kind.Title(), l.ID, l.Msg)
}

type SysLog struct {
	Time time.Time
	Msg  string
}

func NewSysLog(format string, args ...any) SysLog {
	return SysLog{Time: Now(), Msg: fmt.Sprintf(format, args...)}
}

func (l SysLog) String() string {
	return fmt.Sprintf("%s %s", l.Time.Format("15:04:05"), l.Msg)
}

// Reading is a single scalar sample. Valid is false when the device
// reported a failed read.
type Reading struct {
	ID    uint8
	Value float32
	Valid bool
}

func ValidReading(id uint8, v float32) Reading {
	return Reading{ID: id, Value: v, Valid: true}
}

func MissingReading(id uint8) Reading {
	return Reading{ID: id}
}

type TankReading struct {
	ID    uint8
	Level Indicator
	Valid bool
}

// DeviceEvent reports hub connectivity for a zone device.
type DeviceEvent struct {
	ID        uint8
	Connected bool
	Msg       string
}

type FanSetting int

const (
	FanOff FanSetting = iota
	FanLow
	FanHigh
)

func (f FanSetting) String() string {
	switch f {
	case FanOff:
		return "Off"
	case FanLow:
		return "Low"
	case FanHigh:
		return "High"
	default:
		return fmt.Sprintf("FanSetting(%d)", int(f))
	}
}

type FanCmd struct {
	ID      uint8
	Setting FanSetting
}

type LampCmd struct {
	ID uint8
	On bool
}

type PumpCmdKind int

const (
	PumpRun PumpCmdKind = iota
	PumpStop
	PumpFloat
	PumpRunFor
)

func (k PumpCmdKind) String() string {
	switch k {
	case PumpRun:
		return "run"
	case PumpStop:
		return "stop"
	case PumpFloat:
		return "float"
	case PumpRunFor:
		return "run_for"
	default:
		return fmt.Sprintf("PumpCmdKind(%d)", int(k))
	}
}

type PumpCmd struct {
	Kind PumpCmdKind
	Secs uint32
}

// PumpMsg addresses a PumpCmd to one pump.
type PumpMsg struct {
	ID  uint8
	Cmd PumpCmd
}

// CmdState is the command-feedback state of one axis or of the whole arm.
type CmdState int

const (
	Idle CmdState = iota
	Busy
)

func (s CmdState) String() string {
	if s == Idle {
		return "Idle"
	}
	return "Busy"
}

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	return [...]string{"x", "y", "z"}[a]
}

type AxisPosition struct {
	Axis Axis
	Pos  int32
}

type AxisState struct {
	Axis  Axis
	State CmdState
}

// MotorTelemetry is one frame reported by a motor port.
type MotorTelemetry struct {
	Speed int8
	Pos   int32
}

type ArmCmdKind int

const (
	ArmGoto ArmCmdKind = iota
	ArmGotoX
	ArmGotoY
	ArmStartX
	ArmStartY
	ArmStopX
	ArmStopY
	ArmStop
	ArmUpdate
)

func (k ArmCmdKind) String() string {
	return [...]string{"Goto", "GotoX", "GotoY", "StartX", "StartY", "StopX", "StopY", "Stop", "Update"}[k]
}

type ArmCmd struct {
	Kind  ArmCmdKind
	X     int32
	Y     int32
	Z     int32
	Speed int8
}

type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

type RemoteButton int

const (
	RemoteUp RemoteButton = iota
	RemoteDown
	RemoteLeft
	RemoteRight
	RemoteConfirm
	RemoteBack
	RemoteExit
)

func (b RemoteButton) String() string {
	return [...]string{"Up", "Down", "Left", "Right", "Confirm", "Back", "Exit"}[b]
}

type RemoteEvent struct {
	Button  RemoteButton
	Pressed bool
}

type Button int

const (
	ButtonPage Button = iota
	ButtonBlink
	ButtonWater
)

type ButtonEvent struct {
	Button Button
}
