package model

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time with minute granularity, encoded as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func At(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

func TimeOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.minutes() < o.minutes()
}

// Within reports whether t lies in [from, to). A window whose end is
// earlier than its start wraps past midnight.
func (t TimeOfDay) Within(from, to TimeOfDay) bool {
	m, a, b := t.minutes(), from.minutes(), to.minutes()
	if a <= b {
		return m >= a && m < b
	}
	return m >= a || m < b
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	var h, m int
	if _, err := fmt.Sscanf(string(b), "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("%w: time of day %q", ErrParse, string(b))
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("%w: time of day %q out of range", ErrParse, string(b))
	}
	*t = TimeOfDay{Hour: h, Minute: m}
	return nil
}

type Seconds uint32

func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

type AirSettings struct {
	TempFanLow  float32 `json:"temp_fan_low"`
	TempFanHigh float32 `json:"temp_fan_high"`
	TempWarning float32 `json:"temp_warning"`
	TempHigh    float32 `json:"temp_high"`
	FanRPMAlarm float32 `json:"fan_rpm_alarm"`
}

type LightSettings struct {
	LuxLowYellow float32   `json:"lux_low_yellow"`
	LuxLowRed    float32   `json:"lux_low_red"`
	LampOn       TimeOfDay `json:"lamp_on"`
	LampOff      TimeOfDay `json:"lamp_off"`
}

type ArmTarget struct {
	ArmID uint8 `json:"arm_id"`
	X     int32 `json:"x"`
	Y     int32 `json:"y"`
	Z     int32 `json:"z"`
}

func (t ArmTarget) Position() Position {
	return Position{X: t.X, Y: t.Y, Z: t.Z}
}

type WaterSettings struct {
	MoistLowRed        float32   `json:"moist_low_red"`
	MoistLowYellow     float32   `json:"moist_low_yellow"`
	MoistHighYellow    float32   `json:"moist_high_yellow"`
	MoistHighRed       float32   `json:"moist_high_red"`
	MoistureLimitWater float32   `json:"moisture_limit_water"`
	PumpID             uint8     `json:"pump_id"`
	TankID             uint8     `json:"tank_id"`
	PumpTime           Seconds   `json:"pump_time_secs"`
	SettlingTime       Seconds   `json:"settling_time_secs"`
	Position           ArmTarget `json:"position"`
}

type PumpSettings struct {
	RunForSecs Seconds `json:"run_for_secs"`
	RestSecs   Seconds `json:"rest_secs"`
}

// ZoneConfig is the persisted form of one zone. Exactly the settings
// section matching Kind is set; tank, arm and aux zones carry none.
type ZoneConfig struct {
	Kind  Kind           `json:"kind"`
	ID    uint8          `json:"id"`
	Air   *AirSettings   `json:"air,omitempty"`
	Light *LightSettings `json:"light,omitempty"`
	Water *WaterSettings `json:"water,omitempty"`
	Pump  *PumpSettings  `json:"pump,omitempty"`
}

func (c ZoneConfig) Validate() error {
	sections := map[Kind]bool{
		KindAir:   c.Air != nil,
		KindLight: c.Light != nil,
		KindWater: c.Water != nil,
		KindPump:  c.Pump != nil,
	}
	for kind, present := range sections {
		if present && kind != c.Kind {
			return fmt.Errorf("%w: %s %d carries %s settings", ErrParse, c.Kind, c.ID, kind)
		}
		if !present && kind == c.Kind {
			return fmt.Errorf("%w: %s %d has no settings", ErrParse, c.Kind, c.ID)
		}
	}
	if c.Water != nil {
		w := c.Water
		if !(w.MoistLowRed < w.MoistLowYellow && w.MoistLowYellow < w.MoistHighYellow && w.MoistHighYellow < w.MoistHighRed) {
			return fmt.Errorf("%w: water %d moisture thresholds out of order", ErrParse, c.ID)
		}
	}
	if c.Air != nil && c.Air.TempFanLow > c.Air.TempFanHigh {
		return fmt.Errorf("%w: air %d fan thresholds out of order", ErrParse, c.ID)
	}
	return nil
}
