package zone

import (
	"fmt"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type MoistureClass int

const (
	NoData MoistureClass = iota
	AlertLow
	WarningLow
	Ok
	WarningHigh
	AlertHigh
)

func (c MoistureClass) String() string {
	switch c {
	case NoData:
		return "NoData"
	case AlertLow:
		return "AlertLow"
	case WarningLow:
		return "WarningLow"
	case Ok:
		return "Ok"
	case WarningHigh:
		return "WarningHigh"
	case AlertHigh:
		return "AlertHigh"
	default:
		return fmt.Sprintf("MoistureClass(%d)", int(c))
	}
}

// Severity is 0 for Ok, 1 for warnings and 2 for alerts. NoData ranks
// as an alert.
func (c MoistureClass) Severity() int {
	switch c {
	case Ok:
		return 0
	case WarningLow, WarningHigh:
		return 1
	default:
		return 2
	}
}

// ClassifyMoisture places a sample in one band. Bounds belong to the more
// severe band: a sample equal to MoistLowYellow is WarningLow, one equal
// to MoistHighRed is AlertHigh.
func ClassifyMoisture(r model.Reading, s model.WaterSettings) MoistureClass {
	if !r.Valid {
		return NoData
	}
	v := r.Value
	switch {
	case v <= s.MoistLowRed:
		return AlertLow
	case v <= s.MoistLowYellow:
		return WarningLow
	case v >= s.MoistHighRed:
		return AlertHigh
	case v >= s.MoistHighYellow:
		return WarningHigh
	default:
		return Ok
	}
}

func moistureDisplay(c MoistureClass) (model.Indicator, string) {
	switch c {
	case AlertLow:
		return model.Red, "Moisture critically low"
	case WarningLow:
		return model.Yellow, "Moisture low"
	case WarningHigh:
		return model.Yellow, "Moisture high"
	case AlertHigh:
		return model.Red, "Moisture critically high"
	case NoData:
		return model.Red, "No moisture data"
	default:
		return model.Green, ""
	}
}

// FanFor derives the fan setting from a temperature. A value on a
// threshold takes the lower band.
func FanFor(t float32, s model.AirSettings) model.FanSetting {
	switch {
	case t <= s.TempFanLow:
		return model.FanOff
	case t <= s.TempFanHigh:
		return model.FanLow
	default:
		return model.FanHigh
	}
}

func airDisplay(f AirFacts, s model.AirSettings) (model.Indicator, string) {
	switch {
	case !f.Temperature.Valid:
		return model.Red, "No temperature data"
	case f.Temperature.Value >= s.TempHigh:
		return model.Red, fmt.Sprintf("Temperature high, %.1f C", f.Temperature.Value)
	case f.Temperature.Value >= s.TempWarning:
		return model.Yellow, fmt.Sprintf("Temperature warning, %.1f C", f.Temperature.Value)
	case f.FanKnown && f.Fan != model.FanOff && f.FanRPM.Valid && f.FanRPM.Value < s.FanRPMAlarm:
		return model.Yellow, "Fan rpm low"
	default:
		return model.Green, ""
	}
}

func lightDisplay(f LightFacts, s model.LightSettings) (model.Indicator, string) {
	switch {
	case !f.Lux.Valid:
		return model.Red, "No light data"
	case f.Lux.Value <= s.LuxLowRed:
		return model.Red, "Light very low"
	case f.Lux.Value <= s.LuxLowYellow:
		return model.Yellow, "Light low"
	case f.Lamp:
		return model.Blue, "Lamp on"
	default:
		return model.Green, ""
	}
}

func tankDisplay(f TankFacts) (model.Indicator, string) {
	if !f.Valid {
		return model.Red, "No tank data"
	}
	switch f.Level {
	case model.Red:
		return model.Red, "Tank empty"
	case model.Yellow:
		return model.Yellow, "Tank low"
	case model.Blue:
		return model.Blue, "Tank full"
	default:
		return model.Green, ""
	}
}
