package temperature

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

const (
	minPlausible = -40.0
	// DS18B20 reports 85 C after a power-on reset, before its first conversion.
	powerOnReset = 85.0
)

type Notifier func(title, message string) error

// Filter rejects single-sample spikes from a temperature sensor. After
// MaxAnomalies consecutive rejects the sensor is disabled until
// MaxAnomalies consecutive readings agree with the last good value again.
type Filter struct {
	Name         string
	MaxDelta     float64
	MaxAnomalies int
	Notify       Notifier

	lastGood  float64
	hasGood   bool
	pending   []float64
	anomalies int
	recovery  int
	disabled  bool
}

func NewFilter(name string, maxDelta float64, maxAnomalies int) *Filter {
	return &Filter{Name: name, MaxDelta: maxDelta, MaxAnomalies: maxAnomalies}
}

// Accept returns the value to publish and whether one is available. A
// rejected spike yields the last good value.
func (f *Filter) Accept(temp float64) (float64, bool) {
	if !plausible(temp) {
		f.anomaly(temp)
		return f.fallback()
	}

	if !f.hasGood {
		f.good(temp)
		return temp, true
	}

	if f.disabled {
		if math.Abs(temp-f.lastGood) > f.MaxDelta {
			f.recovery = 0
			return 0, false
		}
		f.recovery++
		if f.recovery < f.MaxAnomalies {
			return 0, false
		}
		f.disabled = false
		f.good(temp)
		log.Info().Str("sensor", f.Name).Float64("temp", temp).Msg("Temperature sensor recovered")
		f.send("Sensor recovered", fmt.Sprintf("%s: %.1f C after %d consistent readings", f.Name, temp, f.MaxAnomalies))
		return temp, true
	}

	if math.Abs(temp-f.lastGood) <= f.MaxDelta {
		f.good(temp)
		return temp, true
	}

	f.pending = append(f.pending, temp)
	if f.stableBaseline() {
		log.Info().Str("sensor", f.Name).Float64("temp", temp).Msg("Stable new temperature baseline")
		f.good(temp)
		return temp, true
	}
	f.anomaly(temp)
	return f.fallback()
}

// Disabled reports whether the sensor is currently ignored.
func (f *Filter) Disabled() bool { return f.disabled }

func (f *Filter) good(temp float64) {
	f.lastGood = temp
	f.hasGood = true
	f.anomalies = 0
	f.recovery = 0
	f.pending = f.pending[:0]
}

func (f *Filter) fallback() (float64, bool) {
	if f.disabled || !f.hasGood {
		return 0, false
	}
	return f.lastGood, true
}

func (f *Filter) anomaly(temp float64) {
	f.anomalies++
	f.recovery = 0
	log.Warn().
		Str("sensor", f.Name).
		Float64("temp", temp).
		Float64("last_good", f.lastGood).
		Int("anomalies", f.anomalies).
		Msg("Temperature reading rejected as anomalous")
	if f.disabled || f.anomalies < f.MaxAnomalies {
		return
	}
	f.disabled = true
	f.recovery = 0
	f.pending = f.pending[:0]
	f.send("Sensor failure", fmt.Sprintf("%s disabled: %.1f C (%d anomalies, last good %.1f C)",
		f.Name, temp, f.anomalies, f.lastGood))
}

// stableBaseline accepts a level shift once the last three rejected
// readings agree with each other.
func (f *Filter) stableBaseline() bool {
	const window = 3
	if len(f.pending) < window {
		return false
	}
	recent := f.pending[len(f.pending)-window:]

	var sum float64
	for _, t := range recent {
		sum += t
	}
	mean := sum / window

	var variance float64
	for _, t := range recent {
		variance += (t - mean) * (t - mean)
	}
	return math.Sqrt(variance/window) < f.MaxDelta/4
}

func (f *Filter) send(title, message string) {
	if f.Notify == nil {
		return
	}
	if err := f.Notify(title, message); err != nil {
		log.Error().Err(err).Str("sensor", f.Name).Msg("Failed to send sensor notification")
	}
}

func plausible(temp float64) bool {
	return temp >= minPlausible && temp < powerOnReset
}
