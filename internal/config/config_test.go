package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg := load(fs, []string{"-config-file", filepath.Join(t.TempDir(), "absent.json")})

	assert.Equal(t, "grow-conf.js", cfg.ZonesFile)
	assert.Equal(t, 3, cfg.PageSeconds)
	assert.Equal(t, int32(5), cfg.ConfirmDelta)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.Simulate)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeConfig(t, `{
		"zones_file": "from-file.js",
		"history_db": "file.db",
		"log_level": "warn",
		"utc_offset_hours": 2,
		"ntfy_topic": "greenhouse",
		"lamp_relay_pins": {"1": 17},
		"button_pins": {"page": 5, "water": 6}
	}`)
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg := load(fs, []string{"-config-file", path, "-history-db", "flag.db", "-simulate", "-log-level", "debug"})

	assert.Equal(t, "from-file.js", cfg.ZonesFile)
	assert.Equal(t, "flag.db", cfg.HistoryDB)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 2, cfg.UTCOffsetHours)
	assert.Equal(t, "greenhouse", cfg.NtfyTopic)
	assert.Equal(t, map[uint8]int{1: 17}, cfg.LampRelayPins)
	assert.True(t, cfg.Simulate)
}

func TestLoad_UnknownFieldPanics(t *testing.T) {
	path := writeConfig(t, `{"heating_threshold": 20}`)
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	assert.Panics(t, func() { load(fs, []string{"-config-file", path}) })
}

func TestValidate_Valid(t *testing.T) {
	cfg := Defaults()
	cfg.LampRelayPins = map[uint8]int{1: 17}
	cfg.ButtonPins = map[string]int{"page": 5, "blink": 6, "water": 13}

	assert.NotPanics(t, func() { cfg.validate() })
}

func TestValidate_PinConflict(t *testing.T) {
	cfg := Defaults()
	cfg.LampRelayPins = map[uint8]int{1: 17}
	cfg.ButtonPins = map[string]int{"page": 17}

	assert.Panics(t, func() { cfg.validate() })
}

func TestValidate_UnknownButton(t *testing.T) {
	cfg := Defaults()
	cfg.ButtonPins = map[string]int{"reset": 4}

	assert.Panics(t, func() { cfg.validate() })
}

func TestValidate_Ranges(t *testing.T) {
	tests := map[string]func(*Config){
		"offset":   func(c *Config) { c.UTCOffsetHours = 20 },
		"page":     func(c *Config) { c.PageSeconds = 0 },
		"delta":    func(c *Config) { c.ConfirmDelta = -1 },
		"idle":     func(c *Config) { c.ArmIdleTimeoutSeconds = 0 },
		"speed":    func(c *Config) { c.RemoteSpeed = 0 },
		"datadog":  func(c *Config) { c.EnableDatadog = true; c.DDAgentAddr = "" },
		"no zones": func(c *Config) { c.ZonesFile = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.Panics(t, func() { cfg.validate() })
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("loud"))
}

func TestValidate_Thermometers(t *testing.T) {
	cfg := Defaults()
	cfg.ThermometerDevices = map[uint8]string{1: "28-0000075a1b2c"}
	assert.NotPanics(t, func() { cfg.validate() })

	cfg.ThermometerDevices[2] = "10-00080283a3b1"
	assert.Panics(t, func() { cfg.validate() })

	cfg = Defaults()
	cfg.TempMaxAnomalies = 0
	assert.Panics(t, func() { cfg.validate() })
}
