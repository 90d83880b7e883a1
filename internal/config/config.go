package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	ConfigFile   string        `json:"-"`
	ZonesFile    string        `json:"zones_file"`
	HistoryDB    string        `json:"history_db"`
	LogLevel     zerolog.Level `json:"-"`
	LogLevelName string        `json:"log_level"`
	LogFile      string        `json:"log_file"`
	Simulate     bool          `json:"simulate"`

	UTCOffsetHours int `json:"utc_offset_hours"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic string `json:"ntfy_topic"`

	PageSeconds                int   `json:"page_seconds"`
	ConfirmDelta               int32 `json:"confirm_delta"`
	ArmIdleTimeoutSeconds      int   `json:"arm_idle_timeout_seconds"`
	RemoteSpeed                int8  `json:"remote_speed"`
	CalibrationSpeed           int8  `json:"calibration_speed"`
	PumpDuty                   int8  `json:"pump_duty"`
	MoisturePollSeconds        int   `json:"moisture_poll_seconds"`
	DeviceAttachTimeoutSeconds int   `json:"device_attach_timeout_seconds"`

	// Relay pins driving the lamps, keyed by light zone id.
	LampRelayPins       map[uint8]int `json:"lamp_relay_pins"`
	LampRelayActiveHigh bool          `json:"lamp_relay_active_high"`
	// Push-button pins keyed by button name: page, blink, water.
	ButtonPins map[string]int `json:"button_pins"`
	// Written on startup so the relays come up off after a reboot.
	BootScriptPath string `json:"boot_script_path"`

	// 1-wire DS18B20 device names (e.g. 28-0000075a1b2c) keyed by air zone id.
	ThermometerDevices map[uint8]string `json:"thermometer_devices"`
	TempMaxDelta       float64          `json:"temp_max_delta"`
	TempMaxAnomalies   int              `json:"temp_max_anomalies"`
}

func Defaults() Config {
	return Config{
		ZonesFile:                  "grow-conf.js",
		HistoryDB:                  "data/grow.db",
		LogLevelName:               "info",
		LogFile:                    "/var/log/grow-controller.log",
		DDAgentAddr:                "127.0.0.1:8125",
		DDNamespace:                "grow.",
		PageSeconds:                3,
		ConfirmDelta:               5,
		ArmIdleTimeoutSeconds:      120,
		RemoteSpeed:                50,
		CalibrationSpeed:           20,
		PumpDuty:                   100,
		MoisturePollSeconds:        60,
		DeviceAttachTimeoutSeconds: 30,
		TempMaxDelta:               5,
		TempMaxAnomalies:           6,
	}
}

// Load parses flags, then overlays the optional JSON config file. Flags
// given explicitly on the command line win over the file.
func Load() Config {
	return load(flag.CommandLine, os.Args[1:])
}

func load(fs *flag.FlagSet, args []string) Config {
	cfg := Defaults()
	var flags Config

	fs.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file (optional)")
	fs.StringVar(&flags.ZonesFile, "zones-file", cfg.ZonesFile, "Path to zone settings file")
	fs.StringVar(&flags.HistoryDB, "history-db", cfg.HistoryDB, "Path to the SQLite history database")
	fs.StringVar(&flags.LogLevelName, "log-level", cfg.LogLevelName, "Log level (debug, info, warn, error)")
	fs.StringVar(&flags.LogFile, "log-file", cfg.LogFile, "Path to log file, empty for console only")
	fs.BoolVar(&flags.Simulate, "simulate", false, "Run against simulated devices")
	if err := fs.Parse(args); err != nil {
		panic("Failed to parse flags: " + err.Error())
	}

	file, err := os.Open(cfg.ConfigFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		panic("Failed to load config file: " + err.Error())
	default:
		defer file.Close()
		dec := json.NewDecoder(file)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			panic("Failed to parse config file: " + err.Error())
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "zones-file":
			cfg.ZonesFile = flags.ZonesFile
		case "history-db":
			cfg.HistoryDB = flags.HistoryDB
		case "log-level":
			cfg.LogLevelName = flags.LogLevelName
		case "log-file":
			cfg.LogFile = flags.LogFile
		case "simulate":
			cfg.Simulate = flags.Simulate
		}
	})

	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.ZonesFile == "" {
		problems = append(problems, "zones_file is empty")
	}
	if cfg.HistoryDB == "" {
		problems = append(problems, "history_db is empty")
	}
	if cfg.UTCOffsetHours < -12 || cfg.UTCOffsetHours > 14 {
		problems = append(problems, fmt.Sprintf("utc_offset_hours %d out of range", cfg.UTCOffsetHours))
	}
	if cfg.PageSeconds <= 0 {
		problems = append(problems, "page_seconds must be positive")
	}
	if cfg.ConfirmDelta < 0 {
		problems = append(problems, "confirm_delta must not be negative")
	}
	if cfg.ArmIdleTimeoutSeconds <= 0 {
		problems = append(problems, "arm_idle_timeout_seconds must be positive")
	}
	if cfg.RemoteSpeed <= 0 || cfg.CalibrationSpeed <= 0 || cfg.PumpDuty <= 0 {
		problems = append(problems, "remote_speed, calibration_speed and pump_duty must be positive")
	}
	if cfg.TempMaxDelta <= 0 || cfg.TempMaxAnomalies <= 0 {
		problems = append(problems, "temp_max_delta and temp_max_anomalies must be positive")
	}
	for id, dev := range cfg.ThermometerDevices {
		if !strings.HasPrefix(dev, "28-") {
			problems = append(problems, fmt.Sprintf("thermometer_devices.%d: %q is not a DS18B20", id, dev))
		}
	}
	if cfg.EnableDatadog && cfg.DDAgentAddr == "" {
		problems = append(problems, "dd_agent_addr is required when enable_datadog is set")
	}

	usedPins := map[int]string{}
	claim := func(name string, pin int) {
		if other, exists := usedPins[pin]; exists {
			problems = append(problems, fmt.Sprintf("%s and %s both use pin %d", name, other, pin))
			return
		}
		usedPins[pin] = name
	}
	for id, pin := range cfg.LampRelayPins {
		claim(fmt.Sprintf("lamp_relay_pins.%d", id), pin)
	}
	for name, pin := range cfg.ButtonPins {
		switch name {
		case "page", "blink", "water":
		default:
			problems = append(problems, fmt.Sprintf("unknown button %q", name))
		}
		claim("button_pins."+name, pin)
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, ", "))
	}
}
