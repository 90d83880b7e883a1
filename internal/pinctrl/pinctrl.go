// Package pinctrl drives Raspberry Pi GPIO through the pinctrl tool.
package pinctrl

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeInput  Mode = "ip"
	ModeOutput Mode = "op"
	ModeNone   Mode = "no"
)

type Pull string

const (
	PullUp   Pull = "pu"
	PullDown Pull = "pd"
	PullNone Pull = "pn"
)

// Level is the sampled level as printed by `pinctrl get`.
type Level string

const (
	LevelHigh    Level = "hi"
	LevelLow     Level = "lo"
	LevelUnknown Level = "--"
)

func (l Level) High() bool { return l == LevelHigh }

type PinState struct {
	Pin   int
	Mode  Mode
	Pull  Pull
	Drive Level // set for outputs only
	Level Level
	Label string
}

func (s PinState) Output() bool { return s.Mode == ModeOutput }

func (s PinState) String() string {
	out := fmt.Sprintf("GPIO%d %s %s", s.Pin, s.Mode, s.Pull)
	if s.Output() {
		out += " drive " + string(s.Drive)
	}
	return out + " level " + string(s.Level)
}

var run = func(args ...string) ([]byte, error) {
	return exec.Command("pinctrl", args...).CombinedOutput()
}

// Snapshot reads every pin with a single `pinctrl get`. With pins given it
// fails if any of them is missing from the output.
func Snapshot(pins ...int) (map[int]PinState, error) {
	out, err := run("get")
	if err != nil {
		return nil, fmt.Errorf("failed to execute pinctrl get: %w", err)
	}
	states, err := parseGetOutput(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	for _, pin := range pins {
		if _, ok := states[pin]; !ok {
			return nil, fmt.Errorf("pin %d not found in pinctrl output", pin)
		}
	}
	return states, nil
}

// ReadLevel samples a single pin with `pinctrl lev`.
func ReadLevel(pin int) (bool, error) {
	out, err := run("lev", strconv.Itoa(pin))
	if err != nil {
		return false, fmt.Errorf("failed to read level for pin %d: %w", pin, err)
	}
	return parseLevelOutput(string(out))
}

// SetPin passes opts to `pinctrl set <pin>`.
func SetPin(pin int, opts ...string) error {
	args := append([]string{"set", strconv.Itoa(pin)}, opts...)
	out, err := run(args...)
	if err != nil {
		return fmt.Errorf("pinctrl set failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Drive configures pin as an output without pull at the given level.
func Drive(pin int, high bool) error {
	drive := "dl"
	if high {
		drive = "dh"
	}
	return SetPin(pin, string(ModeOutput), string(PullNone), drive)
}

// Input configures pin as an input with a pull-up, for buttons wired to ground.
func Input(pin int) error {
	return SetPin(pin, string(ModeInput), string(PullUp))
}

// parseGetOutput reads lines like
//
//	5: op dh pu | hi // GPIO5 = output
//
// and skips anything that is not a GPIO line.
func parseGetOutput(r io.Reader) (map[int]PinState, error) {
	result := make(map[int]PinState)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		state, ok := parseGetLine(scanner.Text())
		if ok {
			result[state.Pin] = state
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning pinctrl output: %w", err)
	}
	return result, nil
}

func parseGetLine(line string) (PinState, bool) {
	config, label, ok := strings.Cut(line, "//")
	if !ok || !strings.Contains(label, "GPIO") {
		return PinState{}, false
	}
	config, level, ok := strings.Cut(config, "|")
	if !ok {
		return PinState{}, false
	}
	num, opts, ok := strings.Cut(config, ":")
	if !ok {
		return PinState{}, false
	}
	pin, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return PinState{}, false
	}
	fields := strings.Fields(opts)
	if len(fields) == 0 {
		return PinState{}, false
	}

	state := PinState{
		Pin:   pin,
		Mode:  Mode(fields[0]),
		Level: Level(strings.TrimSpace(level)),
		Label: strings.TrimSpace(label),
	}
	for _, opt := range fields[1:] {
		switch opt {
		case "pu", "pd", "pn":
			state.Pull = Pull(opt)
		case "dh":
			state.Drive = LevelHigh
		case "dl":
			state.Drive = LevelLow
		}
	}
	return state, true
}

func parseLevelOutput(output string) (bool, error) {
	switch trimmed := strings.TrimSpace(output); trimmed {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected output from pinctrl lev: %q", trimmed)
	}
}
