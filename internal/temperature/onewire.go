// Package temperature reads DS18B20 thermometers on the 1-wire bus and
// filters out the spikes they are prone to.
package temperature

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

const DefaultDevicesDir = "/sys/bus/w1/devices"

// OneWire satisfies device.Thermometer for a DS18B20 exposed by the
// w1-therm kernel driver.
type OneWire struct {
	Device   string
	Dir      string
	Interval time.Duration
	Retries  int
	Filter   *Filter

	readFile func(name string) ([]byte, error)
	sleep    func(d time.Duration)
}

func NewOneWire(device string, interval time.Duration, filter *Filter) *OneWire {
	return &OneWire{
		Device:   device,
		Dir:      DefaultDevicesDir,
		Interval: interval,
		Retries:  3,
		Filter:   filter,
		readFile: os.ReadFile,
		sleep:    time.Sleep,
	}
}

// Init fails when the sensor cannot be read, so the caller can retry.
func (t *OneWire) Init(ctx context.Context, id uint8, feedback *bus.Broadcast[model.Reading]) error {
	first, err := t.Read(ctx)
	if err != nil {
		return err
	}
	t.publish(id, feedback, float64(first))

	go func() {
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			temp, err := t.readWithRetries(ctx)
			if err != nil {
				log.Error().Err(err).Str("sensor", t.Device).Msg("Temperature sensor read failed")
				feedback.Send(model.MissingReading(id))
				continue
			}
			t.publish(id, feedback, float64(temp))
		}
	}()
	return nil
}

func (t *OneWire) publish(id uint8, feedback *bus.Broadcast[model.Reading], temp float64) {
	if t.Filter == nil {
		feedback.Send(model.ValidReading(id, float32(temp)))
		return
	}
	v, ok := t.Filter.Accept(temp)
	if !ok {
		feedback.Send(model.MissingReading(id))
		return
	}
	feedback.Send(model.ValidReading(id, float32(v)))
}

func (t *OneWire) readWithRetries(ctx context.Context) (float32, error) {
	var err error
	for attempt := 0; attempt <= t.Retries; attempt++ {
		if attempt > 0 {
			t.sleep(2 * time.Second)
		}
		var temp float32
		if temp, err = t.Read(ctx); err == nil {
			return temp, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	return 0, err
}

// Read returns the sensor temperature in degrees Celsius.
func (t *OneWire) Read(context.Context) (float32, error) {
	data, err := t.readFile(filepath.Join(t.Dir, t.Device, "w1_slave"))
	if err != nil {
		return 0, model.DeviceIO(fmt.Errorf("failed to read sensor %s: %w", t.Device, err))
	}
	temp, err := parseW1Slave(string(data))
	if err != nil {
		return 0, model.DeviceIO(fmt.Errorf("sensor %s: %w", t.Device, err))
	}
	return temp, nil
}

// parseW1Slave decodes the two-line w1_slave format. The first line ends
// in YES when the CRC matched; the second carries t=<millidegrees>.
func parseW1Slave(data string) (float32, error) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("temperature data missing or malformed")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("crc check failed")
	}
	_, raw, ok := strings.Cut(lines[1], "t=")
	if !ok {
		return 0, fmt.Errorf("could not parse temperature line")
	}
	milli, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("failed to convert temperature to int: %w", err)
	}
	return float32(milli) / 1000, nil
}
