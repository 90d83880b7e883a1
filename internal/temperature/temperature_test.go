package temperature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/grow-controller/internal/bus"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

type mockNotifier struct {
	calls []string
}

func (m *mockNotifier) send(title, message string) error {
	m.calls = append(m.calls, title+": "+message)
	return nil
}

type scenario struct {
	name             string
	readings         []float64
	expectedAccepted []bool
	expectedValues   []float64
	expectedDisabled bool
	expectedNotified []string
}

func runScenario(t *testing.T, sc scenario) {
	notifier := &mockNotifier{}
	f := NewFilter("air1", 5, 6)
	f.Notify = notifier.send

	for i, temp := range sc.readings {
		v, ok := f.Accept(temp)
		assert.Equal(t, sc.expectedAccepted[i], ok, "reading %d (%.1f C) acceptance mismatch", i, temp)
		if sc.expectedValues != nil && ok {
			assert.InDelta(t, sc.expectedValues[i], v, 0.01, "reading %d value", i)
		}
	}

	assert.Equal(t, sc.expectedDisabled, f.Disabled())
	require.Len(t, notifier.calls, len(sc.expectedNotified))
	for i, prefix := range sc.expectedNotified {
		assert.Contains(t, notifier.calls[i], prefix)
	}
}

func TestFilterScenarios(t *testing.T) {
	scenarios := []scenario{
		{
			name:             "steady readings pass through",
			readings:         []float64{22, 22.4, 23.1, 22.8},
			expectedAccepted: []bool{true, true, true, true},
			expectedValues:   []float64{22, 22.4, 23.1, 22.8},
		},
		{
			name:             "single spike replaced by last good",
			readings:         []float64{22, 60, 22.5},
			expectedAccepted: []bool{true, true, true},
			expectedValues:   []float64{22, 22, 22.5},
		},
		{
			name:             "power-on reset value rejected",
			readings:         []float64{22, 85, 22.2},
			expectedAccepted: []bool{true, true, true},
			expectedValues:   []float64{22, 22, 22.2},
		},
		{
			name:             "nothing to publish before a first good reading",
			readings:         []float64{85, -60, 21},
			expectedAccepted: []bool{false, false, true},
		},
		{
			name:             "stable level shift becomes new baseline",
			readings:         []float64{22, 30, 30.2, 30.1, 30.3},
			expectedAccepted: []bool{true, true, true, true, true},
			expectedValues:   []float64{22, 22, 22, 30.1, 30.3},
		},
		{
			name:             "repeated garbage disables the sensor",
			readings:         []float64{22, 60, 0, 60, 0, 60, 0, 61},
			expectedAccepted: []bool{true, true, true, true, true, true, false, false},
			expectedDisabled: true,
			expectedNotified: []string{"Sensor failure: air1 disabled"},
		},
		{
			name: "disabled sensor recovers after consistent readings",
			readings: []float64{
				22, 60, 0, 60, 0, 60, 0,
				22.5, 22.4, 22.6, 22.5, 22.3, 22.4,
			},
			expectedAccepted: []bool{
				true, true, true, true, true, true, false,
				false, false, false, false, false, true,
			},
			expectedNotified: []string{"Sensor failure", "Sensor recovered: air1"},
		},
		{
			name: "bad reading resets recovery",
			readings: []float64{
				22, 60, 0, 60, 0, 60, 0,
				22.5, 22.4, 40, 22.6, 22.5, 22.3, 22.4, 22.5,
			},
			expectedAccepted: []bool{
				true, true, true, true, true, true, false,
				false, false, false, false, false, false, false, false,
			},
			expectedDisabled: true,
			expectedNotified: []string{"Sensor failure"},
		},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			runScenario(t, sc)
		})
	}
}

func TestParseW1Slave(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float32
		wantErr bool
	}{
		{
			name:  "valid",
			input: "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n",
			want:  23.125,
		},
		{
			name:  "negative",
			input: "ff ff : crc=aa YES\nff ff t=-1500\n",
			want:  -1.5,
		},
		{name: "crc mismatch", input: "72 01 : crc=57 NO\n72 01 t=23125\n", wantErr: true},
		{name: "single line", input: "72 01 : crc=57 YES\n", wantErr: true},
		{name: "missing t=", input: "72 01 : crc=57 YES\n72 01 4b\n", wantErr: true},
		{name: "garbage value", input: "x : crc=57 YES\nx t=abc\n", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseW1Slave(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 0.0001)
		})
	}
}

func TestOneWireReadPath(t *testing.T) {
	sensor := NewOneWire("28-0000075a1b2c", time.Minute, nil)
	var path string
	sensor.readFile = func(name string) ([]byte, error) {
		path = name
		return []byte("aa : crc=57 YES\naa t=21500\n"), nil
	}

	temp, err := sensor.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 21.5, temp, 0.001)
	assert.Equal(t, "/sys/bus/w1/devices/28-0000075a1b2c/w1_slave", path)
}

func TestOneWireInitFailsWhenUnreadable(t *testing.T) {
	sensor := NewOneWire("28-missing", time.Minute, nil)
	sensor.readFile = func(string) ([]byte, error) { return nil, errors.New("no such file") }

	err := sensor.Init(context.Background(), 1, bus.NewBroadcast[model.Reading](4))
	assert.ErrorIs(t, err, model.ErrDeviceIO)
}

func TestOneWirePublishesFilteredSamples(t *testing.T) {
	values := []string{"t=22000", "t=60000", "t=22300"}
	i := 0
	sensor := NewOneWire("28-a", 10*time.Millisecond, NewFilter("air1", 5, 6))
	sensor.readFile = func(string) ([]byte, error) {
		v := values[len(values)-1]
		if i < len(values) {
			v = values[i]
			i++
		}
		return []byte("aa : crc=57 YES\naa " + v + "\n"), nil
	}

	feedback := bus.NewBroadcast[model.Reading](64)
	samples, cancelSub := feedback.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sensor.Init(ctx, 1, feedback))

	var got []float32
	for len(got) < 3 {
		select {
		case r := <-samples:
			require.True(t, r.Valid)
			assert.Equal(t, uint8(1), r.ID)
			got = append(got, r.Value)
		case <-time.After(time.Second):
			t.Fatal("missing sample")
		}
	}
	assert.InDeltaSlice(t, []float32{22, 22, 22.3}, got, 0.001)
}
