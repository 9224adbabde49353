package bus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/clock"
	"bdot-detumbler/internal/mode"
	"bdot-detumbler/internal/sensor"
)

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "adcs:mag", FormatKey("adcs", KeyField))
	assert.Equal(t, "rtc", FormatKey("", KeyClock))
}

func TestParseVector(t *testing.T) {
	v, err := ParseVector(map[string]string{"x": "1.5", "y": "-2e-5", "z": "0"})
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1.5, Y: -2e-5}, v)

	_, err = ParseVector(map[string]string{"x": "1", "y": "2"})
	assert.Error(t, err)

	_, err = ParseVector(map[string]string{"x": "1", "y": "2", "z": "nan?"})
	assert.Error(t, err)
}

func TestParseReading(t *testing.T) {
	rd, err := ParseReading(map[string]string{"seconds": "12", "subseconds": "4294967290"})
	require.NoError(t, err)
	assert.Equal(t, clock.Reading{Seconds: 12, Subseconds: 4294967290}, rd)

	_, err = ParseReading(map[string]string{"seconds": "-1", "subseconds": "0"})
	assert.Error(t, err)

	_, err = ParseReading(map[string]string{"seconds": "1"})
	assert.Error(t, err)
}

func TestCommandEncoding(t *testing.T) {
	cmd := sensor.NewCommand([3]int8{127, -5, 0}, mode.Bdot, 1_500_000)

	fields := CommandFields(cmd)
	assert.Equal(t, 127, fields["x"])
	assert.Equal(t, -5, fields["y"])
	assert.Equal(t, "BDOT", fields["mode"])
	assert.Equal(t, "1500000", fields["timestamp_us"])

	payload, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"drive":[127,-5,0],"mode":"BDOT","timestamp_us":1500000}`, string(payload))
}
