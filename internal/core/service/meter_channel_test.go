package service

import (
	"testing"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatEvents(t *testing.T, events []domain.SensorUpdateEvent) map[string]float64 {
	t.Helper()
	out := map[string]float64{}
	for _, e := range events {
		fe, ok := e.(domain.FloatSensorUpdateEvent)
		require.True(t, ok, "unexpected event %T", e)
		require.EqualValues(t, METER_DECIMALS, fe.Decimals)
		out[fe.Id] = fe.Value
	}
	return out
}

func TestMeterChannelRoundsAndSuppressesUnchanged(t *testing.T) {
	require := require.New(t)
	ch := NewMeterChannel(domain.Meters[0])

	first := floatEvents(t, ch.Update(powerwall.MeterReading{
		powerwall.InstantPower: 1234.56789,
		powerwall.Frequency:    60.0004,
	}, false))
	require.Equal(map[string]float64{
		"pw_grid_instant_power": 1234.568,
		"pw_grid_frequency":     60.0,
	}, first)

	// same rounded values
	again := ch.Update(powerwall.MeterReading{
		powerwall.InstantPower: 1234.5681,
		powerwall.Frequency:    60.0,
	}, false)
	require.Empty(again)

	changed := floatEvents(t, ch.Update(powerwall.MeterReading{
		powerwall.InstantPower: 1000,
		powerwall.Frequency:    60.0,
	}, false))
	require.Equal(map[string]float64{"pw_grid_instant_power": 1000}, changed)
}

func TestMeterChannelForceFullReport(t *testing.T) {
	require := require.New(t)
	ch := NewMeterChannel(domain.Meters[1])
	reading := powerwall.MeterReading{powerwall.InstantPower: -2480, powerwall.EnergyImported: 3870110}

	require.Len(ch.Update(reading, false), 2)
	require.Empty(ch.Update(reading, false))
	require.Len(ch.Update(reading, true), 2)
}

func TestMeterChannelAbsentKeysUntouched(t *testing.T) {
	assert := assert.New(t)
	ch := NewMeterChannel(domain.Meters[2])

	ch.Update(powerwall.MeterReading{powerwall.InstantPower: 10, powerwall.InstantAverageVoltage: 240.1}, false)
	ch.Update(powerwall.MeterReading{powerwall.InstantPower: 11}, false)

	v, ok := ch.Value(powerwall.InstantAverageVoltage)
	assert.True(ok)
	assert.Equal(240.1, v)

	_, ok = ch.Value(powerwall.IACurrent)
	assert.False(ok)

	report := floatEvents(t, ch.Report())
	assert.Equal(map[string]float64{
		"pw_load_instant_power":           11,
		"pw_load_instant_average_voltage": 240.1,
	}, report)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.001, round(0.0005, 3))
	assert.Equal(t, -1.235, round(-1.23456, 3))
}
