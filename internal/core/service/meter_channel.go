package service

import (
	"math"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"
)

const METER_DECIMALS = 3

// MeterChannel holds the last reported value of every slot of one meter.
type MeterChannel struct {
	meter  domain.MeterDefinition
	values map[powerwall.Measurement]float64
}

func NewMeterChannel(meter domain.MeterDefinition) *MeterChannel {
	return &MeterChannel{
		meter:  meter,
		values: map[powerwall.Measurement]float64{},
	}
}

func (c *MeterChannel) Key() string {
	return c.meter.Key
}

func (c *MeterChannel) Address() string {
	return c.meter.Address
}

// Update stores the slots present in reading and returns an event for each
// slot whose rounded value changed. With forceFullReport every present slot
// is returned.
func (c *MeterChannel) Update(reading powerwall.MeterReading, forceFullReport bool) []domain.SensorUpdateEvent {
	var updates []domain.SensorUpdateEvent
	for _, slot := range domain.MeterSlots {
		raw, ok := reading[slot.Measurement]
		if !ok {
			continue
		}
		value := round(raw, METER_DECIMALS)
		prev, seen := c.values[slot.Measurement]
		if seen && prev == value && !forceFullReport {
			continue
		}
		c.values[slot.Measurement] = value
		updates = append(updates, c.event(slot.Measurement, value))
	}
	return updates
}

// Report returns the current value of every slot that has one.
func (c *MeterChannel) Report() []domain.SensorUpdateEvent {
	var updates []domain.SensorUpdateEvent
	for _, slot := range domain.MeterSlots {
		if value, ok := c.values[slot.Measurement]; ok {
			updates = append(updates, c.event(slot.Measurement, value))
		}
	}
	return updates
}

func (c *MeterChannel) Value(m powerwall.Measurement) (float64, bool) {
	v, ok := c.values[m]
	return v, ok
}

func (c *MeterChannel) event(m powerwall.Measurement, value float64) domain.SensorUpdateEvent {
	return domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.MeterSensorId(c.meter.Address, m),
		},
		Value:    value,
		Decimals: METER_DECIMALS,
	}
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
