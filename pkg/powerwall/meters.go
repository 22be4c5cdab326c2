package powerwall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Measurement string

const (
	InstantPower          Measurement = "instant_power"
	InstantReactivePower  Measurement = "instant_reactive_power"
	InstantApparentPower  Measurement = "instant_apparent_power"
	Frequency             Measurement = "frequency"
	EnergyExported        Measurement = "energy_exported"
	EnergyImported        Measurement = "energy_imported"
	InstantAverageVoltage Measurement = "instant_average_voltage"
	InstantTotalCurrent   Measurement = "instant_total_current"
	IACurrent             Measurement = "i_a_current"
	IBCurrent             Measurement = "i_b_current"
	ICCurrent             Measurement = "i_c_current"
)

// Measurements lists every value a meter entry may carry, in report order.
var Measurements = []Measurement{
	InstantPower,
	InstantReactivePower,
	InstantApparentPower,
	Frequency,
	EnergyExported,
	EnergyImported,
	InstantAverageVoltage,
	InstantTotalCurrent,
	IACurrent,
	IBCurrent,
	ICCurrent,
}

// MeterReading holds the numeric measurements of one meter. Missing or
// non-numeric fields are absent from the map.
type MeterReading map[Measurement]float64

// Aggregates maps a meter key ("site", "battery", "load", "solar", ...) to its reading.
type Aggregates map[string]MeterReading

func (c *Client) FetchAggregateMeters(ctx context.Context, host string) (Aggregates, error) {
	data, err := c.do(ctx, http.MethodGet, host, aggregatesPath, "", nil)
	if err != nil {
		return nil, err
	}
	return ParseAggregates(data)
}

// ParseAggregates decodes an aggregates document. Firmware versions differ on
// whether the document is a bare object or a one element array; both are accepted.
func ParseAggregates(data []byte) (Aggregates, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyResponse
	}

	var root map[string]json.RawMessage
	if trimmed[0] == '[' {
		var list []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if len(list) == 0 {
			return nil, ErrEmptyResponse
		}
		root = list[0]
	} else if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if root == nil {
		return nil, ErrEmptyResponse
	}

	aggregates := make(Aggregates, len(root))
	for key, raw := range root {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			continue
		}
		aggregates[key] = readingFromFields(fields)
	}
	return aggregates, nil
}

func readingFromFields(fields map[string]any) MeterReading {
	reading := MeterReading{}
	for _, m := range Measurements {
		if v, ok := fields[string(m)].(float64); ok {
			reading[m] = v
		}
	}
	return reading
}
