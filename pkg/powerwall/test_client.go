package powerwall

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// TestGateway is an in-memory gateway used by tests.
type TestGateway struct {
	mu sync.Mutex

	Password      string
	Aggregates    Aggregates
	AggregatesErr error
	ModeName      string
	OperationErr  error
	// RejectTokens makes the next n operation calls answer 401.
	RejectTokens int

	tokenSeq       int
	token          string
	AuthCalls      int
	AggregateCalls int
	OperationCalls int
	SetModes       []OperatingMode
}

func NewTestGateway() *TestGateway {
	return &TestGateway{
		Password:   "secret",
		Aggregates: SampleAggregates(),
		ModeName:   "self_consumption",
	}
}

// SampleAggregates mirrors a typical gateway answer with a solar array, a
// battery that is charging and a small grid export.
func SampleAggregates() Aggregates {
	return Aggregates{
		"site": {
			InstantPower:          -312.5,
			InstantReactivePower:  -120.25,
			InstantApparentPower:  334.84,
			Frequency:             60.001,
			EnergyExported:        1521834.4281,
			EnergyImported:        2870024.7344,
			InstantAverageVoltage: 243.11,
			InstantTotalCurrent:   1.2856,
			IACurrent:             0,
			IBCurrent:             0,
			ICCurrent:             0,
		},
		"battery": {
			InstantPower:          -2480,
			InstantReactivePower:  30,
			InstantApparentPower:  2480.18,
			Frequency:             60.008,
			EnergyExported:        3301220,
			EnergyImported:        3870110,
			InstantAverageVoltage: 244.3,
			InstantTotalCurrent:   -10.15,
		},
		"load": {
			InstantPower:          1411.7,
			InstantReactivePower:  -98.3,
			InstantApparentPower:  1415.12,
			Frequency:             60.001,
			EnergyExported:        0,
			EnergyImported:        6120330.11,
			InstantAverageVoltage: 243.11,
			InstantTotalCurrent:   5.8069,
		},
		"solar": {
			InstantPower:          4204.2,
			InstantReactivePower:  -14.6,
			InstantApparentPower:  4204.23,
			Frequency:             60.002,
			EnergyExported:        9118260.42,
			EnergyImported:        1411.1,
			InstantAverageVoltage: 243.7,
			InstantTotalCurrent:   17.25,
		},
	}
}

func (g *TestGateway) Authenticate(_ context.Context, _ string, password string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AuthCalls++
	if password != g.Password {
		return "", fmt.Errorf("%w: %w", ErrAuth, &StatusError{Method: http.MethodPost, Path: loginPath, StatusCode: http.StatusUnauthorized})
	}
	g.tokenSeq++
	g.token = fmt.Sprintf("token-%d", g.tokenSeq)
	return g.token, nil
}

func (g *TestGateway) FetchAggregateMeters(_ context.Context, _ string) (Aggregates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AggregateCalls++
	if g.AggregatesErr != nil {
		return nil, g.AggregatesErr
	}
	out := make(Aggregates, len(g.Aggregates))
	for k, v := range g.Aggregates {
		reading := make(MeterReading, len(v))
		for m, value := range v {
			reading[m] = value
		}
		out[k] = reading
	}
	return out, nil
}

func (g *TestGateway) checkToken(token string) error {
	if g.RejectTokens > 0 {
		g.RejectTokens--
		return &StatusError{Method: http.MethodGet, Path: operationPath, StatusCode: http.StatusUnauthorized}
	}
	if token == "" || token != g.token {
		return &StatusError{Method: http.MethodGet, Path: operationPath, StatusCode: http.StatusUnauthorized}
	}
	return nil
}

func (g *TestGateway) FetchOperationMode(_ context.Context, _ string, token string) (*OperatingMode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.OperationCalls++
	if err := g.checkToken(token); err != nil {
		return nil, err
	}
	if g.OperationErr != nil {
		return nil, g.OperationErr
	}
	mode, ok := ParseOperatingMode(g.ModeName)
	if !ok {
		return nil, nil
	}
	return &mode, nil
}

func (g *TestGateway) SetOperationMode(_ context.Context, _ string, token string, mode OperatingMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkToken(token); err != nil {
		return err
	}
	g.SetModes = append(g.SetModes, mode)
	g.ModeName = mode.String()
	return nil
}
