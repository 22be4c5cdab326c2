package powerwall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const aggregatesFixture = `{
  "site": {"last_communication_time": "2024-05-02T10:11:12-07:00", "instant_power": -312.5, "instant_reactive_power": -120.25,
           "instant_apparent_power": 334.84, "frequency": 60, "energy_exported": 1521834.4281, "energy_imported": 2870024.7344,
           "instant_average_voltage": 243.11, "instant_total_current": 1.2856, "i_a_current": 0, "i_b_current": 0, "i_c_current": 0,
           "timeout": 1500000000},
  "battery": {"instant_power": -2480, "frequency": 60.008, "instant_average_voltage": "n/a"},
  "load": {"instant_power": 1411.7},
  "solar": {"instant_power": 4204.2},
  "busway": null
}`

type fakeGateway struct {
	mu       sync.Mutex
	password string
	token    string
	mode     string
	reserve  float64
	requests []string
	posted   map[string]any
}

func (f *fakeGateway) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/Basic", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"email": "", "token": f.token, "roles": []string{"Home_Owner"}})
	})
	mux.HandleFunc("GET /api/meters/aggregates", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = w.Write([]byte(aggregatesFixture))
	})
	mux.HandleFunc("GET /api/operation", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		op := map[string]any{"real_mode": f.mode, "backup_reserve_percent": f.reserve}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(op)
	})
	mux.HandleFunc("POST /api/operation", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if !f.authorized(r) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.posted = body
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /api/config/completed", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

func (f *fakeGateway) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server, *Client) {
	t.Helper()
	fake := &fakeGateway{password: "hunter2", token: "tok-123", mode: "backup", reserve: 20}
	srv := httptest.NewTLSServer(fake.handler())
	t.Cleanup(srv.Close)
	client := NewClient(WithTimeout(2*time.Second), WithLogger(zaptest.NewLogger(t)))
	return fake, srv, client
}

func TestAuthenticate(t *testing.T) {
	require := require.New(t)
	_, srv, client := newFakeGateway(t)

	token, err := client.Authenticate(context.Background(), srv.URL, "hunter2")
	require.NoError(err)
	require.Equal("tok-123", token)

	_, err = client.Authenticate(context.Background(), srv.URL, "wrong")
	require.ErrorIs(err, ErrAuth)
	require.ErrorIs(err, ErrUnauthorized)
}

func TestFetchAggregateMetersKeepsNumericFields(t *testing.T) {
	require := require.New(t)
	_, srv, client := newFakeGateway(t)

	aggregates, err := client.FetchAggregateMeters(context.Background(), srv.URL)
	require.NoError(err)

	require.Contains(aggregates, "site")
	require.NotContains(aggregates, "busway")
	require.Len(aggregates["site"], len(Measurements))
	require.InDelta(-312.5, aggregates["site"][InstantPower], 1e-9)
	require.InDelta(60.0, aggregates["site"][Frequency], 1e-9)

	battery := aggregates["battery"]
	require.Len(battery, 2)
	require.NotContains(battery, InstantAverageVoltage)
}

func TestParseAggregatesShapes(t *testing.T) {
	assert := assert.New(t)

	arr, err := ParseAggregates([]byte(`[{"site": {"instant_power": 10}}, {"site": {"instant_power": 99}}]`))
	assert.NoError(err)
	assert.InDelta(10.0, arr["site"][InstantPower], 1e-9)

	_, err = ParseAggregates([]byte(`null`))
	assert.ErrorIs(err, ErrEmptyResponse)

	_, err = ParseAggregates([]byte(`[]`))
	assert.ErrorIs(err, ErrEmptyResponse)

	_, err = ParseAggregates([]byte(` `))
	assert.ErrorIs(err, ErrEmptyResponse)

	_, err = ParseAggregates([]byte(`{"site": `))
	assert.ErrorIs(err, ErrMalformedResponse)

	_, err = ParseAggregates([]byte(`"maintenance"`))
	assert.ErrorIs(err, ErrMalformedResponse)
}

func TestFetchOperationMode(t *testing.T) {
	require := require.New(t)
	fake, srv, client := newFakeGateway(t)
	ctx := context.Background()

	mode, err := client.FetchOperationMode(ctx, srv.URL, "tok-123")
	require.NoError(err)
	require.NotNil(mode)
	require.Equal(Backup, *mode)

	fake.mu.Lock()
	fake.mode = "off_grid_experiment"
	fake.mu.Unlock()
	mode, err = client.FetchOperationMode(ctx, srv.URL, "tok-123")
	require.NoError(err)
	require.Nil(mode)

	_, err = client.FetchOperationMode(ctx, srv.URL, "stale")
	require.ErrorIs(err, ErrUnauthorized)
}

func TestSetOperationModeKeepsReserve(t *testing.T) {
	require := require.New(t)
	fake, srv, client := newFakeGateway(t)

	err := client.SetOperationMode(context.Background(), srv.URL, "tok-123", Autonomous)
	require.NoError(err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal("autonomous", fake.posted["real_mode"])
	require.InDelta(20.0, fake.posted["backup_reserve_percent"], 1e-9)
	require.Equal([]string{
		"GET /api/operation",
		"POST /api/operation",
		"GET /api/config/completed",
	}, fake.requests)
}

func TestSetOperationModeRejectsUnknownMode(t *testing.T) {
	_, srv, client := newFakeGateway(t)
	err := client.SetOperationMode(context.Background(), srv.URL, "tok-123", OperatingMode(9))
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestCertificateVerification(t *testing.T) {
	require := require.New(t)
	_, srv, _ := newFakeGateway(t)

	strict := NewClient(WithInsecureSkipVerify(false), WithTimeout(2*time.Second))
	_, err := strict.FetchAggregateMeters(context.Background(), srv.URL)
	require.ErrorIs(err, ErrTransport)

	trusting := NewClient(WithHTTPClient(srv.Client()))
	_, err = trusting.FetchAggregateMeters(context.Background(), srv.URL)
	require.NoError(err)
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient().FetchAggregateMeters(context.Background(), srv.URL)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestInstrumentRecordsEndpoints(t *testing.T) {
	_, srv, _ := newFakeGateway(t)
	var endpoints []string
	client := NewClient(WithInstrument(GatewayInstrument{
		RecordTime: func(endpoint string, _ time.Duration) { endpoints = append(endpoints, endpoint) },
	}))

	_, err := client.FetchAggregateMeters(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{aggregatesPath}, endpoints)
}

func TestEndpointURL(t *testing.T) {
	assert := assert.New(t)

	u, err := endpointURL("192.168.91.1", aggregatesPath)
	assert.NoError(err)
	assert.Equal("https://192.168.91.1/api/meters/aggregates", u)

	u, err = endpointURL("http://gw.local:8080/", loginPath)
	assert.NoError(err)
	assert.Equal("http://gw.local:8080/api/login/Basic", u)

	_, err = endpointURL("  ", loginPath)
	assert.Error(err)
}

func TestOperatingModeNames(t *testing.T) {
	assert := assert.New(t)
	for i, name := range OperatingModeNames() {
		mode, ok := ParseOperatingMode(name)
		assert.True(ok)
		assert.Equal(OperatingMode(i), mode)
		assert.Equal(name, mode.String())
	}
	_, ok := ParseOperatingMode("")
	assert.False(ok)
}
