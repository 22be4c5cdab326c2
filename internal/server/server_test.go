package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func healthActor(healthy bool) actor.ReceiveFunc {
	return func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.ActorHealthRequest); ok {
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy, State: "configured"})
		}
	}
}

func testServer(t *testing.T, healthy bool) (*Server, *prometheus.Registry) {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	reg := prometheus.NewRegistry()
	pid := as.Root.Spawn(actor.PropsFromFunc(healthActor(healthy)))
	return &Server{rootContext: as.Root, masterActor: pid, gatherer: reg}, reg
}

func TestHealthCheck(t *testing.T) {
	s, _ := testServer(t, true)
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK (configured)", rec.Body.String())
}

func TestHealthCheckUnhealthy(t *testing.T) {
	s, _ := testServer(t, false)
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, reg := testServer(t, true)
	m := metrics.New(reg)
	m.ObservePoll(domain.ERROR_KIND_OK)
	m.SetConfigured(true)

	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `powerwall_polls_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "powerwall_configured 1")
}
