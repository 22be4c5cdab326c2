package metrics

import (
	"time"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ENDPOINT_LOGIN         = "login"
	ENDPOINT_AGGREGATES    = "aggregates"
	ENDPOINT_OPERATION     = "operation"
	ENDPOINT_OPERATION_SET = "operation_set"
	POLL_RESULT_SKIPPED    = "skipped"
	namespace              = "powerwall"
)

type Metrics struct {
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	polls           *prometheus.CounterVec
	channelUpdates  *prometheus.CounterVec
	configured      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Gateway API calls by endpoint and result.",
		}, []string{"endpoint", "result"}),
		gatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Gateway API round trip time by path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Short poll cycles by result.",
		}, []string{"result"}),
		channelUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_updates_total",
			Help:      "Meter slot values reported to the hub by channel.",
		}, []string{"channel"}),
		configured: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "configured",
			Help:      "1 when every required parameter is set.",
		}),
	}
}

func (m *Metrics) ObserveGatewayRequest(endpoint string, err error) {
	m.gatewayRequests.WithLabelValues(endpoint, domain.ErrorKind(err)).Inc()
}

func (m *Metrics) ObservePoll(result string) {
	m.polls.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveChannelUpdates(channel string, n int) {
	if n <= 0 {
		return
	}
	m.channelUpdates.WithLabelValues(channel).Add(float64(n))
}

func (m *Metrics) SetConfigured(configured bool) {
	if configured {
		m.configured.Set(1)
	} else {
		m.configured.Set(0)
	}
}

// GatewayInstrument feeds gateway client timings into the latency histogram.
func (m *Metrics) GatewayInstrument() powerwall.GatewayInstrument {
	return powerwall.GatewayInstrument{
		RecordTime: func(path string, d time.Duration) {
			m.gatewayLatency.WithLabelValues(path).Observe(d.Seconds())
		},
	}
}
