package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "feeder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	sessions        *prom.CounterVec
	sessionDuration *prom.HistogramVec
	pulseDuration   prom.Histogram
	dispensed       prom.Histogram
	sensorErrors    *prom.CounterVec
	classifications *prom.CounterVec
	weight          prom.Gauge
	armed           prom.Gauge
	feeding         prom.Gauge
}

// NewPrometheusRecorder constructs and registers the feeder metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		sessions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Feed sessions by terminal state",
		}, []string{"outcome"}),
		sessionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Feed session duration from start to terminal state",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"outcome"}),
		pulseDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pulse_duration_seconds",
			Help:      "Gate open time per pulse",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 6, 8, 10},
		}),
		dispensed: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "dispensed_kilograms",
			Help:      "Weight delivered per feed session, measured by readback",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.4, 0.8},
		}),
		sensorErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_errors_total",
			Help:      "Weight sensor read failures by caller",
		}, []string{"source"}),
		classifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Sensing loop classification decisions",
		}, []string{"result"}),
		weight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "weight_kilograms",
			Help:      "Latest calibrated bowl weight",
		}),
		armed: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "armed",
			Help:      "1 while the system is armed",
		}),
		feeding: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "feeding",
			Help:      "1 while a feed session is live",
		}),
	}
	reg.MustRegister(pr.sessions, pr.sessionDuration, pr.pulseDuration, pr.dispensed,
		pr.sensorErrors, pr.classifications, pr.weight, pr.armed, pr.feeding)
	return pr
}

func (p *PrometheusRecorder) IncSession(outcome SessionOutcome) {
	if p == nil {
		return
	}
	p.sessions.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveSessionDuration(outcome SessionOutcome, d time.Duration) {
	if p == nil {
		return
	}
	p.sessionDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePulse(d time.Duration) {
	if p == nil {
		return
	}
	p.pulseDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveDispensed(kg float64) {
	if p == nil {
		return
	}
	p.dispensed.Observe(kg)
}

func (p *PrometheusRecorder) IncSensorError(source string) {
	if p == nil {
		return
	}
	p.sensorErrors.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncClassification(result ClassifyResult) {
	if p == nil {
		return
	}
	p.classifications.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) SetWeight(kg float64) {
	if p == nil {
		return
	}
	p.weight.Set(kg)
}

func (p *PrometheusRecorder) SetArmed(armed bool) {
	if p == nil {
		return
	}
	p.armed.Set(boolGauge(armed))
}

func (p *PrometheusRecorder) SetFeeding(feeding bool) {
	if p == nil {
		return
	}
	p.feeding.Set(boolGauge(feeding))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
