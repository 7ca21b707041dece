package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics implements the store recorder and the session gauge on top of a
// Prometheus registry.
type Metrics struct {
	presetOperations *prometheus.CounterVec
	canvasDevices    prometheus.Gauge
	sessionsActive   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		presetOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layout_preset_operations_total",
				Help: "Preset operations by kind and outcome.",
			},
			[]string{"op", "outcome"},
		),
		canvasDevices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "layout_canvas_devices",
				Help: "Devices currently placed across all open canvases.",
			},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "layout_sessions_active",
				Help: "Open editing sessions.",
			},
		),
	}
	reg.MustRegister(m.presetOperations)
	reg.MustRegister(m.canvasDevices)
	reg.MustRegister(m.sessionsActive)
	return m
}

func (m *Metrics) PresetOperation(op, outcome string) {
	m.presetOperations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) DevicesPlaced(delta int) {
	m.canvasDevices.Add(float64(delta))
}

func (m *Metrics) SessionsOpen(n int) {
	m.sessionsActive.Set(float64(n))
}
