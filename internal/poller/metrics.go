package poller

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nkratastr/roborock-data-pipeline/internal/roborock"
)

// Metrics exposes pipeline counters and per-device gauges.
type Metrics struct {
	cycles      prometheus.Counter
	cycleErrors prometheus.Counter

	sessionsCompleted  *prometheus.CounterVec
	newCleanings       *prometheus.CounterVec
	counterRegressions *prometheus.CounterVec

	rowsAppended *prometheus.CounterVec
	appendErrors *prometheus.CounterVec

	batteryPercent  *prometheus.GaugeVec
	deviceState     *prometheus.GaugeVec
	consumableHours *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	deviceLabels := []string{"device_id", "device_name"}
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_poll_cycles_total",
			Help: "Completed poll cycles",
		}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_poll_errors_total",
			Help: "Poll cycles that ended in an error",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_sessions_completed_total",
			Help: "Cleaning sessions detected via active-to-idle transitions",
		}, deviceLabels),
		newCleanings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_new_cleanings_total",
			Help: "New cleanings observed through the lifetime counter",
		}, deviceLabels),
		counterRegressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_counter_regressions_total",
			Help: "Lifetime counter regressions (factory reset or account change)",
		}, []string{"device_id"}),
		rowsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_sink_rows_appended_total",
			Help: "Rows appended to the sink",
		}, []string{"table"}),
		appendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_sink_append_errors_total",
			Help: "Sink append failures",
		}, []string{"table"}),
		batteryPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_device_battery_percent",
			Help: "Battery percentage from the last poll (0-100)",
		}, deviceLabels),
		deviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_device_state",
			Help: "Device state from the last poll (1 on the current state label)",
		}, []string{"device_id", "device_name", "state"}),
		consumableHours: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_device_consumable_hours",
			Help: "Accumulated wear per replaceable part from the last poll",
		}, []string{"device_id", "device_name", "consumable"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.cycles,
			m.cycleErrors,
			m.sessionsCompleted,
			m.newCleanings,
			m.counterRegressions,
			m.rowsAppended,
			m.appendErrors,
			m.batteryPercent,
			m.deviceState,
			m.consumableHours,
		)
	}
	return m
}

func (m *Metrics) observeSnapshot(deviceID, deviceName string, battery int, state string) {
	m.batteryPercent.WithLabelValues(deviceID, deviceName).Set(float64(battery))
	m.deviceState.DeletePartialMatch(prometheus.Labels{"device_id": deviceID})
	m.deviceState.WithLabelValues(deviceID, deviceName, state).Set(1)
}

func (m *Metrics) observeConsumables(deviceID, deviceName string, wear roborock.Consumables) {
	set := func(part string, hours float64) {
		m.consumableHours.WithLabelValues(deviceID, deviceName, part).Set(hours)
	}
	set("main_brush", wear.MainBrushHours)
	set("side_brush", wear.SideBrushHours)
	set("filter", wear.FilterHours)
	set("sensor", wear.SensorDirtyHours)
}
