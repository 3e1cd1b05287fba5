package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/shellrace/telemetry"
)

// Metrics provides observability for live races and the HTTP API.
type Metrics struct {
	RacesTotal       *prometheus.CounterVec
	RaceTicks        prometheus.Histogram
	RaceFinishers    prometheus.Histogram
	TickDuration     prometheus.Histogram
	Spectators       prometheus.Gauge
	Speed            prometheus.Gauge
	HallOfFameSize   prometheus.Gauge
	BroadcastsTotal  prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	SimulatedRaces   prometheus.Counter
	BreedingsTotal   prometheus.Counter
	ValidationErrors *prometheus.CounterVec
}

// NewMetrics registers every metric with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RacesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shellrace_races_total",
			Help: "Live races run, by layout kind",
		}, []string{"course"}),
		RaceTicks: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shellrace_race_ticks",
			Help:    "Ticks taken by each live race",
			Buckets: prometheus.ExponentialBuckets(50, 2, 8),
		}),
		RaceFinishers: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shellrace_race_finishers",
			Help:    "Turtles that finished each live race",
			Buckets: prometheus.LinearBuckets(0, 2, 8),
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shellrace_tick_duration_seconds",
			Help:    "Duration of one simulator tick",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		Spectators: f.NewGauge(prometheus.GaugeOpts{
			Name: "shellrace_spectators",
			Help: "Connected websocket spectators",
		}),
		Speed: f.NewGauge(prometheus.GaugeOpts{
			Name: "shellrace_speed_multiplier",
			Help: "Current live race speed multiplier",
		}),
		HallOfFameSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "shellrace_hall_of_fame_size",
			Help: "Turtles in the hall of fame",
		}),
		BroadcastsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "shellrace_broadcasts_total",
			Help: "Messages broadcast to spectators",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shellrace_http_request_duration_seconds",
			Help:    "Duration of API requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		SimulatedRaces: f.NewCounter(prometheus.CounterOpts{
			Name: "shellrace_api_races_total",
			Help: "Races simulated through the API",
		}),
		BreedingsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "shellrace_breedings_total",
			Help: "Turtles bred through the API",
		}),
		ValidationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shellrace_validation_errors_total",
			Help: "Rejected API requests by route",
		}, []string{"route"}),
	}
}

// ObserveRace records a finished live race.
func (m *Metrics) ObserveRace(rs telemetry.RaceStats) {
	if m == nil {
		return
	}
	m.RacesTotal.WithLabelValues(rs.Course).Inc()
	m.RaceTicks.Observe(float64(rs.Ticks))
	m.RaceFinishers.Observe(float64(rs.Finishers))
}

// ObserveTick records one simulator tick started at start.
func (m *Metrics) ObserveTick(start time.Time) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(time.Since(start).Seconds())
}

// ObserveRequest records an API request on route started at start.
func (m *Metrics) ObserveRequest(route string, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// IncrementValidationError records a rejected request on route.
func (m *Metrics) IncrementValidationError(route string) {
	if m == nil {
		return
	}
	m.ValidationErrors.WithLabelValues(route).Inc()
}

// SetSpectators records the number of connected spectators.
func (m *Metrics) SetSpectators(n int) {
	if m == nil {
		return
	}
	m.Spectators.Set(float64(n))
}

// SetSpeed records the live speed multiplier.
func (m *Metrics) SetSpeed(n int) {
	if m == nil {
		return
	}
	m.Speed.Set(float64(n))
}

// SetHallOfFameSize records the hall of fame size.
func (m *Metrics) SetHallOfFameSize(n int) {
	if m == nil {
		return
	}
	m.HallOfFameSize.Set(float64(n))
}

// IncrementBroadcasts records one spectator broadcast.
func (m *Metrics) IncrementBroadcasts() {
	if m == nil {
		return
	}
	m.BroadcastsTotal.Inc()
}

// IncrementBreedings records one bred turtle.
func (m *Metrics) IncrementBreedings() {
	if m == nil {
		return
	}
	m.BreedingsTotal.Inc()
}

// IncrementSimulatedRaces records one race run through the API.
func (m *Metrics) IncrementSimulatedRaces() {
	if m == nil {
		return
	}
	m.SimulatedRaces.Inc()
}
