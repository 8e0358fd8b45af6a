// Package metrics collects and exposes Prometheus metrics for seat
// bookings and the daily release job.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the booking service and the
// scheduler.
type Recorder interface {
	RecordBooking(result string)
	RecordRelease(result string)
	ObserveTx(op string, d time.Duration)
	RecordSchedulerRun(status string, seatsReleased, usersUpdated int64)
	RecordPreAssign(status string)
}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	bookings      *prometheus.CounterVec
	releases      *prometheus.CounterVec
	txDuration    *prometheus.HistogramVec
	schedulerRuns *prometheus.CounterVec
	seatsReleased prometheus.Counter
	usersUpdated  prometheus.Counter
	preAssign     *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seatbooking_book_total",
			Help: "Book attempts by result.",
		}, []string{"result"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seatbooking_release_total",
			Help: "Release attempts by result.",
		}, []string{"result"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seatbooking_tx_duration_seconds",
			Help:    "Duration of booking transactions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seatbooking_scheduler_runs_total",
			Help: "Daily release runs by status.",
		}, []string{"status"}),
		seatsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seatbooking_scheduler_seats_released_total",
			Help: "Seats freed by the daily release.",
		}),
		usersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seatbooking_scheduler_users_updated_total",
			Help: "Users whose seat reference was cleared by the daily release.",
		}),
		preAssign: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seatbooking_preassign_total",
			Help: "Pre-assignment outcomes by status.",
		}, []string{"status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seatbooking_scheduler_last_run_timestamp_seconds",
			Help: "Unix time of the last daily release run.",
		}),
	}

	reg.MustRegister(
		c.bookings,
		c.releases,
		c.txDuration,
		c.schedulerRuns,
		c.seatsReleased,
		c.usersUpdated,
		c.preAssign,
		c.lastRun,
	)
	return c
}

func (c *Collector) RecordBooking(result string) { c.bookings.WithLabelValues(result).Inc() }

func (c *Collector) RecordRelease(result string) { c.releases.WithLabelValues(result).Inc() }

func (c *Collector) ObserveTx(op string, d time.Duration) {
	c.txDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordSchedulerRun counts one release run and the rows it changed.
func (c *Collector) RecordSchedulerRun(status string, seatsReleased, usersUpdated int64) {
	c.schedulerRuns.WithLabelValues(status).Inc()
	c.seatsReleased.Add(float64(seatsReleased))
	c.usersUpdated.Add(float64(usersUpdated))
	c.lastRun.SetToCurrentTime()
}

func (c *Collector) RecordPreAssign(status string) { c.preAssign.WithLabelValues(status).Inc() }

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards everything.  It is used when no collector is wired.
type Noop struct{}

func (Noop) RecordBooking(string)                    {}
func (Noop) RecordRelease(string)                    {}
func (Noop) ObserveTx(string, time.Duration)         {}
func (Noop) RecordSchedulerRun(string, int64, int64) {}
func (Noop) RecordPreAssign(string)                  {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Noop{}
)
