// Package metrics exposes ingestion metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtxerr/aprs2influxdb/internal/logging"
)

const metricPrefix = "aprs2influxdb_"

// Packet outcomes.
const (
	OutcomeWritten         = "written"
	OutcomeSkipped         = "skipped"
	OutcomeDecodeError     = "decode_error"
	OutcomeWriteError      = "write_error"
	OutcomeDroppedShutdown = "dropped_shutdown"
)

// Write results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	packetsReceived prometheus.Counter
	packetOutcomes  *prometheus.CounterVec
	definitions     prometheus.Counter
	writeLatency    *prometheus.HistogramVec
	lifecycleState  prometheus.Gauge
	startAttempts   *prometheus.CounterVec
)

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	registerOnce.Do(func() {
		packetsReceived = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "packets_received_total",
				Help: "Raw packets delivered by the upstream connection",
			},
		)
		packetOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "packets_total",
				Help: "Processed packets by outcome",
			},
			[]string{"outcome"},
		)
		definitions = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_definitions_total",
				Help: "Telemetry definition messages registered",
			},
		)
		writeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "write_latency_seconds",
				Help:    "Storage write latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		lifecycleState = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "lifecycle_state",
				Help: "Connection lifecycle state (0 stopped, 1 starting, 2 running, 3 stopping)",
			},
		)
		startAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "start_attempts_total",
				Help: "Start attempts by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			packetsReceived,
			packetOutcomes,
			definitions,
			writeLatency,
			lifecycleState,
			startAttempts,
		)
	})
}

// IncReceived counts a delivered raw packet.
func IncReceived() {
	if packetsReceived == nil {
		return
	}
	packetsReceived.Inc()
}

// IncOutcome counts a processed packet.
func IncOutcome(outcome string) {
	if packetOutcomes == nil {
		return
	}
	packetOutcomes.WithLabelValues(outcome).Inc()
}

// IncDefinitions counts a registered telemetry definition.
func IncDefinitions() {
	if definitions == nil {
		return
	}
	definitions.Inc()
}

// ObserveWrite records a storage write.
func ObserveWrite(result string, duration time.Duration) {
	if writeLatency == nil {
		return
	}
	writeLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// SetLifecycleState records the lifecycle state.
func SetLifecycleState(state int) {
	if lifecycleState == nil {
		return
	}
	lifecycleState.Set(float64(state))
}

// IncStart counts a start attempt.
func IncStart(result string) {
	if startAttempts == nil {
		return
	}
	startAttempts.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	log := logging.Component("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
