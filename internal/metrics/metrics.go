package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer exports compression and document store telemetry to Prometheus.
// A nil *Observer is safe to use and records nothing.
type Observer struct {
	compressDuration prometheus.Histogram
	compressAttempts prometheus.Histogram
	compressOutcomes *prometheus.CounterVec
	storeDuration    *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
}

// New registers the cardvault collectors on reg (the default registerer when nil).
func New(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "cardvault"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &Observer{
		compressDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compress_duration_seconds",
			Help:      "Time spent decoding, resizing and encoding uploaded images.",
			Buckets:   prometheus.DefBuckets,
		}),
		compressAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compress_attempts",
			Help:      "JPEG encode attempts per compression.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		compressOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compress_total",
			Help:      "Compressions by outcome (fit, oversize, error).",
		}, []string{"outcome"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of document store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operation_errors_total",
			Help:      "Failed document store operations.",
		}, []string{"operation"}),
	}

	var err error
	if o.compressDuration, err = register(reg, o.compressDuration); err != nil {
		return nil, err
	}
	if o.compressAttempts, err = register(reg, o.compressAttempts); err != nil {
		return nil, err
	}
	if o.compressOutcomes, err = register(reg, o.compressOutcomes); err != nil {
		return nil, err
	}
	if o.storeDuration, err = register(reg, o.storeDuration); err != nil {
		return nil, err
	}
	if o.storeErrors, err = register(reg, o.storeErrors); err != nil {
		return nil, err
	}
	return o, nil
}

// RecordCompression implements imageproc.Observer.
func (o *Observer) RecordCompression(duration time.Duration, attempts int, _ float64, fit bool, err error) {
	if o == nil {
		return
	}
	o.compressDuration.Observe(duration.Seconds())
	switch {
	case err != nil:
		o.compressOutcomes.WithLabelValues("error").Inc()
		return
	case fit:
		o.compressOutcomes.WithLabelValues("fit").Inc()
	default:
		o.compressOutcomes.WithLabelValues("oversize").Inc()
	}
	o.compressAttempts.Observe(float64(attempts))
}

// RecordStore tracks one document store call.
func (o *Observer) RecordStore(operation string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		o.storeErrors.WithLabelValues(operation).Inc()
	}
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}
