package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"spellforge/logging"
)

// Collector exports call metrics to Prometheus.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	imagesTotal     *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec

	log *logging.Logger
}

// NewCollector registers the image metrics under namespace with reg. A nil
// reg uses prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *logging.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_requests_total",
				Help:      "Total number of image provider calls",
			},
			[]string{"provider", "operation", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_request_duration_seconds",
				Help:      "Image provider call duration in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "operation"},
		),
		imagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_generated_total",
				Help:      "Total number of images returned by providers",
			},
			[]string{"provider", "operation"},
		),
		inFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "image_requests_in_flight",
				Help:      "Image provider calls currently running",
			},
			[]string{"provider"},
		),
		log: logging.OrNop(logger).Named("metrics"),
	}
}

// Record implements Recorder.
func (c *Collector) Record(rec CallRecord) {
	c.requestsTotal.WithLabelValues(rec.Provider, rec.Operation, rec.Status).Inc()
	c.requestDuration.WithLabelValues(rec.Provider, rec.Operation).Observe(rec.Duration.Seconds())
	if rec.Images > 0 {
		c.imagesTotal.WithLabelValues(rec.Provider, rec.Operation).Add(float64(rec.Images))
	}

	c.log.Debug("image call recorded",
		zap.String("call_id", rec.ID),
		zap.String("provider", rec.Provider),
		zap.String("operation", rec.Operation),
		zap.String("status", rec.Status),
		zap.Duration("duration", rec.Duration),
	)
}

// track marks a call as running until the returned func is called.
func (c *Collector) track(provider string) func() {
	g := c.inFlight.WithLabelValues(provider)
	g.Inc()
	return g.Dec
}

var _ Recorder = (*Collector)(nil)
