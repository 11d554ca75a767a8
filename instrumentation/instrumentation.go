package instrumentation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/jrsteele09/go-discord-oauth"

// Config holds instrumentation configuration
type Config struct {
	// Enabled selects the Prometheus backed meter provider; false uses a no-op provider.
	Enabled bool
}

// Instrumentation owns the meter provider and the metric instruments created from it.
type Instrumentation struct {
	meterProvider metric.MeterProvider
	metrics       *Metrics
	handler       http.Handler
	shutdown      func(context.Context) error
}

// New creates the instrumentation for the service.
func New(config Config) (*Instrumentation, error) {
	if !config.Enabled {
		return NewWithMeterProvider(noop.NewMeterProvider())
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	inst, err := NewWithMeterProvider(mp)
	if err != nil {
		return nil, err
	}
	inst.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	inst.shutdown = mp.Shutdown
	return inst, nil
}

// NewWithMeterProvider builds the instruments from an externally owned meter provider.
func NewWithMeterProvider(mp metric.MeterProvider) (*Instrumentation, error) {
	m, err := newMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	return &Instrumentation{
		meterProvider: mp,
		metrics:       m,
	}, nil
}

func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// Handler returns the Prometheus scrape handler, or nil when metrics are disabled.
func (i *Instrumentation) Handler() http.Handler {
	return i.handler
}

// Shutdown flushes and stops the meter provider.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	if i.shutdown == nil {
		return nil
	}
	return i.shutdown(ctx)
}
