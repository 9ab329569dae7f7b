/*
Package metrics provides the OpenTelemetry-based metrics exporter for the
coordination engine. It configures Prometheus-compatible metrics
collection for monitoring sync-point, dispatch, retry and monitor
activity.
*/
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds every counter/histogram the engine emits. Unlike the
// package-global pattern, one Metrics value is built per process and
// attached to components through their SetMetrics methods.
type Metrics struct {
	meter metric.Meter

	DispatchOutcomesTotal   metric.Int64Counter
	SyncPropagationsTotal   metric.Int64Counter
	TaskRetryAttemptsTotal  metric.Int64Counter
	ActiveMonitorsGauge     metric.Int64UpDownCounter
	WebhookRequestDuration  metric.Float64Histogram
}

// New builds a Metrics instance bridged onto the given Prometheus
// registerer, and returns a shutdown function for the underlying
// OpenTelemetry meter provider.
func New(registerer prometheus.Registerer) (*Metrics, func(context.Context) error, error) {
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registerer))
	if err != nil {
		return nil, nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("syncbird")

	m := &Metrics{meter: meter}

	m.DispatchOutcomesTotal, err = meter.Int64Counter("syncbird_dispatch_outcomes_total",
		metric.WithDescription("Count of handler dispatch outcomes by event and result"))
	if err != nil {
		return nil, nil, err
	}
	m.SyncPropagationsTotal, err = meter.Int64Counter("syncbird_sync_propagations_total",
		metric.WithDescription("Count of permission propagations computed by the sync-point engine"))
	if err != nil {
		return nil, nil, err
	}
	m.TaskRetryAttemptsTotal, err = meter.Int64Counter("syncbird_task_retry_attempts_total",
		metric.WithDescription("Count of task runner retry attempts"))
	if err != nil {
		return nil, nil, err
	}
	m.ActiveMonitorsGauge, err = meter.Int64UpDownCounter("syncbird_active_monitors",
		metric.WithDescription("Number of active filesystem monitors"))
	if err != nil {
		return nil, nil, err
	}
	m.WebhookRequestDuration, err = meter.Float64Histogram("syncbird_webhook_request_duration_seconds",
		metric.WithDescription("Webhook request handling duration in seconds"))
	if err != nil {
		return nil, nil, err
	}

	return m, provider.Shutdown, nil
}
