package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	AuthRequestsTotal      metric.Int64Counter
	AuthFailuresTotal      metric.Int64Counter
	TokenRefreshesTotal    metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
	initErr    error
)

// InitAppMetrics wires the prometheus exporter into the global meter provider
// and creates the instruments. Safe to call more than once.
func InitAppMetrics() (*AppMetrics, error) {
	once.Do(func() {
		exporter, err := prometheus.New()
		if err != nil {
			initErr = fmt.Errorf("failed to create prometheus exporter: %w", err)
			return
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		otel.SetMeterProvider(mp)

		meter := mp.Meter("go-task-hub")
		m := &AppMetrics{}

		m.AuthRequestsTotal, err = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of auth operations completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			initErr = err
			return
		}

		m.AuthFailuresTotal, err = meter.Int64Counter(
			"auth_failures_total",
			metric.WithDescription("Total number of failed auth operations"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			initErr = err
			return
		}

		m.TokenRefreshesTotal, err = meter.Int64Counter(
			"token_refreshes_total",
			metric.WithDescription("Total number of refresh-token rotations"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			initErr = err
			return
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErr = err
			return
		}

		appMetrics = m
	})
	return appMetrics, initErr
}

// Get returns the globally initialized AppMetrics instance.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

// Handler returns the prometheus scrape endpoint handler.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
