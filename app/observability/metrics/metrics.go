package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	BidsPlacedTotal              metric.Int64Counter
	AuctionsClosedTotal          metric.Int64Counter
	NotificationsDispatchedTotal metric.Int64Counter
	PushSendFailuresTotal        metric.Int64Counter
	MirrorWriteFailuresTotal     metric.Int64Counter
	SweepDurationSeconds         metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments exactly once,
// using the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("bidmaster")
		var err error
		m := &AppMetrics{}

		m.BidsPlacedTotal, err = meter.Int64Counter(
			"bids_placed_total",
			metric.WithDescription("Total number of accepted bids"),
			metric.WithUnit("{bid}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create bids_placed_total: %v", err)
		}

		m.AuctionsClosedTotal, err = meter.Int64Counter(
			"auctions_closed_total",
			metric.WithDescription("Total number of auctions transitioned to sold"),
			metric.WithUnit("{auction}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auctions_closed_total: %v", err)
		}

		m.NotificationsDispatchedTotal, err = meter.Int64Counter(
			"notifications_dispatched_total",
			metric.WithDescription("Total number of notification dispatch attempts"),
			metric.WithUnit("{notification}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create notifications_dispatched_total: %v", err)
		}

		m.PushSendFailuresTotal, err = meter.Int64Counter(
			"push_send_failures_total",
			metric.WithDescription("Total number of failed push transport calls"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create push_send_failures_total: %v", err)
		}

		m.MirrorWriteFailuresTotal, err = meter.Int64Counter(
			"mirror_write_failures_total",
			metric.WithDescription("Total number of swallowed mirror store write failures"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create mirror_write_failures_total: %v", err)
		}

		m.SweepDurationSeconds, err = meter.Float64Histogram(
			"sweep_duration_seconds",
			metric.WithDescription("Duration of auction-close sweep runs in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create sweep_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
