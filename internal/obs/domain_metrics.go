package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts building→complete transitions by outcome.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutDuration records the commit transaction latency in milliseconds.
	CheckoutDuration *prometheus.HistogramVec
	// PriceResolutionTotal counts unit price resolutions by outcome.
	PriceResolutionTotal *prometheus.CounterVec
	// StockDepletedTotal counts (hub, variant) counters that reached zero.
	StockDepletedTotal prometheus.Counter
	// StockInsufficientTotal counts decrements rejected for shortfall.
	StockInsufficientTotal prometheus.Counter
	// OverrideResetRows reports rows touched by the last override stock reset.
	OverrideResetRows prometheus.Gauge
	// ShopfrontCacheTotal counts shopfront cache lookups by result.
	ShopfrontCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout commit outcomes.",
		}, []string{"result"})
		CheckoutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Latency of the checkout commit transaction in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		PriceResolutionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolution_total",
			Help:      "Count of unit price resolutions by outcome.",
		}, []string{"result"})
		StockDepletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_depleted_total",
			Help:      "Number of stock counters that reached zero during commits.",
		})
		StockInsufficientTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_insufficient_total",
			Help:      "Number of decrements rejected because stock was insufficient.",
		})
		OverrideResetRows = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "override_reset_rows",
			Help:      "Rows touched by the most recent override stock reset.",
		})
		ShopfrontCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shopfront_cache_total",
			Help:      "Shopfront cache lookups by result.",
		}, []string{"result"})

		CheckoutTotal = register(reg, CheckoutTotal)
		CheckoutDuration = register(reg, CheckoutDuration)
		PriceResolutionTotal = register(reg, PriceResolutionTotal)
		StockDepletedTotal = register(reg, StockDepletedTotal)
		StockInsufficientTotal = register(reg, StockInsufficientTotal)
		OverrideResetRows = register(reg, OverrideResetRows)
		ShopfrontCacheTotal = register(reg, ShopfrontCacheTotal)
	})
}
