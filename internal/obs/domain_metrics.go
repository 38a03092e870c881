package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// AnalysisTotal counts shipping analyses by final state.
	AnalysisTotal *prometheus.CounterVec
	// AnalysisDuration records analysis latency in milliseconds.
	AnalysisDuration *prometheus.HistogramVec
	// AnalysisStaleDiscarded counts results dropped because a newer request superseded them.
	AnalysisStaleDiscarded prometheus.Counter
	// AnalysisSplitShipping counts analyses that required split shipping.
	AnalysisSplitShipping prometheus.Counter
	// CouponEvaluations counts coupon evaluation outcomes.
	CouponEvaluations *prometheus.CounterVec
	// CatalogWarmTotal counts catalog cache warm-up runs by outcome.
	CatalogWarmTotal *prometheus.CounterVec
	// DBQueryDuration records Postgres statement latency.
	DBQueryDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		AnalysisTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Count of shipping analyses by resulting state.",
		}, []string{"state"})
		AnalysisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_ms",
			Help:      "Latency of shipping analyses in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"state"})
		AnalysisStaleDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_stale_discarded_total",
			Help:      "Number of analysis results discarded because a newer request superseded them.",
		})
		AnalysisSplitShipping = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_split_shipping_total",
			Help:      "Number of analyses whose cart required split shipping.",
		})
		CouponEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluations_total",
			Help:      "Count of coupon evaluations by outcome.",
		}, []string{"result"})
		CatalogWarmTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_warm_total",
			Help:      "Count of catalog cache warm-up runs by outcome.",
		}, []string{"result"})
		DBQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Latency of Postgres statements in milliseconds by SQL verb.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"operation"})

		AnalysisTotal = register(reg, AnalysisTotal)
		AnalysisDuration = register(reg, AnalysisDuration)
		AnalysisStaleDiscarded = register(reg, AnalysisStaleDiscarded)
		AnalysisSplitShipping = register(reg, AnalysisSplitShipping)
		CouponEvaluations = register(reg, CouponEvaluations)
		CatalogWarmTotal = register(reg, CatalogWarmTotal)
		DBQueryDuration = register(reg, DBQueryDuration)
	})
}

// ObserveAnalysis records an analysis outcome. It is a no-op until metrics are registered.
func ObserveAnalysis(state string, took time.Duration, split bool) {
	if AnalysisTotal != nil {
		AnalysisTotal.WithLabelValues(state).Inc()
	}
	if AnalysisDuration != nil {
		AnalysisDuration.WithLabelValues(state).Observe(DurationMillis(took))
	}
	if split && AnalysisSplitShipping != nil {
		AnalysisSplitShipping.Inc()
	}
}

// CountStaleAnalysis records a discarded out-of-order analysis result.
func CountStaleAnalysis() {
	if AnalysisStaleDiscarded != nil {
		AnalysisStaleDiscarded.Inc()
	}
}

// CountCoupon records a coupon evaluation outcome.
func CountCoupon(result string) {
	if CouponEvaluations != nil {
		CouponEvaluations.WithLabelValues(result).Inc()
	}
}

// CountCatalogWarm records a catalog warm-up outcome.
func CountCatalogWarm(result string) {
	if CatalogWarmTotal != nil {
		CatalogWarmTotal.WithLabelValues(result).Inc()
	}
}

// ObserveQuery records one Postgres statement.
func ObserveQuery(operation string, took time.Duration) {
	if DBQueryDuration != nil {
		DBQueryDuration.WithLabelValues(operation).Observe(DurationMillis(took))
	}
}
