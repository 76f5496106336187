package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests      *prometheus.CounterVec
	CounterSetsCompleted prometheus.Counter
	CounterXPGranted     prometheus.Counter
	CounterLevelUps      prometheus.Counter
	CounterCreditsUsed   prometheus.Counter
	CounterCASConflicts  prometheus.Counter
	CounterGenerations   *prometheus.CounterVec
	CounterPurchases     *prometheus.CounterVec

	// gauges
	GaugeSubscriptions prometheus.Gauge

	// histograms
	HistRequestDuration    prometheus.Histogram
	HistGenerationDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("fitness", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("fitness", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming API requests",
	}, []string{"method", "status"})
	counterSetsCompleted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sets_completed",
		Help:      "The total number of newly completed sets",
	})
	counterXPGranted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "xp_granted",
		Help:      "The total amount of XP granted",
	})
	counterLevelUps := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "level_ups",
		Help:      "The total number of levels gained",
	})
	counterCreditsUsed := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "credits_used",
		Help:      "The total number of credits debited",
	})
	counterCASConflicts := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "profile_write_conflicts",
		Help:      "Conditional profile writes that lost against a concurrent writer",
	})
	counterGenerations := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "program_generations",
		Help:      "AI program generations by outcome",
	}, []string{"outcome"})
	counterPurchases := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "purchases",
		Help:      "Completed purchases by product",
	}, []string{"product"})

	gaugeSubscriptions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "profile_subscriptions",
		Help:      "Currently open profile subscriptions",
	})

	histReqDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01,
				0.05, 0.1, 0.5, 1, 5, 10, 60,
			},
			Name: "request_duration_seconds",
			Help: "Total duration of API requests in seconds",
		},
	)
	histGenerationDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			Name:      "generation_duration_seconds",
			Help:      "Duration of AI text generation calls in seconds",
		},
	)

	return &Manager{
		CounterRequests:        counterRequests,
		CounterSetsCompleted:   counterSetsCompleted,
		CounterXPGranted:       counterXPGranted,
		CounterLevelUps:        counterLevelUps,
		CounterCreditsUsed:     counterCreditsUsed,
		CounterCASConflicts:    counterCASConflicts,
		CounterGenerations:     counterGenerations,
		CounterPurchases:       counterPurchases,
		GaugeSubscriptions:     gaugeSubscriptions,
		HistRequestDuration:    histReqDuration,
		HistGenerationDuration: histGenerationDuration,
	}
}
