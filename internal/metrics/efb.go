package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LandingCalculations количество расчетов посадочной дистанции по результату
	LandingCalculations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efb_landing_calculations_total",
		Help: "Number of landing distance calculations by outcome",
	}, []string{"result"}) // ok, exceeds_runway, incomplete

	// MetarFetches количество запросов METAR по источнику и результату
	MetarFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efb_metar_fetches_total",
		Help: "Number of METAR fetches by source and result",
	}, []string{"source", "result"}) // result: ok, no_metar, parse_error, error, cache_hit

	// MetarFetchDuration длительность получения METAR
	MetarFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "efb_metar_fetch_duration_seconds",
		Help:    "Duration of METAR fetches in seconds",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"source"})

	// SettingsSyncWrites записи настроек в переменные симулятора
	SettingsSyncWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efb_settings_sync_writes_total",
		Help: "Number of settings propagated to simulator variables",
	}, []string{"status"}) // success, error, skipped

	// SettingsSyncSubscriptions активные подписки синхронизации настроек
	SettingsSyncSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "efb_settings_sync_subscriptions",
		Help: "Number of active settings sync subscriptions",
	})

	// FailureToggles активации и деактивации отказов
	FailureToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efb_failure_toggles_total",
		Help: "Number of failure activations and deactivations",
	}, []string{"action", "status"})

	// ActiveFailures количество активных отказов
	ActiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "efb_active_failures",
		Help: "Number of currently active failures",
	})
)
