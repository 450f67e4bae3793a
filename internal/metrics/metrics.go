package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "efb_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "efb_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "efb_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "efb_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "efb_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// Метрики моста к симулятору (MQTT)
	MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "efb_mqtt_connection_status",
			Help: "MQTT connection status (1 = connected, 0 = disconnected)",
		},
	)

	SimVarWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "efb_simvar_writes_total",
			Help: "Total number of simulator variable writes",
		},
		[]string{"status"}, // success, error
	)

	SimVarUpdatesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "efb_simvar_updates_received_total",
			Help: "Total number of simulator variable updates received from the bridge",
		},
	)

	MQTTParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "efb_mqtt_parse_errors_total",
			Help: "Total number of MQTT payloads that could not be decoded",
		},
	)

	// Redis метрики
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "efb_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "efb_redis_operation_errors_total",
			Help: "Total number of Redis operation errors",
		},
		[]string{"operation"},
	)

	// Метрики батчевой записи истории расчетов в MySQL
	HistoryBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "efb_history_batch_size",
			Help:    "Size of landing history batch inserts",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	HistoryBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "efb_history_batch_duration_seconds",
			Help:    "Duration of landing history batch inserts in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	HistoryQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "efb_history_queue_size",
			Help: "Current size of the landing history queue",
		},
	)

	HistoryWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "efb_history_write_errors_total",
			Help: "Total number of landing history write errors",
		},
	)

	// Общие метрики приложения
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "efb_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_time"},
	)

	// Статус подключений к хранилищам
	MySQLConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "efb_mysql_connection_status",
			Help: "MySQL connection status (1 = connected, 0 = disconnected)",
		},
	)

	RedisConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "efb_redis_connection_status",
			Help: "Redis connection status (1 = connected, 0 = disconnected)",
		},
	)
)

// SetAppInfo устанавливает информацию о версии приложения
func SetAppInfo(version, commit, buildTime string) {
	AppInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
