package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	MySQL       MySQLConfig
	Metar       MetarConfig
	Performance PerformanceConfig
	Monitoring  MonitoringConfig
	Features    FeaturesConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RateLimit      float64
	RateLimitBurst int
	AllowedOrigins []string
	APIToken       string // пусто - изменяющие запросы без аутентификации
}

// RedisConfig конфигурация Redis (хранилище настроек EFB)
type RedisConfig struct {
	URL           string
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	SettingsKey   string
	ChangeChannel string
}

// MQTTConfig конфигурация MQTT моста к симулятору
type MQTTConfig struct {
	URL            string
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	OrderMatters   bool
	TopicPrefix    string
	RequestTimeout time.Duration
}

// MySQLConfig конфигурация MySQL (каталог отказов и история расчетов)
type MySQLConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// MetarConfig конфигурация источников METAR
type MetarConfig struct {
	Source         string // MSFS или имя провайдера API (VATSIM, PILOTEDGE, IVAO)
	APIBaseURL     string
	RequestTimeout time.Duration
	RateLimit      float64
	RateLimitBurst int
	CacheSize      int
	CacheTTL       time.Duration
}

// PerformanceConfig конфигурация производительности
type PerformanceConfig struct {
	HistoryBatchSize      int
	HistoryFlushInterval  time.Duration
	HistoryChannelBuffer  int
	WebSocketPingInterval time.Duration
	WebSocketPongTimeout  time.Duration
	FailureAckTimeout     time.Duration
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
}

// FeaturesConfig флаги функций
type FeaturesConfig struct {
	EnableHistory      bool
	EnableSettingsSync bool
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:        getEnv("SERVER_ADDRESS", ":8090"),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RateLimit:      getFloat("SERVER_RATE_LIMIT", 50),
			RateLimitBurst: getInt("SERVER_RATE_LIMIT_BURST", 100),
			AllowedOrigins: getList("SERVER_ALLOWED_ORIGINS", []string{"*"}),
			APIToken:       getEnv("EFB_API_TOKEN", ""),
		},
		Redis: RedisConfig{
			URL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getInt("REDIS_DB", 0),
			PoolSize:      getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getInt("REDIS_MIN_IDLE_CONNS", 2),
			SettingsKey:   getEnv("REDIS_SETTINGS_KEY", "efb:settings"),
			ChangeChannel: getEnv("REDIS_SETTINGS_CHANNEL", "efb:settings:changed"),
		},
		MQTT: MQTTConfig{
			URL:            getEnv("MQTT_URL", "tcp://localhost:1883"),
			ClientID:       getEnv("MQTT_CLIENT_ID", "efb-api"),
			Username:       getEnv("MQTT_USERNAME", ""),
			Password:       getEnv("MQTT_PASSWORD", ""),
			CleanSession:   getBool("MQTT_CLEAN_SESSION", true),
			OrderMatters:   getBool("MQTT_ORDER_MATTERS", true),
			TopicPrefix:    getEnv("MQTT_TOPIC_PREFIX", "efb/sim"),
			RequestTimeout: getDuration("MQTT_REQUEST_TIMEOUT", 5*time.Second),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", ""),
			MaxIdleConns: getInt("MYSQL_MAX_IDLE_CONNS", 5),
			MaxOpenConns: getInt("MYSQL_MAX_OPEN_CONNS", 20),
		},
		Metar: MetarConfig{
			Source:         getEnv("METAR_SOURCE", "MSFS"),
			APIBaseURL:     getEnv("METAR_API_URL", "https://api.flybywiresim.com"),
			RequestTimeout: getDuration("METAR_REQUEST_TIMEOUT", 5*time.Second),
			RateLimit:      getFloat("METAR_RATE_LIMIT", 2),
			RateLimitBurst: getInt("METAR_RATE_LIMIT_BURST", 5),
			CacheSize:      getInt("METAR_CACHE_SIZE", 256),
			CacheTTL:       getDuration("METAR_CACHE_TTL", 2*time.Minute),
		},
		Performance: PerformanceConfig{
			HistoryBatchSize:      getInt("HISTORY_BATCH_SIZE", 50),
			HistoryFlushInterval:  getDuration("HISTORY_FLUSH_INTERVAL", 5*time.Second),
			HistoryChannelBuffer:  getInt("HISTORY_CHANNEL_BUFFER", 1000),
			WebSocketPingInterval: getDuration("WEBSOCKET_PING_INTERVAL", 30*time.Second),
			WebSocketPongTimeout:  getDuration("WEBSOCKET_PONG_TIMEOUT", 60*time.Second),
			FailureAckTimeout:     getDuration("FAILURE_ACK_TIMEOUT", 10*time.Second),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
		Features: FeaturesConfig{
			EnableHistory:      getBool("ENABLE_HISTORY", true),
			EnableSettingsSync: getBool("ENABLE_SETTINGS_SYNC", true),
		},
	}

	// Валидация
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.MQTT.URL == "" {
		return fmt.Errorf("MQTT_URL is required")
	}

	if c.Metar.Source == "" {
		return fmt.Errorf("METAR_SOURCE is required")
	}

	if c.Metar.Source != "MSFS" && c.Metar.APIBaseURL == "" {
		return fmt.Errorf("METAR_API_URL is required for source %s", c.Metar.Source)
	}

	if c.Metar.RateLimit <= 0 {
		return fmt.Errorf("METAR_RATE_LIMIT must be positive")
	}

	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("SERVER_RATE_LIMIT must be positive")
	}

	if c.Performance.HistoryBatchSize <= 0 {
		return fmt.Errorf("HISTORY_BATCH_SIZE must be positive")
	}

	return nil
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}

// LogFile возвращает путь к файлу логов (пусто - только stdout)
func LogFile() string {
	return getEnv("LOG_FILE", "")
}

// IsProduction проверяет, запущено ли приложение в production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
