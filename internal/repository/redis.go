package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/internal/settings"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/redis/go-redis/v9"
)

// SettingChange событие изменения настройки в канале Pub/Sub
type SettingChange struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RedisRepository хранилище настроек EFB в Redis.
// Значения лежат в хеше, изменения рассылаются через Pub/Sub,
// поэтому подписчики всех экземпляров сервиса видят одни и те же события.
type RedisRepository struct {
	client   *redis.Client
	logger   *utils.Logger
	config   *config.RedisConfig
	registry *settings.Registry

	listenOnce sync.Once
	listenErr  error
	pubsub     *redis.PubSub
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewRedisRepository создает новый Redis репозиторий
func NewRedisRepository(cfg *config.RedisConfig, logger *utils.Logger) (*RedisRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	// Парсим Redis URL
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Дополнительные настройки
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ConnMaxIdleTime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	ctx, cancel := context.WithCancel(context.Background())

	return &RedisRepository{
		client:   redis.NewClient(opt),
		logger:   logger.WithField("component", "redis_settings"),
		config:   cfg,
		registry: settings.NewRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Ping проверяет соединение с Redis
func (r *RedisRepository) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		metrics.RedisConnectionStatus.Set(0)
		return fmt.Errorf("redis ping failed: %w", err)
	}
	metrics.RedisConnectionStatus.Set(1)
	return nil
}

// Close останавливает слушателя изменений и закрывает соединение
func (r *RedisRepository) Close() error {
	r.cancel()
	if r.pubsub != nil {
		r.pubsub.Close()
	}
	r.wg.Wait()
	return r.client.Close()
}

// GetClient возвращает Redis клиент для внешнего использования
func (r *RedisRepository) GetClient() *redis.Client {
	return r.client
}

// Get возвращает значение настройки или значение по умолчанию
func (r *RedisRepository) Get(ctx context.Context, key, defaultValue string) (string, error) {
	start := time.Now()
	defer observe("get_setting", start)

	value, err := r.client.HGet(ctx, r.config.SettingsKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return defaultValue, nil
	}
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_setting").Inc()
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set сохраняет значение и публикует событие изменения
func (r *RedisRepository) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("setting key cannot be empty")
	}

	start := time.Now()
	defer observe("set_setting", start)

	event, err := json.Marshal(SettingChange{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to encode setting change: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.config.SettingsKey, key, value)
	pipe.Publish(ctx, r.config.ChangeChannel, event)

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("set_setting").Inc()
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"key":   key,
		"value": value,
	}).Debug("Setting saved")
	return nil
}

// All возвращает все сохраненные настройки
func (r *RedisRepository) All(ctx context.Context) (map[string]string, error) {
	start := time.Now()
	defer observe("get_all_settings", start)

	values, err := r.client.HGetAll(ctx, r.config.SettingsKey).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_all_settings").Inc()
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return values, nil
}

// GetAndSubscribe подписывает обработчик на изменения и сразу вызывает его с текущим значением.
// Подписка оформляется до чтения, чтобы не потерять изменение между ними.
func (r *RedisRepository) GetAndSubscribe(ctx context.Context, key string, h settings.Handler, defaultValue string) (func(), error) {
	if err := r.startListener(ctx); err != nil {
		return nil, err
	}

	unsubscribe := r.registry.Subscribe(key, h)

	value, err := r.Get(ctx, key, defaultValue)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	h(key, value)

	return unsubscribe, nil
}

// startListener подписывается на канал изменений один раз за время жизни репозитория
func (r *RedisRepository) startListener(ctx context.Context) error {
	r.listenOnce.Do(func() {
		pubsub := r.client.Subscribe(r.ctx, r.config.ChangeChannel)

		// Ждем подтверждения подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			metrics.RedisOperationErrors.WithLabelValues("subscribe").Inc()
			r.listenErr = fmt.Errorf("failed to subscribe to %s: %w", r.config.ChangeChannel, err)
			return
		}

		r.pubsub = pubsub
		r.wg.Add(1)
		go r.listen(pubsub.Channel())

		r.logger.WithField("channel", r.config.ChangeChannel).Info("Listening for setting changes")
	})
	return r.listenErr
}

func (r *RedisRepository) listen(ch <-chan *redis.Message) {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var change SettingChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				r.logger.WithFields(map[string]interface{}{
					"channel": msg.Channel,
					"error":   err,
				}).Warn("Invalid setting change event")
				continue
			}

			r.registry.Notify(change.Key, change.Value)
		}
	}
}

// GetStats возвращает статистику хранилища
func (r *RedisRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	count, err := r.client.HLen(ctx, r.config.SettingsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count settings: %w", err)
	}

	poolStats := r.client.PoolStats()
	return map[string]interface{}{
		"settings_count": count,
		"subscribers":    r.registry.Len(),
		"total_conns":    poolStats.TotalConns,
		"idle_conns":     poolStats.IdleConns,
	}, nil
}

func observe(operation string, start time.Time) {
	metrics.RedisOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
