package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/internal/models"
	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// LandingSaver хранилище истории расчетов
type LandingSaver interface {
	SaveLandingBatch(ctx context.Context, records []*models.LandingCalculation) error
}

// BatchWriter асинхронный writer для батчевого сохранения истории расчетов в MySQL
type BatchWriter struct {
	repo   LandingSaver
	logger *utils.Logger
	config *BatchConfig

	landingChan chan *models.LandingCalculation
	flushChan   chan chan error

	// Буфер принадлежит worker'у
	buffer []*models.LandingCalculation

	// Контроль жизненного цикла
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Метрики
	metrics *BatchMetrics
}

// BatchConfig конфигурация батчера
type BatchConfig struct {
	BatchSize     int           `json:"batch_size"`     // Размер батча
	FlushInterval time.Duration `json:"flush_interval"` // Интервал принудительного flush
	ChannelBuffer int           `json:"channel_buffer"` // Размер буфера канала
	MaxRetries    int           `json:"max_retries"`    // Максимум повторов
	RetryDelay    time.Duration `json:"retry_delay"`    // Задержка между повторами
	StopTimeout   time.Duration `json:"stop_timeout"`   // Время на финальный flush
}

// BatchMetrics метрики производительности
type BatchMetrics struct {
	mu sync.RWMutex

	Queued    int64 `json:"queued"`
	Batches   int64 `json:"batches"`
	Processed int64 `json:"processed"`
	Errors    int64 `json:"errors"`
	Dropped   int64 `json:"dropped"`

	QueueDepth        int64         `json:"queue_depth"`
	LastFlushDuration time.Duration `json:"last_flush_duration"`
	LastBatchSize     int           `json:"last_batch_size"`
}

// DefaultBatchConfig возвращает конфигурацию по умолчанию
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:     50,                     // 50 расчетов в батче
		FlushInterval: 5 * time.Second,        // Flush каждые 5 секунд
		ChannelBuffer: 1000,                   // Буфер канала
		MaxRetries:    3,                      // 3 попытки при ошибках
		RetryDelay:    100 * time.Millisecond, // 100ms между попытками
		StopTimeout:   5 * time.Second,
	}
}

// NewBatchWriter создает новый BatchWriter и запускает worker
func NewBatchWriter(repo LandingSaver, logger *utils.Logger, config *BatchConfig) (*BatchWriter, error) {
	if repo == nil {
		return nil, fmt.Errorf("landing repository cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if config == nil {
		config = DefaultBatchConfig()
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if config.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		repo:        repo,
		logger:      logger.WithField("component", "history_writer"),
		config:      config,
		ctx:         ctx,
		cancel:      cancel,
		landingChan: make(chan *models.LandingCalculation, config.ChannelBuffer),
		flushChan:   make(chan chan error),
		buffer:      make([]*models.LandingCalculation, 0, config.BatchSize),
		metrics:     &BatchMetrics{},
	}

	bw.wg.Add(1)
	go bw.worker()

	bw.logger.WithField("batch_size", config.BatchSize).
		WithField("flush_interval", config.FlushInterval).
		Info("Started landing history batch writer")

	return bw, nil
}

// NewLandingRecord собирает запись истории из входных данных и результата расчета
func NewLandingRecord(icao string, in performance.Input, r performance.Result, at time.Time) *models.LandingCalculation {
	return &models.LandingCalculation{
		ICAO:                icao,
		Weight:              in.Weight,
		Flaps:               int(in.Flaps),
		RunwayCondition:     int(in.RunwayCondition),
		ApproachSpeed:       in.ApproachSpeed,
		WindDirection:       in.WindDirection,
		WindMagnitude:       in.WindMagnitude,
		RunwayHeading:       in.RunwayHeading,
		ReverseThrust:       in.ReverseThrust,
		Altitude:            in.Altitude,
		Temperature:         in.Temperature,
		Slope:               in.Slope,
		OverweightProcedure: in.OverweightProcedure,
		Pressure:            in.Pressure,
		Autoland:            in.Autoland,
		RunwayLength:        r.DisplayedRunwayLength,
		MaxDistance:         r.MaxAutobrakeLandingDist,
		MediumDistance:      r.MediumAutobrakeLandingDist,
		LowDistance:         r.LowAutobrakeLandingDist,
		ExceedsRunway:       r.MaxExceedsRunway || r.MediumExceedsRunway || r.LowExceedsRunway,
		CreatedAt:           at.UTC(),
	}
}

// Record ставит расчет в очередь на сохранение
func (bw *BatchWriter) Record(icao string, in performance.Input, r performance.Result) error {
	return bw.Queue(NewLandingRecord(icao, in, r, time.Now()))
}

// Queue добавляет запись в очередь для сохранения
func (bw *BatchWriter) Queue(rec *models.LandingCalculation) error {
	if rec == nil {
		return fmt.Errorf("landing record cannot be nil")
	}

	select {
	case <-bw.ctx.Done():
		return fmt.Errorf("batch writer is shutting down")
	default:
	}

	select {
	case bw.landingChan <- rec:
		depth := len(bw.landingChan)
		metrics.HistoryQueueSize.Set(float64(depth))
		bw.metrics.mu.Lock()
		bw.metrics.Queued++
		bw.metrics.QueueDepth = int64(depth)
		bw.metrics.mu.Unlock()
		return nil
	default:
		bw.metrics.mu.Lock()
		bw.metrics.Dropped++
		bw.metrics.mu.Unlock()
		metrics.HistoryWriteErrors.Inc()
		return fmt.Errorf("landing history queue is full")
	}
}

// worker накапливает записи и сохраняет их батчами
func (bw *BatchWriter) worker() {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-bw.landingChan:
			bw.buffer = append(bw.buffer, rec)

			// Флашим при достижении размера батча
			if len(bw.buffer) >= bw.config.BatchSize {
				bw.flush(bw.ctx)
			}

		case done := <-bw.flushChan:
			bw.drain()
			done <- bw.flush(bw.ctx)

		case <-ticker.C:
			// Периодический flush даже если батч не полный
			bw.flush(bw.ctx)

		case <-bw.ctx.Done():
			// Финальный flush при завершении, контекст worker'а уже отменен
			bw.drain()
			ctx, cancel := context.WithTimeout(context.Background(), bw.config.StopTimeout)
			bw.flush(ctx)
			cancel()
			return
		}
	}
}

// drain забирает из канала все, что уже поставлено в очередь
func (bw *BatchWriter) drain() {
	for {
		select {
		case rec := <-bw.landingChan:
			bw.buffer = append(bw.buffer, rec)
		default:
			return
		}
	}
}

// flush сохраняет буфер в MySQL
func (bw *BatchWriter) flush(ctx context.Context) error {
	if len(bw.buffer) == 0 {
		return nil
	}

	start := time.Now()
	batch := make([]*models.LandingCalculation, len(bw.buffer))
	copy(batch, bw.buffer)
	bw.buffer = bw.buffer[:0] // Очищаем буфер

	// Выполняем с retry
	err := bw.retryOperation(ctx, func() error {
		return bw.repo.SaveLandingBatch(ctx, batch)
	})

	duration := time.Since(start)
	metrics.HistoryBatchSize.Observe(float64(len(batch)))
	metrics.HistoryBatchDuration.Observe(duration.Seconds())
	metrics.HistoryQueueSize.Set(float64(len(bw.landingChan)))

	bw.metrics.mu.Lock()
	if err != nil {
		bw.metrics.Errors += int64(len(batch))
		metrics.HistoryWriteErrors.Inc()
		bw.logger.WithField("batch_size", len(batch)).
			WithField("duration", duration).
			WithField("error", err).
			Error("Failed to flush landing history batch")
	} else {
		bw.metrics.Batches++
		bw.metrics.Processed += int64(len(batch))
		bw.logger.WithField("batch_size", len(batch)).
			WithField("duration", duration).
			Debug("Flushed landing history batch to MySQL")
	}
	bw.metrics.LastFlushDuration = duration
	bw.metrics.LastBatchSize = len(batch)
	bw.metrics.mu.Unlock()

	return err
}

// retryOperation выполняет операцию с повторами
func (bw *BatchWriter) retryOperation(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= bw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(bw.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		bw.logger.WithField("attempt", attempt+1).
			WithField("max_retries", bw.config.MaxRetries).
			WithField("error", lastErr).
			Warn("MySQL batch operation failed, retrying")
	}

	return fmt.Errorf("operation failed after %d retries: %w", bw.config.MaxRetries, lastErr)
}

// GetMetrics возвращает метрики производительности
func (bw *BatchWriter) GetMetrics() BatchMetrics {
	bw.metrics.mu.RLock()
	defer bw.metrics.mu.RUnlock()

	return BatchMetrics{
		Queued:            bw.metrics.Queued,
		Batches:           bw.metrics.Batches,
		Processed:         bw.metrics.Processed,
		Errors:            bw.metrics.Errors,
		Dropped:           bw.metrics.Dropped,
		QueueDepth:        int64(len(bw.landingChan)),
		LastFlushDuration: bw.metrics.LastFlushDuration,
		LastBatchSize:     bw.metrics.LastBatchSize,
	}
}

// Flush принудительно сохраняет все поставленные в очередь записи
func (bw *BatchWriter) Flush(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case bw.flushChan <- done:
	case <-bw.ctx.Done():
		return fmt.Errorf("batch writer is shutting down")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop останавливает BatchWriter и дожидается финального flush
func (bw *BatchWriter) Stop() error {
	bw.stopOnce.Do(func() {
		bw.logger.Info("Stopping landing history batch writer...")
		bw.cancel()
		bw.wg.Wait()
		bw.logger.Info("Landing history batch writer stopped")
	})
	return nil
}
