package repository

import (
	"context"
	"time"

	"github.com/flybeeper/efb-backend/internal/models"
	"github.com/flybeeper/efb-backend/internal/settings"
)

// SettingsRepository интерфейс постоянного хранилища настроек
type SettingsRepository interface {
	settings.Store

	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// HistoryRepository интерфейс каталога отказов и истории расчетов
type HistoryRepository interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Каталог отказов
	LoadFailures(ctx context.Context) ([]models.Failure, error)

	// История расчетов посадки
	SaveLandingBatch(ctx context.Context, records []*models.LandingCalculation) error
	RecentLandings(ctx context.Context, limit int) ([]*models.LandingCalculation, error)

	// Обслуживание
	CleanupOldLandings(ctx context.Context, olderThan time.Duration) error
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// Ensure implementations
var _ SettingsRepository = (*RedisRepository)(nil)
var _ HistoryRepository = (*MySQLRepository)(nil)
