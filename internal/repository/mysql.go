package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/internal/models"
	"github.com/flybeeper/efb-backend/pkg/utils"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLRepository репозиторий каталога отказов и истории расчетов посадки
type MySQLRepository struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewMySQLRepository создает новый MySQL репозиторий
func NewMySQLRepository(cfg *config.MySQLConfig, logger *utils.Logger) (*MySQLRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Настройки connection pool
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	return NewMySQLRepositoryWithDB(db, logger), nil
}

// NewMySQLRepositoryWithDB создает репозиторий поверх открытого соединения
func NewMySQLRepositoryWithDB(db *sql.DB, logger *utils.Logger) *MySQLRepository {
	return &MySQLRepository{
		db:     db,
		logger: logger.WithField("component", "mysql"),
	}
}

// Ping проверяет соединение с MySQL
func (r *MySQLRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		metrics.MySQLConnectionStatus.Set(0)
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	metrics.MySQLConnectionStatus.Set(1)
	return nil
}

// Close закрывает соединение с MySQL
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

// LoadFailures загружает каталог отказов
func (r *MySQLRepository) LoadFailures(ctx context.Context) ([]models.Failure, error) {
	query := `
		SELECT identifier, ata, name
		FROM failure
		ORDER BY ata, identifier
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []models.Failure
	for rows.Next() {
		var f models.Failure
		if err := rows.Scan(&f.Identifier, &f.Ata, &f.Name); err != nil {
			r.logger.WithField("error", err).Warn("Failed to scan failure row")
			continue
		}
		if err := f.Validate(); err != nil {
			r.logger.WithField("identifier", f.Identifier).WithField("error", err).Warn("Skipping invalid failure")
			continue
		}
		failures = append(failures, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failure rows: %w", err)
	}

	return failures, nil
}

// SaveLandingBatch сохраняет батч расчетов посадки одним INSERT
func (r *MySQLRepository) SaveLandingBatch(ctx context.Context, records []*models.LandingCalculation) error {
	if len(records) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(records)*landingColumns)
	valid := 0
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			r.logger.WithField("icao", rec.ICAO).WithField("error", err).Warn("Invalid landing record, skipping")
			continue
		}

		args = append(args,
			rec.ICAO, rec.Weight, rec.Flaps, rec.RunwayCondition, rec.ApproachSpeed,
			rec.WindDirection, rec.WindMagnitude, rec.RunwayHeading, rec.ReverseThrust,
			rec.Altitude, rec.Temperature, rec.Slope, rec.OverweightProcedure, rec.Pressure,
			rec.Autoland, rec.RunwayLength, rec.MaxDistance, rec.MediumDistance, rec.LowDistance,
			rec.ExceedsRunway, rec.CreatedAt)
		valid++
	}

	if valid == 0 {
		r.logger.Warn("No valid landing records to save in batch")
		return nil
	}

	query := `
		INSERT INTO landing_calculation (
			icao, weight, flaps, runway_condition, approach_speed,
			wind_direction, wind_magnitude, runway_heading, reverse_thrust,
			altitude, temperature, slope, overweight_procedure, pressure,
			autoland, runway_length, max_distance, medium_distance, low_distance,
			exceeds_runway, created_at
		) VALUES ` + r.generatePlaceholders(valid, landingColumns)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to batch insert landing calculations: %w", err)
	}

	affected, _ := result.RowsAffected()
	r.logger.WithField("count", affected).Debug("Saved landing batch to MySQL")
	return nil
}

const landingColumns = 21

// RecentLandings возвращает последние расчеты, новые первыми
func (r *MySQLRepository) RecentLandings(ctx context.Context, limit int) ([]*models.LandingCalculation, error) {
	query := `
		SELECT
			id, icao, weight, flaps, runway_condition, approach_speed,
			wind_direction, wind_magnitude, runway_heading, reverse_thrust,
			altitude, temperature, slope, overweight_procedure, pressure,
			autoland, runway_length, max_distance, medium_distance, low_distance,
			exceeds_runway, created_at
		FROM landing_calculation
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query landing calculations: %w", err)
	}
	defer rows.Close()

	var records []*models.LandingCalculation
	for rows.Next() {
		rec := &models.LandingCalculation{}
		err := rows.Scan(
			&rec.ID, &rec.ICAO, &rec.Weight, &rec.Flaps, &rec.RunwayCondition, &rec.ApproachSpeed,
			&rec.WindDirection, &rec.WindMagnitude, &rec.RunwayHeading, &rec.ReverseThrust,
			&rec.Altitude, &rec.Temperature, &rec.Slope, &rec.OverweightProcedure, &rec.Pressure,
			&rec.Autoland, &rec.RunwayLength, &rec.MaxDistance, &rec.MediumDistance, &rec.LowDistance,
			&rec.ExceedsRunway, &rec.CreatedAt,
		)
		if err != nil {
			r.logger.WithField("error", err).Warn("Failed to scan landing row")
			continue
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating landing rows: %w", err)
	}

	return records, nil
}

// CleanupOldLandings удаляет старые расчеты
func (r *MySQLRepository) CleanupOldLandings(ctx context.Context, olderThan time.Duration) error {
	query := `DELETE FROM landing_calculation WHERE created_at < DATE_SUB(NOW(), INTERVAL ? HOUR)`

	result, err := r.db.ExecContext(ctx, query, int(olderThan.Hours()))
	if err != nil {
		return fmt.Errorf("failed to cleanup old landings: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected > 0 {
		r.logger.WithField("count", affected).WithField("older_than_hours", olderThan.Hours()).Info("Cleaned up old landing calculations")
	}

	return nil
}

// GetStats возвращает статистику MySQL
func (r *MySQLRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	queries := map[string]string{
		"failures_count": "SELECT COUNT(*) FROM failure",
		"landings_count": "SELECT COUNT(*) FROM landing_calculation WHERE created_at > DATE_SUB(NOW(), INTERVAL 24 HOUR)",
	}

	for key, query := range queries {
		var count int
		err := r.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			r.logger.WithField("key", key).WithField("error", err).Warn("Failed to get MySQL stat")
			stats[key] = 0
		} else {
			stats[key] = count
		}
	}

	// Статистика соединений
	dbStats := r.db.Stats()
	stats["open_connections"] = dbStats.OpenConnections
	stats["in_use"] = dbStats.InUse
	stats["idle"] = dbStats.Idle

	return stats, nil
}

// generatePlaceholders генерирует плейсхолдеры для batch INSERT
func (r *MySQLRepository) generatePlaceholders(count, fieldsPerRecord int) string {
	if count == 0 {
		return ""
	}

	singleRecord := "(" + strings.Repeat("?,", fieldsPerRecord-1) + "?)"

	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = singleRecord
	}

	return strings.Join(placeholders, ",")
}
