package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/failures"
	"github.com/flybeeper/efb-backend/internal/handler"
	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/internal/models"
	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/flybeeper/efb-backend/internal/repository"
	"github.com/flybeeper/efb-backend/internal/service"
	"github.com/flybeeper/efb-backend/internal/settings"
	"github.com/flybeeper/efb-backend/internal/simbridge"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var (
	// Version будет установлен при сборке через ldflags
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализируем логирование
	logger := utils.NewLogger(config.LogLevel(), config.LogFormat())
	logger.SetFileOutput(config.LogFile(), 100, 5)
	utils.SetDefaultLogger(logger)
	logger.WithField("version", Version).Info("Starting EFB Backend")
	metrics.SetAppInfo(Version, Commit, BuildTime)

	// Создаем контекст приложения, отменяется по сигналу
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis: хранилище настроек EFB
	redisRepo, err := repository.NewRedisRepository(&cfg.Redis, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize Redis repository")
	}
	defer redisRepo.Close()

	if err := redisRepo.Ping(ctx); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to Redis")
	}
	logger.Info("Connected to Redis")

	// MQTT мост к симулятору
	bridge, err := simbridge.NewClient(&cfg.MQTT, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize simulator bridge")
	}
	defer bridge.Disconnect()

	if err := bridge.Connect(); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to MQTT broker")
	}
	logger.Info("Connected to simulator bridge")

	// MySQL: каталог отказов и история расчетов (опционально)
	var mysqlRepo *repository.MySQLRepository
	if cfg.MySQL.DSN != "" {
		mysqlRepo, err = repository.NewMySQLRepository(&cfg.MySQL, logger)
		if err != nil {
			logger.WithField("error", err).Warn("Failed to initialize MySQL repository")
		} else {
			defer mysqlRepo.Close()
			if err := mysqlRepo.Ping(ctx); err != nil {
				logger.WithField("error", err).Warn("Failed to connect to MySQL")
				mysqlRepo = nil
			} else {
				logger.Info("Connected to MySQL")
			}
		}
	}

	// Синхронизация настроек EFB с переменными симулятора
	if cfg.Features.EnableSettingsSync {
		syncHandle, err := settings.Sync(ctx, redisRepo, bridge, settings.Table, logger)
		if err != nil {
			logger.WithField("error", err).Warn("Some settings are not synchronized")
		}
		if syncHandle != nil {
			defer syncHandle.Close()
		}
	}

	// Источник METAR по конфигурации
	source, err := metar.NewSource(&cfg.Metar, bridge, &http.Client{Timeout: cfg.Metar.RequestTimeout}, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize METAR source")
	}

	// Расчет посадочной дистанции
	landing, err := performance.NewStore(performance.NewCalculator(), logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize landing store")
	}
	autofill, err := performance.NewAutofiller(landing, source, bridge, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize autofill")
	}

	// Отказы: каталог из MySQL или встроенный
	orchestrator, err := failures.NewOrchestrator(loadCatalog(ctx, mysqlRepo, logger), bridge, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize failures orchestrator")
	}
	orchestrator.SetAckTimeout(cfg.Performance.FailureAckTimeout)
	unsubscribeFailures := bridge.OnValue(func(u simbridge.ValueUpdate) {
		orchestrator.HandleValue(u.Name, u.Value)
	})
	defer unsubscribeFailures()

	deps := handler.Dependencies{
		Landing:  landing,
		Autofill: autofill,
		Metar:    source,
		Settings: redisRepo,
		Failures: orchestrator,
	}

	// История расчетов пишется батчами
	var historyWriter *service.BatchWriter
	if cfg.Features.EnableHistory && mysqlRepo != nil {
		historyWriter, err = service.NewBatchWriter(mysqlRepo, logger, &service.BatchConfig{
			BatchSize:     cfg.Performance.HistoryBatchSize,
			FlushInterval: cfg.Performance.HistoryFlushInterval,
			ChannelBuffer: cfg.Performance.HistoryChannelBuffer,
			MaxRetries:    3,
			RetryDelay:    100 * time.Millisecond,
			StopTimeout:   5 * time.Second,
		})
		if err != nil {
			logger.WithField("error", err).Fatal("Failed to initialize history writer")
		}
		deps.History = historyWriter
		deps.Landings = mysqlRepo
	}

	checks := map[string]handler.HealthCheck{
		"redis": redisRepo.Ping,
		"simulator": func(context.Context) error {
			if !bridge.IsConnected() {
				return simbridge.ErrNotConnected
			}
			return nil
		},
	}
	if mysqlRepo != nil {
		checks["mysql"] = mysqlRepo.Ping
	}

	server, err := handler.NewServer(cfg, deps, checks, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to create HTTP server")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	if mysqlRepo != nil {
		g.Go(func() error {
			runHistoryCleanup(gctx, mysqlRepo, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithField("error", err).Error("HTTP server shutdown error")
		}
		if historyWriter != nil {
			historyWriter.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithField("error", err).Error("Server stopped with error")
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}

// loadCatalog загружает каталог отказов из MySQL, при ошибке использует встроенный
func loadCatalog(ctx context.Context, repo *repository.MySQLRepository, logger *utils.Logger) *failures.Catalog {
	var list []models.Failure
	if repo != nil {
		loaded, err := repo.LoadFailures(ctx)
		if err != nil {
			logger.WithField("error", err).Warn("Failed to load failures from MySQL")
		} else if len(loaded) > 0 {
			list = loaded
		}
	}
	if list == nil {
		list = failures.DefaultCatalog()
	}

	catalog, err := failures.NewCatalog(list)
	if err != nil {
		logger.WithField("error", err).Warn("Invalid failures catalog, using built-in")
		catalog, _ = failures.NewCatalog(failures.DefaultCatalog())
	}

	logger.WithField("count", catalog.Len()).Info("Loaded failures catalog")
	return catalog
}

// runHistoryCleanup удаляет расчеты старше 30 дней раз в сутки
func runHistoryCleanup(ctx context.Context, repo *repository.MySQLRepository, logger *utils.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.CleanupOldLandings(ctx, 30*24*time.Hour); err != nil {
				logger.WithField("error", err).Warn("Failed to cleanup landing history")
			}
		}
	}
}
