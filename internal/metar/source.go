package metar

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// SourceMSFS источник METAR из симулятора
const SourceMSFS = "MSFS"

// Source источник сводок METAR.
// Все ошибки возвращаются как *Notice, вызывающий код сохраняет прежнее состояние.
type Source interface {
	Name() string
	Fetch(ctx context.Context, icao string) (*Record, error)
}

// NewSource выбирает реализацию источника по конфигурации
func NewSource(cfg *config.MetarConfig, sim SimRequester, httpClient *http.Client, logger *utils.Logger) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("metar config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if strings.EqualFold(cfg.Source, SourceMSFS) {
		if sim == nil {
			return nil, fmt.Errorf("simulator requester is required for source %s", SourceMSFS)
		}
		return NewSimSource(sim, logger), nil
	}

	return NewAPISource(cfg, httpClient, logger)
}

// IsValidICAO проверяет формат кода аэродрома
func IsValidICAO(icao string) bool {
	return len(icao) == 4
}
