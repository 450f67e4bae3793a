package metar

import (
	"context"
	"strings"
	"time"

	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// SimMetar ответ симулятора на запрос GET_METAR_BY_IDENT
type SimMetar struct {
	ICAO        string `json:"icao"`
	MetarString string `json:"metarString"`
}

// SimRequester запрашивает сводку у симулятора
type SimRequester interface {
	RequestMetar(ctx context.Context, icao string) (*SimMetar, error)
}

// SimSource сводки METAR из погоды симулятора
type SimSource struct {
	sim    SimRequester
	logger *utils.Logger
}

// NewSimSource создает источник METAR симулятора
func NewSimSource(sim SimRequester, logger *utils.Logger) *SimSource {
	return &SimSource{
		sim:    sim,
		logger: logger.WithField("component", "metar_sim"),
	}
}

// Name возвращает имя источника
func (s *SimSource) Name() string {
	return SourceMSFS
}

// Fetch запрашивает сводку по коду аэродрома
func (s *SimSource) Fetch(ctx context.Context, icao string) (*Record, error) {
	start := time.Now()
	defer func() {
		metrics.MetarFetchDuration.WithLabelValues(SourceMSFS).Observe(time.Since(start).Seconds())
	}()

	requested := strings.ToUpper(icao)

	resp, err := s.sim.RequestMetar(ctx, requested)
	if err != nil {
		metrics.MetarFetches.WithLabelValues(SourceMSFS, "error").Inc()
		s.logger.WithField("icao", requested).WithError(err).Warn("Simulator METAR request failed")
		return nil, NewNotice(requested, err)
	}

	// Симулятор возвращает ближайшую станцию, если запрошенной нет
	if resp == nil || resp.ICAO != requested {
		metrics.MetarFetches.WithLabelValues(SourceMSFS, "no_metar").Inc()
		returned := ""
		if resp != nil {
			returned = resp.ICAO
		}
		s.logger.WithFields(map[string]interface{}{
			"icao":     requested,
			"returned": returned,
		}).Info("Simulator returned METAR for a different station")
		return nil, NewNotice(requested, ErrNoMetar)
	}

	rec, err := Parse(resp.MetarString)
	if err != nil {
		metrics.MetarFetches.WithLabelValues(SourceMSFS, "parse_error").Inc()
		return nil, NewNotice(requested, err)
	}

	metrics.MetarFetches.WithLabelValues(SourceMSFS, "ok").Inc()
	return rec, nil
}
