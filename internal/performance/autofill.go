package performance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/internal/units"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// AutofillSource источник данных автозаполнения
type AutofillSource string

const (
	AutofillMetar AutofillSource = "METAR"
	AutofillOFP   AutofillSource = "OFP"
)

var (
	// ErrInvalidICAO код аэродрома не из четырех символов
	ErrInvalidICAO = errors.New("invalid ICAO")

	// ErrFlightPlanMetar сводку из плана полета не удалось разобрать,
	// вызывающий код может запросить METAR аэродрома прибытия
	ErrFlightPlanMetar = errors.New("flight plan METAR could not be parsed")
)

// WeightSource текущая полная масса самолета из симулятора
type WeightSource interface {
	TotalWeightPounds(ctx context.Context) (float64, error)
}

// FlightPlan данные плана полета, нужные для автозаполнения
type FlightPlan struct {
	ArrivingAirport string `json:"arrivingAirport"`
	ArrivingMetar   string `json:"arrivingMetar"`
}

// Autofiller заполняет форму из METAR и массы самолета.
// Поздний ответ источника перезаписывает поля, введенные пользователем после запроса.
type Autofiller struct {
	store  *Store
	source metar.Source
	weight WeightSource
	logger *utils.Logger
}

// NewAutofiller создает автозаполнение, weight может быть nil
func NewAutofiller(store *Store, source metar.Source, weight WeightSource, logger *utils.Logger) (*Autofiller, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("metar source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Autofiller{
		store:  store,
		source: source,
		weight: weight,
		logger: logger.WithField("component", "autofill"),
	}, nil
}

// FromMetar получает сводку для аэродрома и заполняет форму.
// При ошибке источника состояние не меняется, ошибка имеет тип *metar.Notice.
func (a *Autofiller) FromMetar(ctx context.Context, icao string) (*metar.Record, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if !metar.IsValidICAO(icao) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidICAO, icao)
	}

	rec, err := a.source.Fetch(ctx, icao)
	if err != nil {
		a.logger.WithFields(map[string]interface{}{
			"icao":   icao,
			"source": a.source.Name(),
			"error":  err.Error(),
		}).Warn("METAR autofill failed")
		return nil, err
	}

	a.apply(ctx, rec, "")
	return rec, nil
}

// FromFlightPlan разбирает METAR прибытия из плана полета и заполняет форму.
// ICAO формы всегда становится аэродромом прибытия.
func (a *Autofiller) FromFlightPlan(ctx context.Context, plan FlightPlan) (*metar.Record, error) {
	arrival := strings.ToUpper(strings.TrimSpace(plan.ArrivingAirport))

	rec, err := metar.Parse(plan.ArrivingMetar)
	if err != nil {
		a.store.SetValues(func(st *LandingState) { st.ICAO = arrival })
		a.logger.WithFields(map[string]interface{}{
			"icao":  arrival,
			"error": err.Error(),
		}).Warn("Flight plan METAR could not be parsed")
		return nil, metar.NewNotice(arrival, fmt.Errorf("%w: %w", ErrFlightPlanMetar, err))
	}

	a.apply(ctx, rec, arrival)
	return rec, nil
}

// apply записывает массу и поля сводки одним изменением
func (a *Autofiller) apply(ctx context.Context, rec *metar.Record, icao string) {
	weight, haveWeight := a.currentWeight(ctx)

	a.store.SetValues(func(st *LandingState) {
		if haveWeight {
			st.Weight = floatPtr(weight)
		}
		applyMetar(st, rec)
		if icao != "" {
			st.ICAO = icao
		}
	})
}

func (a *Autofiller) currentWeight(ctx context.Context) (float64, bool) {
	if a.weight == nil {
		return 0, false
	}

	lb, err := a.weight.TotalWeightPounds(ctx)
	if err != nil {
		a.logger.WithField("error", err.Error()).Warn("Failed to read total weight")
		return 0, false
	}

	return math.Round(units.PoundToKilogram(lb)), true
}
