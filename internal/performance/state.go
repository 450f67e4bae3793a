package performance

import (
	"fmt"
	"math"
	"sync"

	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// LandingState состояние формы расчета посадки.
// Числовые поля nil пока не заданы или после ошибки разбора.
type LandingState struct {
	ICAO                string          `json:"icao"`
	WindDirection       *float64        `json:"windDirection"`
	WindMagnitude       *float64        `json:"windMagnitude"`
	Weight              *float64        `json:"weight"`
	RunwayHeading       *float64        `json:"runwayHeading"`
	ApproachSpeed       *float64        `json:"approachSpeed"`
	Flaps               FlapsConfig     `json:"flaps"`
	RunwayCondition     RunwayCondition `json:"runwayCondition"`
	ReverseThrust       bool            `json:"reverseThrust"`
	Autoland            bool            `json:"autoland"`
	Altitude            *float64        `json:"altitude"`
	Slope               *float64        `json:"slope"`
	Temperature         *float64        `json:"temperature"`
	OverweightProcedure bool            `json:"overweightProcedure"`
	Pressure            *float64        `json:"pressure"`
	RunwayLength        *float64        `json:"runwayLength"`
	Result
}

// InitialLandingState начальное состояние формы
func InitialLandingState() LandingState {
	return LandingState{
		Flaps:           FlapsFull,
		RunwayCondition: RunwayDry,
		Result: Result{
			RunwayVisualizationLabels: []RunwayLabel{},
		},
	}
}

// Input собирает входные данные расчета, ok=false если хотя бы одно поле не задано
func (s LandingState) Input() (Input, bool) {
	required := []*float64{
		s.WindDirection, s.WindMagnitude, s.Weight, s.RunwayHeading, s.ApproachSpeed,
		s.Altitude, s.Slope, s.Temperature, s.Pressure, s.RunwayLength,
	}
	for _, v := range required {
		if v == nil || math.IsNaN(*v) {
			return Input{}, false
		}
	}

	return Input{
		Weight:              *s.Weight,
		Flaps:               s.Flaps,
		RunwayCondition:     s.RunwayCondition,
		ApproachSpeed:       *s.ApproachSpeed,
		WindDirection:       *s.WindDirection,
		WindMagnitude:       *s.WindMagnitude,
		RunwayHeading:       *s.RunwayHeading,
		ReverseThrust:       s.ReverseThrust,
		Altitude:            *s.Altitude,
		Temperature:         *s.Temperature,
		Slope:               *s.Slope,
		OverweightProcedure: s.OverweightProcedure,
		Pressure:            *s.Pressure,
		Autoland:            s.Autoland,
	}, true
}

// clone копирует состояние вместе с указателями
func (s LandingState) clone() LandingState {
	c := s
	for _, p := range []**float64{
		&c.WindDirection, &c.WindMagnitude, &c.Weight, &c.RunwayHeading, &c.ApproachSpeed,
		&c.Altitude, &c.Slope, &c.Temperature, &c.Pressure, &c.RunwayLength,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	c.RunwayVisualizationLabels = append([]RunwayLabel{}, s.RunwayVisualizationLabels...)
	return c
}

// Listener получает снимок состояния после каждого изменения
type Listener func(LandingState)

// Store хранилище состояния формы посадки с единственным писателем:
// все изменения сериализуются мьютексом.
type Store struct {
	mu        sync.Mutex
	state     LandingState
	calc      *Calculator
	listeners map[int]Listener
	nextID    int
	logger    *utils.Logger
}

// NewStore создает хранилище с начальным состоянием
func NewStore(calc *Calculator, logger *utils.Logger) (*Store, error) {
	if calc == nil {
		return nil, fmt.Errorf("calculator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Store{
		state:     InitialLandingState(),
		calc:      calc,
		listeners: make(map[int]Listener),
		logger:    logger.WithField("component", "landing_store"),
	}, nil
}

// Snapshot возвращает копию текущего состояния
func (s *Store) Snapshot() LandingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// SetValues применяет частичное изменение состояния
func (s *Store) SetValues(update func(*LandingState)) {
	s.mu.Lock()
	update(&s.state)
	snapshot := s.state.clone()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Clear сбрасывает форму в начальное состояние
func (s *Store) Clear() {
	s.SetValues(func(st *LandingState) {
		*st = InitialLandingState()
	})
}

// Subscribe регистрирует слушателя изменений, возвращает функцию отписки
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Calculate выполняет расчет по текущему состоянию и сохраняет результат.
// Если форма заполнена не полностью, возвращает ErrIncompleteInput и ничего не меняет.
func (s *Store) Calculate() (Result, Input, error) {
	s.mu.Lock()
	in, ok := s.state.Input()
	if !ok {
		s.mu.Unlock()
		metrics.LandingCalculations.WithLabelValues("incomplete").Inc()
		return Result{}, Input{}, ErrIncompleteInput
	}

	runwayLength := *s.state.RunwayLength
	if err := ValidateRunwayLength(runwayLength); err != nil {
		s.mu.Unlock()
		return Result{}, Input{}, err
	}
	distances, err := s.calc.CalculateLandingDistances(in)
	if err != nil {
		s.mu.Unlock()
		return Result{}, Input{}, err
	}

	result := BuildResult(distances, runwayLength)
	s.state.Result = result
	snapshot := s.state.clone()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	recordOutcome(result)
	s.logger.WithFields(map[string]interface{}{
		"icao":   snapshot.ICAO,
		"max":    result.MaxAutobrakeLandingDist,
		"medium": result.MediumAutobrakeLandingDist,
		"low":    result.LowAutobrakeLandingDist,
		"runway": runwayLength,
	}).Debug("Landing distances calculated")

	notify(listeners, snapshot)
	return result, in, nil
}

// ApplyMetar переносит в форму только поля сводки: ветер, температуру и давление
func (s *Store) ApplyMetar(rec *metar.Record) {
	if rec == nil {
		return
	}
	s.SetValues(func(st *LandingState) {
		applyMetar(st, rec)
	})
}

func applyMetar(st *LandingState, rec *metar.Record) {
	st.WindDirection = floatPtr(rec.Wind.Degrees)
	st.WindMagnitude = floatPtr(rec.Wind.SpeedKts)
	st.Temperature = floatPtr(rec.Temperature.Celsius)
	st.Pressure = floatPtr(rec.Barometer.Mb)
}

func (s *Store) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, snapshot LandingState) {
	for _, l := range listeners {
		l(snapshot)
	}
}

// BuildResult округляет дистанции и помечает превышение длины ВПП
func BuildResult(d Distances, runwayLength float64) Result {
	maxDist := int(math.Round(d.Max))
	mediumDist := int(math.Round(d.Medium))
	lowDist := int(math.Round(d.Low))

	return Result{
		MaxAutobrakeLandingDist:    maxDist,
		MediumAutobrakeLandingDist: mediumDist,
		LowAutobrakeLandingDist:    lowDist,
		MaxExceedsRunway:           float64(maxDist) > runwayLength,
		MediumExceedsRunway:        float64(mediumDist) > runwayLength,
		LowExceedsRunway:           float64(lowDist) > runwayLength,
		RunwayVisualizationLabels: []RunwayLabel{
			{Label: "LOW", Distance: lowDist, Type: LabelTypeMain},
			{Label: "MED", Distance: mediumDist, Type: LabelTypeMain},
			{Label: "MAX", Distance: maxDist, Type: LabelTypeMain},
		},
		DisplayedRunwayLength: runwayLength,
	}
}

func recordOutcome(r Result) {
	if r.MaxExceedsRunway || r.MediumExceedsRunway || r.LowExceedsRunway {
		metrics.LandingCalculations.WithLabelValues("exceeds_runway").Inc()
		return
	}
	metrics.LandingCalculations.WithLabelValues("ok").Inc()
}

func floatPtr(v float64) *float64 {
	return &v
}
