// Package performance рассчитывает посадочную дистанцию для трех режимов
// автоторможения и хранит состояние формы расчета посадки.
package performance

import (
	"errors"
	"fmt"
)

// FlapsConfig конфигурация закрылков на посадке
type FlapsConfig int

const (
	FlapsConf3 FlapsConfig = iota
	FlapsFull
)

func (f FlapsConfig) String() string {
	switch f {
	case FlapsConf3:
		return "CONF3"
	case FlapsFull:
		return "FULL"
	default:
		return fmt.Sprintf("FlapsConfig(%d)", int(f))
	}
}

// Valid проверяет, что значение входит в перечисление
func (f FlapsConfig) Valid() bool {
	return f == FlapsConf3 || f == FlapsFull
}

// RunwayCondition состояние ВПП
type RunwayCondition int

const (
	RunwayDry RunwayCondition = iota
	RunwayGood
	RunwayGoodMedium
	RunwayMedium
	RunwayMediumPoor
	RunwayPoor
)

var runwayConditionNames = [...]string{"DRY", "GOOD", "GOOD_MEDIUM", "MEDIUM", "MEDIUM_POOR", "POOR"}

func (c RunwayCondition) String() string {
	if c.Valid() {
		return runwayConditionNames[c]
	}
	return fmt.Sprintf("RunwayCondition(%d)", int(c))
}

// Valid проверяет, что значение входит в перечисление
func (c RunwayCondition) Valid() bool {
	return c >= RunwayDry && c <= RunwayPoor
}

// AutobrakeMode режим автоторможения
type AutobrakeMode int

const (
	AutobrakeLow AutobrakeMode = iota
	AutobrakeMedium
	AutobrakeMax
)

// Границы входных параметров
const (
	MinWeight        = 41000.0
	MaxWeight        = 100000.0
	MinApproachSpeed = 90.0
	MaxApproachSpeed = 350.0
	MinAltitude      = -2000.0
	MaxAltitude      = 20000.0
	MinTemperature   = -55.0
	MaxTemperature   = 55.0
	MinSlope         = -2.0
	MaxSlope         = 2.0
	MinPressure      = 800.0
	MaxPressure      = 1200.0
	MinRunwayLength  = 0.0
	MaxRunwayLength  = 6000.0
	MaxWindMagnitude = 250.0
)

// ErrIncompleteInput не все поля формы заполнены, расчет не выполняется
var ErrIncompleteInput = errors.New("landing input is incomplete")

// Input полностью определенные входные данные расчета
type Input struct {
	Weight              float64         `json:"weight"`              // кг
	Flaps               FlapsConfig     `json:"flaps"`
	RunwayCondition     RunwayCondition `json:"runwayCondition"`
	ApproachSpeed       float64         `json:"approachSpeed"`       // кт
	WindDirection       float64         `json:"windDirection"`       // градусы
	WindMagnitude       float64         `json:"windMagnitude"`       // кт
	RunwayHeading       float64         `json:"runwayHeading"`       // градусы
	ReverseThrust       bool            `json:"reverseThrust"`
	Altitude            float64         `json:"altitude"`            // фт
	Temperature         float64         `json:"temperature"`         // °C
	Slope               float64         `json:"slope"`               // %, отрицательный - уклон вниз
	OverweightProcedure bool            `json:"overweightProcedure"`
	Pressure            float64         `json:"pressure"`            // гПа
	Autoland            bool            `json:"autoland"`
}

// Validate проверяет границы входных параметров
func (in Input) Validate() error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"weight", in.Weight, MinWeight, MaxWeight},
		{"approachSpeed", in.ApproachSpeed, MinApproachSpeed, MaxApproachSpeed},
		{"windDirection", in.WindDirection, 0, 360},
		{"windMagnitude", in.WindMagnitude, 0, MaxWindMagnitude},
		{"runwayHeading", in.RunwayHeading, 0, 360},
		{"altitude", in.Altitude, MinAltitude, MaxAltitude},
		{"temperature", in.Temperature, MinTemperature, MaxTemperature},
		{"slope", in.Slope, MinSlope, MaxSlope},
		{"pressure", in.Pressure, MinPressure, MaxPressure},
	}

	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return &RangeError{Field: c.name, Value: c.value, Min: c.min, Max: c.max}
		}
	}

	if !in.Flaps.Valid() {
		return fmt.Errorf("invalid flaps configuration %d", in.Flaps)
	}
	if !in.RunwayCondition.Valid() {
		return fmt.Errorf("invalid runway condition %d", in.RunwayCondition)
	}

	return nil
}

// ValidateRunwayLength проверяет длину полосы, м
func ValidateRunwayLength(length float64) error {
	if length < MinRunwayLength || length > MaxRunwayLength {
		return &RangeError{Field: "runwayLength", Value: length, Min: MinRunwayLength, Max: MaxRunwayLength}
	}
	return nil
}

// RangeError значение вне допустимого диапазона
type RangeError struct {
	Field    string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %.1f out of range [%.0f, %.0f]", e.Field, e.Value, e.Min, e.Max)
}

// Distances посадочные дистанции по режимам автоторможения (м)
type Distances struct {
	Max    float64 `json:"max"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// LabelType тип метки на визуализации ВПП
type LabelType string

// LabelTypeMain основная метка дистанции
const LabelTypeMain LabelType = "main"

// RunwayLabel метка дистанции на визуализации ВПП
type RunwayLabel struct {
	Label    string    `json:"label"`
	Distance int       `json:"distance"`
	Type     LabelType `json:"type"`
}

// Result результат расчета для отображения
type Result struct {
	MaxAutobrakeLandingDist    int           `json:"maxAutobrakeLandingDist"`
	MediumAutobrakeLandingDist int           `json:"mediumAutobrakeLandingDist"`
	LowAutobrakeLandingDist    int           `json:"lowAutobrakeLandingDist"`
	MaxExceedsRunway           bool          `json:"maxExceedsRunway"`
	MediumExceedsRunway        bool          `json:"mediumExceedsRunway"`
	LowExceedsRunway           bool          `json:"lowExceedsRunway"`
	RunwayVisualizationLabels  []RunwayLabel `json:"runwayVisualizationLabels"`
	DisplayedRunwayLength      float64       `json:"displayedRunwayLength"`
}
