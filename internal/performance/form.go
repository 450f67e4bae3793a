package performance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/flybeeper/efb-backend/internal/units"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// Единицы измерения, выбираемые пользователем
const (
	UnitKilogram    = "kg"
	UnitPound       = "lb"
	UnitMetre       = "m"
	UnitFoot        = "ft"
	UnitCelsius     = "C"
	UnitFahrenheit  = "F"
	UnitHectopascal = "hPa"
	UnitInchMercury = "inHg"
)

// UnitPreferences предпочтительные единицы ввода и отображения
type UnitPreferences struct {
	Weight      string `json:"weight"`
	Distance    string `json:"distance"`
	Temperature string `json:"temperature"`
	Pressure    string `json:"pressure"`
}

// DefaultUnitPreferences единицы по умолчанию для метрической или имперской системы
func DefaultUnitPreferences(metric bool) UnitPreferences {
	if metric {
		return UnitPreferences{
			Weight:      UnitKilogram,
			Distance:    UnitMetre,
			Temperature: UnitCelsius,
			Pressure:    UnitHectopascal,
		}
	}
	return UnitPreferences{
		Weight:      UnitPound,
		Distance:    UnitFoot,
		Temperature: UnitFahrenheit,
		Pressure:    UnitInchMercury,
	}
}

// Override заменяет единицы выбранными пользователем, неизвестные значения пропускаются
func (p UnitPreferences) Override(weight, distance, temperature, pressure string) UnitPreferences {
	if weight == UnitKilogram || weight == UnitPound {
		p.Weight = weight
	}
	if distance == UnitMetre || distance == UnitFoot {
		p.Distance = distance
	}
	if temperature == UnitCelsius || temperature == UnitFahrenheit {
		p.Temperature = temperature
	}
	if pressure == UnitHectopascal || pressure == UnitInchMercury {
		p.Pressure = pressure
	}
	return p
}

// Field поле формы расчета посадки
type Field string

const (
	FieldICAO                Field = "icao"
	FieldWindDirection       Field = "windDirection"
	FieldWindMagnitude       Field = "windMagnitude"
	FieldWeight              Field = "weight"
	FieldRunwayHeading       Field = "runwayHeading"
	FieldApproachSpeed       Field = "approachSpeed"
	FieldFlaps               Field = "flaps"
	FieldRunwayCondition     Field = "runwayCondition"
	FieldReverseThrust       Field = "reverseThrust"
	FieldAutoland            Field = "autoland"
	FieldAltitude            Field = "altitude"
	FieldSlope               Field = "slope"
	FieldTemperature         Field = "temperature"
	FieldOverweightProcedure Field = "overweightProcedure"
	FieldPressure            Field = "pressure"
	FieldRunwayLength        Field = "runwayLength"
)

// ErrUnknownField поле формы не существует
var ErrUnknownField = errors.New("unknown landing field")

// HandleField разбирает текст поля формы и записывает значение в хранилище.
// Ошибка разбора очищает поле.
func (s *Store) HandleField(field Field, value string, prefs UnitPreferences) error {
	update, err := fieldUpdate(field, value, prefs)
	if err != nil {
		return err
	}
	s.SetValues(update)
	return nil
}

// HandleFields применяет несколько полей одним изменением
func (s *Store) HandleFields(values map[Field]string, prefs UnitPreferences) error {
	updates := make([]func(*LandingState), 0, len(values))
	for field, value := range values {
		update, err := fieldUpdate(field, value, prefs)
		if err != nil {
			return err
		}
		updates = append(updates, update)
	}

	s.SetValues(func(st *LandingState) {
		for _, u := range updates {
			u(st)
		}
	})
	return nil
}

func fieldUpdate(field Field, value string, prefs UnitPreferences) (func(*LandingState), error) {
	switch field {
	case FieldICAO:
		icao := strings.ToUpper(strings.TrimSpace(value))
		return func(st *LandingState) { st.ICAO = icao }, nil

	case FieldWindDirection:
		v := parseInt(value)
		return func(st *LandingState) { st.WindDirection = v }, nil

	case FieldWindMagnitude:
		v := parseInt(value)
		return func(st *LandingState) { st.WindMagnitude = v }, nil

	case FieldWeight:
		v := parseInt(value)
		if v != nil && prefs.Weight == UnitPound {
			v = floatPtr(units.PoundToKilogram(*v))
		}
		return func(st *LandingState) { st.Weight = v }, nil

	case FieldRunwayHeading:
		v := parseInt(value)
		return func(st *LandingState) { st.RunwayHeading = v }, nil

	case FieldApproachSpeed:
		v := parseInt(value)
		return func(st *LandingState) { st.ApproachSpeed = v }, nil

	case FieldAltitude:
		v := parseInt(value)
		return func(st *LandingState) { st.Altitude = v }, nil

	case FieldSlope:
		v := parseInt(value)
		return func(st *LandingState) { st.Slope = v }, nil

	case FieldTemperature:
		v := parseFloat(value)
		if v != nil && prefs.Temperature == UnitFahrenheit {
			v = floatPtr(units.FahrenheitToCelsius(*v))
		}
		return func(st *LandingState) { st.Temperature = v }, nil

	case FieldPressure:
		v := parseFloat(value)
		if v != nil && prefs.Pressure == UnitInchMercury {
			v = floatPtr(units.InchOfMercuryToHectopascal(*v))
		}
		return func(st *LandingState) { st.Pressure = v }, nil

	case FieldRunwayLength:
		v := parseInt(value)
		if v != nil && prefs.Distance == UnitFoot {
			v = floatPtr(units.FootToMetre(*v))
		}
		return func(st *LandingState) { st.RunwayLength = v }, nil

	case FieldFlaps:
		flaps := FlapsFull
		if n, ok := utils.ParseIntPrefix(value); ok && FlapsConfig(n).Valid() {
			flaps = FlapsConfig(n)
		}
		return func(st *LandingState) { st.Flaps = flaps }, nil

	case FieldRunwayCondition:
		condition := RunwayDry
		if n, ok := utils.ParseIntPrefix(value); ok && RunwayCondition(n).Valid() {
			condition = RunwayCondition(n)
		}
		return func(st *LandingState) { st.RunwayCondition = condition }, nil

	case FieldReverseThrust:
		v := parseBool(value)
		return func(st *LandingState) { st.ReverseThrust = v }, nil

	case FieldAutoland:
		v := parseBool(value)
		return func(st *LandingState) { st.Autoland = v }, nil

	case FieldOverweightProcedure:
		v := parseBool(value)
		return func(st *LandingState) { st.OverweightProcedure = v }, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
}

func parseInt(value string) *float64 {
	n, ok := utils.ParseIntPrefix(value)
	if !ok {
		return nil
	}
	return floatPtr(float64(n))
}

func parseFloat(value string) *float64 {
	v, ok := utils.ParseFloatPrefix(value)
	if !ok {
		return nil
	}
	return floatPtr(v)
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

// DisplayValues значения формы в предпочтительных единицах пользователя
type DisplayValues struct {
	Weight       *float64        `json:"weight"`
	Temperature  *float64        `json:"temperature"`
	Pressure     *float64        `json:"pressure"`
	RunwayLength *float64        `json:"runwayLength"`
	Units        UnitPreferences `json:"units"`
}

// Display переводит значения состояния в единицы отображения
func Display(st LandingState, prefs UnitPreferences) DisplayValues {
	out := DisplayValues{Units: prefs}

	if st.Weight != nil {
		w := *st.Weight
		if prefs.Weight == UnitPound {
			w = units.KilogramToPound(w)
		}
		out.Weight = floatPtr(w)
	}
	if st.Temperature != nil {
		t := *st.Temperature
		if prefs.Temperature == UnitFahrenheit {
			t = units.CelsiusToFahrenheit(t)
		}
		out.Temperature = floatPtr(t)
	}
	if st.Pressure != nil {
		p := *st.Pressure
		if prefs.Pressure == UnitInchMercury {
			p = units.HectopascalToInchOfMercury(p)
		}
		out.Pressure = floatPtr(p)
	}
	if st.RunwayLength != nil {
		l := *st.RunwayLength
		if prefs.Distance == UnitFoot {
			l = units.MetreToFoot(l)
		}
		out.RunwayLength = floatPtr(l)
	}

	return out
}
