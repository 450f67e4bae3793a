package performance

import (
	"fmt"
	"math"
)

// Calculator рассчитывает посадочные дистанции по таблицам эталонных данных
type Calculator struct {
	data map[AutobrakeMode]map[RunwayCondition]map[FlapsConfig]landingData
	vls  map[FlapsConfig][]vlsPoint
}

// NewCalculator создает калькулятор со встроенными таблицами
func NewCalculator() *Calculator {
	return &Calculator{
		data: landingDataTable,
		vls:  vlsTable,
	}
}

// CalculateLandingDistances возвращает дистанции для трех режимов автоторможения.
// Входные данные должны пройти Validate.
func (c *Calculator) CalculateLandingDistances(in Input) (Distances, error) {
	if err := in.Validate(); err != nil {
		return Distances{}, fmt.Errorf("invalid landing input: %w", err)
	}

	var d Distances
	for _, mode := range []AutobrakeMode{AutobrakeMax, AutobrakeMedium, AutobrakeLow} {
		dist, err := c.distance(mode, in)
		if err != nil {
			return Distances{}, err
		}
		switch mode {
		case AutobrakeMax:
			d.Max = dist
		case AutobrakeMedium:
			d.Medium = dist
		case AutobrakeLow:
			d.Low = dist
		}
	}

	return d, nil
}

func (c *Calculator) distance(mode AutobrakeMode, in Input) (float64, error) {
	data, ok := c.data[mode][in.RunwayCondition][in.Flaps]
	if !ok {
		return 0, fmt.Errorf("no landing data for autobrake %d, %s, %s", mode, in.RunwayCondition, in.Flaps)
	}

	weightTonnes := in.Weight / 1000
	var weightCorrection float64
	if weightTonnes > referenceWeightTonnes {
		weightCorrection = (weightTonnes - referenceWeightTonnes) * data.weightCorrectionAbove
	} else {
		weightCorrection = (referenceWeightTonnes - weightTonnes) * data.weightCorrectionBelow
	}

	targetSpeed := c.VLS(in.Flaps, in.Weight) + 5
	speedCorrection := math.Max(0, in.ApproachSpeed-targetSpeed) / 5 * data.speedCorrection

	pressureAltitude := PressureAltitude(in.Altitude, in.Pressure)
	altitudeCorrection := math.Max(0, pressureAltitude) / 1000 * data.altitudeCorrection

	windCorrection := math.Max(0, Tailwind(in.WindDirection, in.WindMagnitude, in.RunwayHeading)) / 5 * data.windCorrection

	isaDeviation := in.Temperature - ISATemperature(pressureAltitude)
	tempCorrection := math.Max(0, isaDeviation) / 10 * data.tempCorrection

	slopeCorrection := math.Max(0, -in.Slope) * data.slopeCorrection

	var reverserCorrection float64
	if in.ReverseThrust {
		reverserCorrection = reverserCount * data.reverserCorrection
	}

	var overweightCorrection float64
	if in.OverweightProcedure {
		overweightCorrection = data.overweightProcedureCorrection
	}

	var autolandCorrection float64
	if in.Autoland {
		autolandCorrection = data.autolandCorrection
	}

	return data.refDistance +
		weightCorrection +
		speedCorrection +
		altitudeCorrection +
		windCorrection +
		tempCorrection +
		slopeCorrection +
		reverserCorrection +
		overweightCorrection +
		autolandCorrection, nil
}

// VLS минимальная скорость захода (кт) для массы в кг.
// За пределами таблицы экстраполируется по крайнему отрезку.
func (c *Calculator) VLS(flaps FlapsConfig, weightKg float64) float64 {
	points := c.vls[flaps]
	if len(points) == 0 {
		points = c.vls[FlapsFull]
	}

	w := weightKg / 1000
	i := 1
	for i < len(points)-1 && w > points[i].weightTonnes {
		i++
	}
	lo, hi := points[i-1], points[i]

	return lo.speed + (w-lo.weightTonnes)*(hi.speed-lo.speed)/(hi.weightTonnes-lo.weightTonnes)
}

// PressureAltitude барометрическая высота (фт) по превышению и QNH (гПа)
func PressureAltitude(altitudeFt, qnhHpa float64) float64 {
	return altitudeFt + (1013.25-qnhHpa)*27
}

// ISATemperature температура МСА (°C) на высоте в футах
func ISATemperature(altitudeFt float64) float64 {
	return 15 - 0.0019812*altitudeFt
}

// Tailwind попутная составляющая ветра (кт), отрицательная для встречного
func Tailwind(windDirection, windMagnitude, runwayHeading float64) float64 {
	relative := (windDirection - runwayHeading) * math.Pi / 180
	return math.Cos(math.Pi-relative) * windMagnitude
}
