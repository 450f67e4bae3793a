package models

import (
	"fmt"
	"time"
)

// LandingCalculation сохраненный результат расчета посадочной дистанции
type LandingCalculation struct {
	ID   int64  `json:"id,omitempty"`
	ICAO string `json:"icao"`

	// Входные данные
	Weight              float64 `json:"weight"`               // кг
	Flaps               int     `json:"flaps"`                // 0 - CONF3, 1 - FULL
	RunwayCondition     int     `json:"runway_condition"`
	ApproachSpeed       float64 `json:"approach_speed"`       // кт
	WindDirection       float64 `json:"wind_direction"`       // градусы
	WindMagnitude       float64 `json:"wind_magnitude"`       // кт
	RunwayHeading       float64 `json:"runway_heading"`       // градусы
	ReverseThrust       bool    `json:"reverse_thrust"`
	Altitude            float64 `json:"altitude"`             // фт
	Temperature         float64 `json:"temperature"`          // °C
	Slope               float64 `json:"slope"`                // %
	OverweightProcedure bool    `json:"overweight_procedure"`
	Pressure            float64 `json:"pressure"`             // гПа
	Autoland            bool    `json:"autoland"`
	RunwayLength        float64 `json:"runway_length"`        // м

	// Результат
	MaxDistance    int  `json:"max_distance"`    // м
	MediumDistance int  `json:"medium_distance"` // м
	LowDistance    int  `json:"low_distance"`    // м
	ExceedsRunway  bool `json:"exceeds_runway"`  // хотя бы один режим не помещается

	CreatedAt time.Time `json:"created_at"`
}

// Validate проверяет запись перед сохранением
func (l *LandingCalculation) Validate() error {
	if l.Weight <= 0 {
		return fmt.Errorf("invalid weight: %.0f", l.Weight)
	}
	if l.MaxDistance <= 0 || l.MediumDistance <= 0 || l.LowDistance <= 0 {
		return fmt.Errorf("distances must be positive")
	}
	if l.RunwayLength < 0 {
		return fmt.Errorf("invalid runway length: %.0f", l.RunwayLength)
	}
	if l.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}
