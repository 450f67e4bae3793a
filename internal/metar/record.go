// Package metar разбирает сводки METAR и получает их из двух источников:
// из симулятора (через мост) и из внешнего API.
package metar

import (
	"errors"
	"fmt"
)

// Record нормализованная сводка METAR
type Record struct {
	Station     string      `json:"station"`
	ObservedAt  string      `json:"observed_at,omitempty"` // DDHHMMZ
	Raw         string      `json:"raw"`
	Wind        Wind        `json:"wind"`
	Temperature Temperature `json:"temperature"`
	Barometer   Barometer   `json:"barometer"`
}

// Wind ветер из сводки
type Wind struct {
	Degrees  float64 `json:"degrees"`
	SpeedKts float64 `json:"speed_kts"`
	GustKts  float64 `json:"gust_kts,omitempty"`
	Variable bool    `json:"variable,omitempty"`
}

// Temperature температура и точка росы (°C)
type Temperature struct {
	Celsius         float64  `json:"celsius"`
	DewpointCelsius *float64 `json:"dewpoint_celsius,omitempty"`
}

// Barometer давление QNH
type Barometer struct {
	Mb   float64 `json:"mb"`
	InHg float64 `json:"hg"`
}

var (
	// ErrNoMetar сводка недоступна для запрошенного аэродрома
	ErrNoMetar = errors.New("no METAR available")

	// ErrMalformed сводка не может быть разобрана
	ErrMalformed = errors.New("malformed METAR")
)

// Notice кратковременное уведомление для пользователя.
// Все ошибки получения и разбора METAR возвращаются в этом виде.
type Notice struct {
	ICAO    string
	Message string
	Err     error
}

func (n *Notice) Error() string {
	if n.ICAO == "" {
		return n.Message
	}
	return fmt.Sprintf("%s: %s", n.ICAO, n.Message)
}

func (n *Notice) Unwrap() error {
	return n.Err
}

// NewNotice оборачивает ошибку получения или разбора в уведомление
func NewNotice(icao string, err error) *Notice {
	message := "No METAR available"
	if !errors.Is(err, ErrNoMetar) {
		message = err.Error()
	}
	return &Notice{ICAO: icao, Message: message, Err: err}
}
