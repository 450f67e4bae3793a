package metar

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/flybeeper/efb-backend/internal/units"
)

var (
	stationRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)
	timeRe    = regexp.MustCompile(`^\d{6}Z$`)

	// Ветер: DDDFF(GFF)KT, VRBFFKT, единицы KT/MPS/KMH
	windRe = regexp.MustCompile(`^(\d{3}|VRB)(\d{2,3})(?:G(\d{2,3}))?(KT|MPS|KMH)$`)

	// Температура/точка росы: TT/DD, M = минус, точка росы может отсутствовать
	tempRe = regexp.MustCompile(`^(M?\d{2})/(M?\d{2})?$`)

	// QNH: Q#### (гПа) или A#### (сотые inHg)
	qnhRe = regexp.MustCompile(`^([QA])(\d{4})$`)
)

// Группы, после которых основная часть сводки заканчивается
var trailerTokens = map[string]bool{
	"RMK":   true,
	"TEMPO": true,
	"BECMG": true,
	"NOSIG": true,
}

// Parse разбирает сырую сводку METAR.
// Сводка без ветра, температуры или давления считается некорректной.
func Parse(raw string) (*Record, error) {
	text := strings.ToUpper(strings.TrimSpace(raw))
	text = strings.TrimSpace(strings.TrimSuffix(text, "="))
	if text == "" {
		return nil, fmt.Errorf("%w: empty report", ErrMalformed)
	}

	tokens := strings.Fields(text)
	i := 0
	for i < len(tokens) && (tokens[i] == "METAR" || tokens[i] == "SPECI" || tokens[i] == "COR") {
		i++
	}

	if i >= len(tokens) || !stationRe.MatchString(tokens[i]) {
		return nil, fmt.Errorf("%w: missing station identifier", ErrMalformed)
	}

	rec := &Record{
		Station: tokens[i],
		Raw:     strings.TrimSpace(raw),
	}

	var haveWind, haveTemp, havePressure bool

	for _, tok := range tokens[i+1:] {
		if trailerTokens[tok] {
			break
		}

		switch {
		case rec.ObservedAt == "" && timeRe.MatchString(tok):
			rec.ObservedAt = tok

		case !haveWind && windRe.MatchString(tok):
			wind, err := parseWind(windRe.FindStringSubmatch(tok))
			if err != nil {
				return nil, err
			}
			rec.Wind = wind
			haveWind = true

		case !haveTemp && tempRe.MatchString(tok):
			m := tempRe.FindStringSubmatch(tok)
			rec.Temperature.Celsius = parseSignedTemp(m[1])
			if m[2] != "" {
				dew := parseSignedTemp(m[2])
				rec.Temperature.DewpointCelsius = &dew
			}
			haveTemp = true

		case !havePressure && qnhRe.MatchString(tok):
			m := qnhRe.FindStringSubmatch(tok)
			value, _ := strconv.Atoi(m[2])
			if m[1] == "Q" {
				rec.Barometer.Mb = float64(value)
				rec.Barometer.InHg = round(units.HectopascalToInchOfMercury(float64(value)), 2)
			} else {
				inHg := float64(value) / 100
				rec.Barometer.InHg = inHg
				rec.Barometer.Mb = round(units.InchOfMercuryToHectopascal(inHg), 1)
			}
			havePressure = true
		}
	}

	var missing []string
	if !haveWind {
		missing = append(missing, "wind")
	}
	if !haveTemp {
		missing = append(missing, "temperature")
	}
	if !havePressure {
		missing = append(missing, "pressure")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}

	return rec, nil
}

func parseWind(m []string) (Wind, error) {
	var wind Wind

	if m[1] == "VRB" {
		wind.Variable = true
	} else {
		deg, _ := strconv.Atoi(m[1])
		if deg > 360 {
			return wind, fmt.Errorf("%w: wind direction %d out of range", ErrMalformed, deg)
		}
		wind.Degrees = float64(deg)
	}

	speed, _ := strconv.Atoi(m[2])
	wind.SpeedKts = toKnots(float64(speed), m[4])

	if m[3] != "" {
		gust, _ := strconv.Atoi(m[3])
		wind.GustKts = toKnots(float64(gust), m[4])
	}

	return wind, nil
}

func toKnots(value float64, unit string) float64 {
	switch unit {
	case "MPS":
		return math.Round(units.KnotsFromMetresPerSecond(value))
	case "KMH":
		return math.Round(units.KnotsFromKilometresPerHour(value))
	default:
		return value
	}
}

func parseSignedTemp(s string) float64 {
	negative := strings.HasPrefix(s, "M")
	v, _ := strconv.Atoi(strings.TrimPrefix(s, "M"))
	if negative {
		return -float64(v)
	}
	return float64(v)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
