// Package units содержит преобразования между метрическими и имперскими единицами,
// которые использует EFB при вводе и отображении данных.
package units

const (
	kilogramsPerPound     = 0.45359237
	metresPerFoot         = 0.3048
	hectopascalsPerInchHg = 33.8638866667
)

// PoundToKilogram переводит фунты в килограммы
func PoundToKilogram(lb float64) float64 {
	return lb * kilogramsPerPound
}

// KilogramToPound переводит килограммы в фунты
func KilogramToPound(kg float64) float64 {
	return kg / kilogramsPerPound
}

// FootToMetre переводит футы в метры
func FootToMetre(ft float64) float64 {
	return ft * metresPerFoot
}

// MetreToFoot переводит метры в футы
func MetreToFoot(m float64) float64 {
	return m / metresPerFoot
}

// FahrenheitToCelsius переводит °F в °C
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit переводит °C в °F
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// InchOfMercuryToHectopascal переводит inHg в гПа
func InchOfMercuryToHectopascal(inHg float64) float64 {
	return inHg * hectopascalsPerInchHg
}

// HectopascalToInchOfMercury переводит гПа в inHg
func HectopascalToInchOfMercury(hPa float64) float64 {
	return hPa / hectopascalsPerInchHg
}

// KnotsFromMetresPerSecond переводит м/с в узлы (ветер в METAR может быть задан в MPS)
func KnotsFromMetresPerSecond(mps float64) float64 {
	return mps * 1.943844
}

// KnotsFromKilometresPerHour переводит км/ч в узлы
func KnotsFromKilometresPerHour(kmh float64) float64 {
	return kmh / 1.852
}
