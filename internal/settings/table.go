// Package settings синхронизирует сохраненные настройки EFB
// с переменными симулятора.
package settings

import "strconv"

// Типы переменных симулятора
const (
	UnitNumber = "number"
	UnitBool   = "bool"
)

// Флаги автоматических радиовысотных отсчетов
const (
	CallOutTwoThousandFiveHundred = 1 << iota
	CallOutTwentyFiveHundred
	CallOutTwoThousand
	CallOutOneThousand
	CallOutFiveHundred
	CallOutFourHundred
	CallOutThreeHundred
	CallOutTwoHundred
	CallOutOneHundred
	CallOutFifty
	CallOutForty
	CallOutThirty
	CallOutTwenty
	CallOutTen
	CallOutFive
	CallOutFiveHundredGlide
)

// DefaultRadioAutoCallOuts набор отсчетов по умолчанию
const DefaultRadioAutoCallOuts = CallOutTwoThousandFiveHundred | CallOutOneThousand | CallOutFourHundred |
	CallOutOneHundred | CallOutFifty | CallOutForty | CallOutThirty | CallOutTwenty | CallOutTen | CallOutFive

// Entry связь сохраненной настройки с переменной симулятора.
// Для перечислений Enum задает числовое значение для каждого сохраненного.
type Entry struct {
	Key     string             `json:"key"`
	SimVar  string             `json:"simvar"`
	Unit    string             `json:"unit"`
	Default string             `json:"default"`
	Enum    map[string]float64 `json:"enum,omitempty"`
}

// IsEnum настройка-перечисление
func (e Entry) IsEnum() bool {
	return e.Enum != nil
}

// Table настройки, которые передаются в симулятор при загрузке самолета
var Table = []Entry{
	{Key: "SOUND_PTU_AUDIBLE_COCKPIT", SimVar: "L:A32NX_SOUND_PTU_AUDIBLE_COCKPIT", Unit: UnitNumber, Default: "0"},
	{Key: "SOUND_EXTERIOR_MASTER", SimVar: "L:A32NX_SOUND_EXTERIOR_MASTER", Unit: UnitNumber, Default: "0"},
	{Key: "SOUND_INTERIOR_ENGINE", SimVar: "L:A32NX_SOUND_INTERIOR_ENGINE", Unit: UnitNumber, Default: "0"},
	{Key: "SOUND_INTERIOR_WIND", SimVar: "L:A32NX_SOUND_INTERIOR_WIND", Unit: UnitNumber, Default: "0"},
	{Key: "EFB_BRIGHTNESS", SimVar: "L:A32NX_EFB_BRIGHTNESS", Unit: UnitNumber, Default: "0"},
	{Key: "EFB_USING_AUTOBRIGHTNESS", SimVar: "L:A32NX_EFB_USING_AUTOBRIGHTNESS", Unit: UnitBool, Default: "0"},
	{Key: "ISIS_BARO_UNIT_INHG", SimVar: "L:A32NX_ISIS_BARO_UNIT_INHG", Unit: UnitNumber, Default: "0"},
	{Key: "REALISTIC_TILLER_ENABLED", SimVar: "L:A32NX_REALISTIC_TILLER_ENABLED", Unit: UnitNumber, Default: "0"},
	{Key: "HOME_COCKPIT_ENABLED", SimVar: "L:A32NX_HOME_COCKPIT_ENABLED", Unit: UnitNumber, Default: "0"},
	{Key: "SOUND_PASSENGER_AMBIENCE_ENABLED", SimVar: "L:A32NX_SOUND_PASSENGER_AMBIENCE_ENABLED", Unit: UnitNumber, Default: "1"},
	{Key: "SOUND_ANNOUNCEMENTS_ENABLED", SimVar: "L:A32NX_SOUND_ANNOUNCEMENTS_ENABLED", Unit: UnitNumber, Default: "1"},
	{Key: "SOUND_BOARDING_MUSIC_ENABLED", SimVar: "L:A32NX_SOUND_BOARDING_MUSIC_ENABLED", Unit: UnitNumber, Default: "1"},
	{Key: "RADIO_RECEIVER_USAGE_ENABLED", SimVar: "L:A32NX_RADIO_RECEIVER_USAGE_ENABLED", Unit: UnitNumber, Default: "0"},
	{Key: "MODEL_WHEELCHOCKS_ENABLED", SimVar: "L:A32NX_MODEL_WHEELCHOCKS_ENABLED", Unit: UnitBool, Default: "1"},
	{Key: "MODEL_CONES_ENABLED", SimVar: "L:A32NX_MODEL_CONES_ENABLED", Unit: UnitBool, Default: "1"},
	{Key: "FO_SYNC_EFIS_ENABLED", SimVar: "L:A32NX_FO_SYNC_EFIS_ENABLED", Unit: UnitBool, Default: "0"},
	{Key: "MODEL_SATCOM_ENABLED", SimVar: "L:A32NX_SATCOM_ENABLED", Unit: UnitBool, Default: "0"},
	{Key: "CONFIG_PILOT_AVATAR_VISIBLE", SimVar: "L:A32NX_PILOT_AVATAR_VISIBLE_0", Unit: UnitBool, Default: "0"},
	{Key: "CONFIG_FIRST_OFFICER_AVATAR_VISIBLE", SimVar: "L:A32NX_PILOT_AVATAR_VISIBLE_1", Unit: UnitBool, Default: "0"},
	{Key: "GSX_PAYLOAD_SYNC", SimVar: "L:A32NX_GSX_PAYLOAD_SYNC_ENABLED", Unit: UnitBool, Default: "0"},
	{Key: "CONFIG_USING_METRIC_UNIT", SimVar: "L:A32NX_EFB_USING_METRIC_UNIT", Unit: UnitBool, Default: "1"},
	{Key: "CONFIG_A32NX_FWC_RADIO_AUTO_CALL_OUT_PINS", SimVar: "L:A32NX_FWC_RADIO_AUTO_CALL_OUT_PINS", Unit: UnitNumber, Default: strconv.Itoa(DefaultRadioAutoCallOuts)},
	{Key: "CONFIG_USING_PORTABLE_DEVICES", SimVar: "L:A32NX_CONFIG_USING_PORTABLE_DEVICES", Unit: UnitBool, Default: "1"},
	{Key: "REFUEL_RATE_SETTING", SimVar: "L:A32NX_EFB_REFUEL_RATE_SETTING", Unit: UnitNumber, Default: "0"},
	{
		Key:     "CONFIG_BOARDING_RATE",
		SimVar:  "L:A32NX_BOARDING_RATE",
		Unit:    UnitNumber,
		Default: "REAL",
		Enum:    map[string]float64{"REAL": 2, "FAST": 1, "INSTANT": 0},
	},
	{
		Key:     "CONFIG_ALIGN_TIME",
		SimVar:  "L:A32NX_CONFIG_ADIRS_IR_ALIGN_TIME",
		Unit:    UnitNumber,
		Default: "REAL",
		Enum:    map[string]float64{"REAL": 0, "FAST": 2, "INSTANT": 1},
	},
}

// Lookup ищет запись таблицы по имени настройки
func Lookup(key string) (Entry, bool) {
	for _, e := range Table {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}
