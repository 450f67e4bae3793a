package performance

// landingData эталонная дистанция и поправки для сочетания
// режима автоторможения, состояния ВПП и конфигурации закрылков.
// Эталон: 68 т, VAPP = VLS+5, уровень моря, МСА, штиль, горизонтальная ВПП, без реверса.
type landingData struct {
	refDistance                   float64 // м
	weightCorrectionAbove         float64 // м на 1 т выше эталона
	weightCorrectionBelow         float64 // м на 1 т ниже эталона (отрицательная)
	speedCorrection               float64 // м на 5 кт выше VLS+5
	altitudeCorrection            float64 // м на 1000 фт барометрической высоты
	windCorrection                float64 // м на 5 кт попутного ветра
	tempCorrection                float64 // м на 10 °C выше МСА
	slopeCorrection               float64 // м на 1 % уклона вниз
	reverserCorrection            float64 // м на каждый работающий реверс (отрицательная)
	overweightProcedureCorrection float64 // м
	autolandCorrection            float64 // м
}

const (
	referenceWeightTonnes = 68.0
	reverserCount         = 2.0
)

// Отрицательные поправки одинаковы для всех режимов одного сочетания
// ВПП/закрылки, положительные не убывают от MAX к LOW. Вместе с
// эталонами это сохраняет порядок LOW >= MEDIUM >= MAX при любых входных данных.
var landingDataTable = map[AutobrakeMode]map[RunwayCondition]map[FlapsConfig]landingData{
	AutobrakeMax: {
		RunwayDry: {
			FlapsFull:  {1160, 20, -10, 70, 40, 130, 30, 20, -10, 910, 280},
			FlapsConf3: {1250, 20, -10, 80, 40, 140, 30, 20, -10, 1000, 300},
		},
		RunwayGood: {
			FlapsFull:  {1470, 40, -15, 90, 50, 170, 40, 50, -20, 820, 250},
			FlapsConf3: {1580, 40, -15, 100, 60, 180, 40, 50, -20, 900, 270},
		},
		RunwayGoodMedium: {
			FlapsFull:  {1700, 50, -20, 110, 60, 220, 50, 90, -40, 880, 270},
			FlapsConf3: {1830, 50, -20, 120, 70, 240, 50, 100, -40, 960, 290},
		},
		RunwayMedium: {
			FlapsFull:  {1930, 60, -20, 120, 70, 260, 60, 130, -60, 920, 290},
			FlapsConf3: {2080, 60, -25, 130, 80, 280, 60, 140, -60, 1000, 310},
		},
		RunwayMediumPoor: {
			FlapsFull:  {2230, 70, -25, 140, 80, 310, 70, 190, -90, 1010, 320},
			FlapsConf3: {2400, 70, -25, 150, 90, 340, 70, 210, -90, 1100, 340},
		},
		RunwayPoor: {
			FlapsFull:  {2700, 80, -30, 160, 100, 400, 80, 300, -120, 1150, 370},
			FlapsConf3: {2900, 90, -30, 170, 110, 430, 90, 330, -130, 1250, 400},
		},
	},
	AutobrakeMedium: {
		RunwayDry: {
			FlapsFull:  {1380, 30, -10, 80, 50, 140, 40, 30, -10, 1000, 290},
			FlapsConf3: {1480, 30, -10, 90, 60, 150, 40, 30, -10, 1090, 310},
		},
		RunwayGood: {
			FlapsFull:  {1600, 40, -15, 100, 60, 180, 50, 60, -20, 890, 260},
			FlapsConf3: {1720, 40, -15, 110, 70, 190, 50, 60, -20, 970, 280},
		},
		RunwayGoodMedium: {
			FlapsFull:  {1790, 50, -20, 110, 70, 230, 60, 100, -40, 920, 280},
			FlapsConf3: {1920, 50, -20, 120, 80, 250, 60, 110, -40, 1000, 300},
		},
		RunwayMedium: {
			FlapsFull:  {1990, 60, -20, 130, 80, 270, 60, 140, -60, 950, 300},
			FlapsConf3: {2140, 60, -25, 140, 90, 290, 70, 150, -60, 1030, 320},
		},
		RunwayMediumPoor: {
			FlapsFull:  {2280, 70, -25, 140, 90, 320, 70, 200, -90, 1030, 330},
			FlapsConf3: {2450, 70, -25, 150, 100, 350, 80, 220, -90, 1120, 350},
		},
		RunwayPoor: {
			FlapsFull:  {2740, 80, -30, 160, 100, 410, 90, 310, -120, 1170, 380},
			FlapsConf3: {2950, 90, -30, 170, 110, 440, 100, 340, -130, 1270, 410},
		},
	},
	AutobrakeLow: {
		RunwayDry: {
			FlapsFull:  {1860, 40, -10, 100, 70, 190, 50, 40, -10, 1150, 300},
			FlapsConf3: {1990, 40, -10, 110, 80, 200, 60, 40, -10, 1250, 320},
		},
		RunwayGood: {
			FlapsFull:  {1930, 50, -15, 110, 70, 200, 60, 70, -20, 1000, 280},
			FlapsConf3: {2070, 50, -15, 120, 80, 210, 70, 70, -20, 1090, 300},
		},
		RunwayGoodMedium: {
			FlapsFull:  {2040, 60, -20, 120, 80, 240, 70, 110, -40, 990, 290},
			FlapsConf3: {2190, 60, -20, 130, 90, 260, 80, 120, -40, 1080, 310},
		},
		RunwayMedium: {
			FlapsFull:  {2190, 70, -20, 130, 90, 280, 70, 150, -60, 1000, 310},
			FlapsConf3: {2350, 70, -25, 140, 100, 300, 80, 160, -60, 1090, 330},
		},
		RunwayMediumPoor: {
			FlapsFull:  {2420, 80, -25, 150, 100, 330, 80, 210, -90, 1080, 340},
			FlapsConf3: {2600, 80, -25, 160, 110, 360, 90, 230, -90, 1180, 360},
		},
		RunwayPoor: {
			FlapsFull:  {2850, 90, -30, 170, 110, 420, 90, 320, -120, 1200, 390},
			FlapsConf3: {3060, 100, -30, 180, 120, 450, 100, 350, -130, 1300, 420},
		},
	},
}

// vlsPoint точка таблицы VLS
type vlsPoint struct {
	weightTonnes float64
	speed        float64
}

// VLS по массе для каждой конфигурации, между точками линейная интерполяция
var vlsTable = map[FlapsConfig][]vlsPoint{
	FlapsFull: {
		{40, 107}, {45, 113}, {50, 119}, {55, 124}, {60, 129},
		{65, 134}, {70, 138}, {75, 143}, {80, 147},
	},
	FlapsConf3: {
		{40, 112}, {45, 118}, {50, 124}, {55, 129}, {60, 134},
		{65, 139}, {70, 143}, {75, 148}, {80, 152},
	},
}
