package models

import (
	"fmt"
	"sort"
)

// AtaChapter номер главы ATA 100
type AtaChapter int

// Главы ATA, для которых есть отказы
const (
	AtaAirConditioning AtaChapter = 21
	AtaAutoFlight      AtaChapter = 22
	AtaCommunications  AtaChapter = 23
	AtaElectricalPower AtaChapter = 24
	AtaFireProtection  AtaChapter = 26
	AtaFlightControls  AtaChapter = 27
	AtaFuel            AtaChapter = 28
	AtaHydraulicPower  AtaChapter = 29
	AtaIndicating      AtaChapter = 31
	AtaLandingGear     AtaChapter = 32
	AtaNavigation      AtaChapter = 34
	AtaPneumatic       AtaChapter = 36
	AtaEngine          AtaChapter = 70
)

var ataChapterNames = map[AtaChapter]string{
	AtaAirConditioning: "Air Conditioning",
	AtaAutoFlight:      "Auto Flight",
	AtaCommunications:  "Communications",
	AtaElectricalPower: "Electrical Power",
	AtaFireProtection:  "Fire Protection",
	AtaFlightControls:  "Flight Controls",
	AtaFuel:            "Fuel",
	AtaHydraulicPower:  "Hydraulic Power",
	AtaIndicating:      "Indicating / Recording Systems",
	AtaLandingGear:     "Landing Gear",
	AtaNavigation:      "Navigation",
	AtaPneumatic:       "Pneumatic",
	AtaEngine:          "Engine",
}

// Name название главы или "ATA NN" для неизвестной
func (c AtaChapter) Name() string {
	if name, ok := ataChapterNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ATA %d", int(c))
}

// KnownAtaChapters все известные главы по возрастанию
func KnownAtaChapters() []AtaChapter {
	chapters := make([]AtaChapter, 0, len(ataChapterNames))
	for c := range ataChapterNames {
		chapters = append(chapters, c)
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i] < chapters[j] })
	return chapters
}

// Failure отказ, который можно активировать в симуляторе
type Failure struct {
	Identifier int        `json:"identifier"` // уникален, первые две цифры совпадают с главой ATA
	Ata        AtaChapter `json:"ata"`
	Name       string     `json:"name"`
}

// Validate проверяет корректность записи отказа
func (f *Failure) Validate() error {
	if f.Identifier <= 0 {
		return fmt.Errorf("invalid failure identifier: %d", f.Identifier)
	}
	if f.Ata <= 0 {
		return fmt.Errorf("invalid ATA chapter: %d", f.Ata)
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
