// Package failures управляет отказами систем самолета: каталог по главам ATA,
// активация и деактивация через мост симулятора с ожиданием подтверждения.
package failures

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flybeeper/efb-backend/internal/models"
)

// Catalog неизменяемый каталог отказов
type Catalog struct {
	failures []models.Failure
	byID     map[int]models.Failure
}

// NewCatalog строит каталог, отбрасывая невалидные записи и дубликаты
func NewCatalog(failures []models.Failure) (*Catalog, error) {
	c := &Catalog{
		failures: make([]models.Failure, 0, len(failures)),
		byID:     make(map[int]models.Failure, len(failures)),
	}

	for _, f := range failures {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("invalid failure %d: %w", f.Identifier, err)
		}
		if _, exists := c.byID[f.Identifier]; exists {
			return nil, fmt.Errorf("duplicate failure identifier %d", f.Identifier)
		}
		c.byID[f.Identifier] = f
		c.failures = append(c.failures, f)
	}

	sort.SliceStable(c.failures, func(i, j int) bool {
		if c.failures[i].Ata != c.failures[j].Ata {
			return c.failures[i].Ata < c.failures[j].Ata
		}
		return c.failures[i].Identifier < c.failures[j].Identifier
	})

	return c, nil
}

// All все отказы по главам
func (c *Catalog) All() []models.Failure {
	out := make([]models.Failure, len(c.failures))
	copy(out, c.failures)
	return out
}

// Get отказ по идентификатору
func (c *Catalog) Get(id int) (models.Failure, bool) {
	f, ok := c.byID[id]
	return f, ok
}

// Len количество отказов
func (c *Catalog) Len() int {
	return len(c.failures)
}

// ByChapter отказы одной главы ATA
func (c *Catalog) ByChapter(chapter models.AtaChapter) []models.Failure {
	var out []models.Failure
	for _, f := range c.failures {
		if f.Ata == chapter {
			out = append(out, f)
		}
	}
	return out
}

// Chapters главы, в которых есть хотя бы один отказ
func (c *Catalog) Chapters() []models.AtaChapter {
	var out []models.AtaChapter
	for _, f := range c.failures {
		if len(out) == 0 || out[len(out)-1] != f.Ata {
			out = append(out, f.Ata)
		}
	}
	return out
}

// Search отказы, в названии которых встречается запрос (без учета регистра)
func (c *Catalog) Search(query string) []models.Failure {
	if query == "" {
		return c.All()
	}
	var out []models.Failure
	for _, f := range c.failures {
		if HighlightedTerm(f.Name, query) != "" {
			out = append(out, f)
		}
	}
	return out
}

// HighlightedTerm часть названия, совпавшая с запросом в верхнем регистре.
// Пустая строка, если запрос пуст или не найден.
func HighlightedTerm(name, query string) string {
	query = strings.ToUpper(query)
	if query == "" {
		return ""
	}

	upper := strings.ToUpper(name)
	idx := strings.Index(upper, query)
	if idx == -1 {
		return ""
	}

	end := idx + len(query)
	// ToUpper может изменить длину не-ASCII строки
	if len(upper) != len(name) || end > len(name) {
		return upper[idx:end]
	}
	return name[idx:end]
}

// DefaultCatalog встроенный каталог A320, если база данных недоступна
func DefaultCatalog() []models.Failure {
	return []models.Failure{
		{Identifier: 21000, Ata: models.AtaAirConditioning, Name: "CABIN FAN 1"},
		{Identifier: 21001, Ata: models.AtaAirConditioning, Name: "CABIN FAN 2"},
		{Identifier: 21002, Ata: models.AtaAirConditioning, Name: "Hot air pressure regulating valve"},
		{Identifier: 21003, Ata: models.AtaAirConditioning, Name: "Trim air system fault"},
		{Identifier: 21004, Ata: models.AtaAirConditioning, Name: "CPC 1"},
		{Identifier: 21005, Ata: models.AtaAirConditioning, Name: "CPC 2"},
		{Identifier: 22000, Ata: models.AtaAutoFlight, Name: "FCU 1"},
		{Identifier: 22001, Ata: models.AtaAutoFlight, Name: "FCU 2"},
		{Identifier: 23000, Ata: models.AtaCommunications, Name: "RMP 1"},
		{Identifier: 23001, Ata: models.AtaCommunications, Name: "RMP 2"},
		{Identifier: 23002, Ata: models.AtaCommunications, Name: "RMP 3"},
		{Identifier: 24000, Ata: models.AtaElectricalPower, Name: "TR 1"},
		{Identifier: 24001, Ata: models.AtaElectricalPower, Name: "TR 2"},
		{Identifier: 24002, Ata: models.AtaElectricalPower, Name: "TR 3 (ESS)"},
		{Identifier: 24004, Ata: models.AtaElectricalPower, Name: "AC ESS bus"},
		{Identifier: 24005, Ata: models.AtaElectricalPower, Name: "AC ESS SHED bus"},
		{Identifier: 24006, Ata: models.AtaElectricalPower, Name: "DC ESS bus"},
		{Identifier: 24007, Ata: models.AtaElectricalPower, Name: "DC ESS SHED bus"},
		{Identifier: 24008, Ata: models.AtaElectricalPower, Name: "DC BAT bus"},
		{Identifier: 24009, Ata: models.AtaElectricalPower, Name: "DC 1 bus"},
		{Identifier: 24010, Ata: models.AtaElectricalPower, Name: "DC 2 bus"},
		{Identifier: 24011, Ata: models.AtaElectricalPower, Name: "Static inverter"},
		{Identifier: 26000, Ata: models.AtaFireProtection, Name: "APU fire detection loop A"},
		{Identifier: 26001, Ata: models.AtaFireProtection, Name: "Engine 1 fire detection loop A"},
		{Identifier: 27000, Ata: models.AtaFlightControls, Name: "ELAC 1"},
		{Identifier: 27001, Ata: models.AtaFlightControls, Name: "ELAC 2"},
		{Identifier: 27002, Ata: models.AtaFlightControls, Name: "SEC 1"},
		{Identifier: 27003, Ata: models.AtaFlightControls, Name: "SEC 2"},
		{Identifier: 27004, Ata: models.AtaFlightControls, Name: "SEC 3"},
		{Identifier: 27005, Ata: models.AtaFlightControls, Name: "FCDC 1"},
		{Identifier: 27006, Ata: models.AtaFlightControls, Name: "FCDC 2"},
		{Identifier: 27010, Ata: models.AtaFlightControls, Name: "Yaw damper 1"},
		{Identifier: 27011, Ata: models.AtaFlightControls, Name: "Yaw damper 2"},
		{Identifier: 28000, Ata: models.AtaFuel, Name: "Left inner tank pump 1"},
		{Identifier: 28001, Ata: models.AtaFuel, Name: "Left inner tank pump 2"},
		{Identifier: 28002, Ata: models.AtaFuel, Name: "Right inner tank pump 1"},
		{Identifier: 28003, Ata: models.AtaFuel, Name: "Right inner tank pump 2"},
		{Identifier: 29000, Ata: models.AtaHydraulicPower, Name: "Green reservoir leak"},
		{Identifier: 29001, Ata: models.AtaHydraulicPower, Name: "Blue reservoir leak"},
		{Identifier: 29002, Ata: models.AtaHydraulicPower, Name: "Yellow reservoir leak"},
		{Identifier: 29003, Ata: models.AtaHydraulicPower, Name: "Green reservoir air leak"},
		{Identifier: 29004, Ata: models.AtaHydraulicPower, Name: "Blue reservoir air leak"},
		{Identifier: 29005, Ata: models.AtaHydraulicPower, Name: "Yellow reservoir air leak"},
		{Identifier: 29006, Ata: models.AtaHydraulicPower, Name: "Green engine pump"},
		{Identifier: 29007, Ata: models.AtaHydraulicPower, Name: "Yellow engine pump"},
		{Identifier: 29008, Ata: models.AtaHydraulicPower, Name: "Blue electric pump"},
		{Identifier: 29009, Ata: models.AtaHydraulicPower, Name: "Yellow electric pump"},
		{Identifier: 31000, Ata: models.AtaIndicating, Name: "FWC 1"},
		{Identifier: 31001, Ata: models.AtaIndicating, Name: "FWC 2"},
		{Identifier: 31002, Ata: models.AtaIndicating, Name: "SDAC 1"},
		{Identifier: 31003, Ata: models.AtaIndicating, Name: "SDAC 2"},
		{Identifier: 32000, Ata: models.AtaLandingGear, Name: "LGCIU 1"},
		{Identifier: 32001, Ata: models.AtaLandingGear, Name: "LGCIU 2"},
		{Identifier: 32002, Ata: models.AtaLandingGear, Name: "Brake accumulator leak"},
		{Identifier: 34000, Ata: models.AtaNavigation, Name: "RA 1"},
		{Identifier: 34001, Ata: models.AtaNavigation, Name: "RA 2"},
		{Identifier: 34002, Ata: models.AtaNavigation, Name: "ADR 1"},
		{Identifier: 34003, Ata: models.AtaNavigation, Name: "ADR 2"},
		{Identifier: 34004, Ata: models.AtaNavigation, Name: "ADR 3"},
		{Identifier: 34005, Ata: models.AtaNavigation, Name: "IR 1"},
		{Identifier: 34006, Ata: models.AtaNavigation, Name: "IR 2"},
		{Identifier: 34007, Ata: models.AtaNavigation, Name: "IR 3"},
		{Identifier: 36000, Ata: models.AtaPneumatic, Name: "Engine 1 bleed air leak"},
		{Identifier: 36001, Ata: models.AtaPneumatic, Name: "Engine 2 bleed air leak"},
		{Identifier: 36002, Ata: models.AtaPneumatic, Name: "APU bleed air leak"},
		{Identifier: 70000, Ata: models.AtaEngine, Name: "Engine 1 shutdown"},
		{Identifier: 70001, Ata: models.AtaEngine, Name: "Engine 2 shutdown"},
	}
}
