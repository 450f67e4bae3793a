package benchmarks

import (
	"testing"

	"github.com/flybeeper/efb-backend/internal/metar"
)

// Сводки разной длины и формата
var sampleMetars = []struct {
	name string
	raw  string
}{
	{"Short_Q", "EGLL 221150Z 24012KT 9999 SCT030 12/07 Q1018"},
	{"Gust_A", "KJFK 221151Z 31015G25KT 10SM FEW050 M02/M12 A3012"},
	{"Trailer", "LFPG 221200Z 27008KT CAVOK 15/09 Q1013 TEMPO 4000 RA BECMG 30012KT"},
	{"MPS", "METAR UUEE 221200Z VRB02MPS 9999 OVC020 M05/M08 Q1025 RMK QFE741="},
}

// BenchmarkParseMetar разбор сырых сводок
func BenchmarkParseMetar(b *testing.B) {
	for _, tc := range sampleMetars {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = metar.Parse(tc.raw)
			}
		})
	}
}

// BenchmarkParseMetarParallel разбор при конкурентных запросах
func BenchmarkParseMetarParallel(b *testing.B) {
	raw := sampleMetars[0].raw
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = metar.Parse(raw)
		}
	})
}

// BenchmarkParseMetarMalformed отказ на некорректной сводке
func BenchmarkParseMetarMalformed(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = metar.Parse("EGLL 221150Z 9999 SCT030")
	}
}
