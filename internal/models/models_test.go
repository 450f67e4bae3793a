package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFailure_Validate(t *testing.T) {
	tests := []struct {
		name    string
		failure Failure
		wantErr bool
	}{
		{"valid", Failure{Identifier: 24000, Ata: AtaElectricalPower, Name: "TR 1"}, false},
		{"zero identifier", Failure{Ata: AtaElectricalPower, Name: "TR 1"}, true},
		{"missing chapter", Failure{Identifier: 24000, Name: "TR 1"}, true},
		{"missing name", Failure{Identifier: 24000, Ata: AtaElectricalPower}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.failure.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAtaChapter_Name(t *testing.T) {
	assert.Equal(t, "Hydraulic Power", AtaHydraulicPower.Name())
	assert.Equal(t, "ATA 99", AtaChapter(99).Name())

	chapters := KnownAtaChapters()
	assert.Equal(t, AtaAirConditioning, chapters[0])
	assert.Equal(t, AtaEngine, chapters[len(chapters)-1])
}

func TestLandingCalculation_Validate(t *testing.T) {
	valid := LandingCalculation{
		ICAO:           "LFPG",
		Weight:         65000,
		MaxDistance:    1124,
		MediumDistance: 1346,
		LowDistance:    1830,
		RunwayLength:   3000,
		CreatedAt:      time.Now(),
	}
	assert.NoError(t, valid.Validate())

	noWeight := valid
	noWeight.Weight = 0
	assert.Error(t, noWeight.Validate())

	noDistance := valid
	noDistance.LowDistance = 0
	assert.Error(t, noDistance.Validate())

	noTime := valid
	noTime.CreatedAt = time.Time{}
	assert.Error(t, noTime.Validate())
}
