package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger = utils.NewLoggerWithOutput("error", "text", &bytes.Buffer{})
}

func exampleOptions() *landingOptions {
	return &landingOptions{
		weight:        60000,
		flaps:         "full",
		condition:     "dry",
		approachSpeed: 135,
		windDirection: 270,
		windMagnitude: 10,
		runwayHeading: 270,
		runwayLength:  2500,
		temperature:   15,
		pressure:      1013,
	}
}

func TestRunLanding_Table(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runLanding(&out, exampleOptions()))

	text := out.String()
	assert.Contains(t, text, "Runway length: 2500 m")
	assert.Contains(t, text, "LOW")
	assert.Contains(t, text, "MAX")
	assert.NotContains(t, text, "EXCEEDS RUNWAY")
}

func TestRunLanding_JSONExceedsRunway(t *testing.T) {
	opts := exampleOptions()
	opts.runwayLength = 500
	opts.asJSON = true

	var out bytes.Buffer
	require.NoError(t, runLanding(&out, opts))

	var result performance.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.MaxExceedsRunway)
	assert.True(t, result.LowExceedsRunway)
	assert.GreaterOrEqual(t, result.LowAutobrakeLandingDist, result.MaxAutobrakeLandingDist)
}

func TestRunLanding_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *landingOptions)
	}{
		{"unknown flaps", func(o *landingOptions) { o.flaps = "CONF1" }},
		{"unknown condition", func(o *landingOptions) { o.condition = "ICY" }},
		{"weight out of range", func(o *landingOptions) { o.weight = 20000 }},
		{"negative runway length", func(o *landingOptions) { o.runwayLength = -500 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := exampleOptions()
			tt.modify(opts)
			assert.Error(t, runLanding(&bytes.Buffer{}, opts))
		})
	}
}

func TestParseCondition(t *testing.T) {
	c, err := parseCondition("medium_poor")
	require.NoError(t, err)
	assert.Equal(t, performance.RunwayMediumPoor, c)
}

func TestMetarCommand(t *testing.T) {
	c := newMetarCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs([]string{"EGLL", "221150Z", "24012KT", "9999", "SCT030", "12/07", "Q1018"})
	require.NoError(t, c.Execute())

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "EGLL", record["station"])
}
