package simbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Topics(t *testing.T) {
	c := NewCodec("efb/sim/")

	assert.Equal(t, "efb/sim/simvar/set", c.SetTopic())
	assert.Equal(t, "efb/sim/simvar/value/L:A32NX_BOARDING_RATE", c.ValueTopic("L:A32NX_BOARDING_RATE"))
	assert.Equal(t, "efb/sim/metar/request", c.MetarRequestTopic())
	assert.Equal(t, "efb/sim/metar/response/7", c.MetarResponseTopic("7"))
	assert.Equal(t, []string{"efb/sim/simvar/value/#", "efb/sim/metar/response/#"}, c.Subscriptions())
}

func TestCodec_Parse(t *testing.T) {
	c := NewCodec("efb/sim")

	tests := []struct {
		name        string
		topic       string
		payload     string
		expectError bool
		check       func(t *testing.T, msg *Message)
	}{
		{
			name:    "Value with name from topic",
			topic:   "efb/sim/simvar/value/TOTAL WEIGHT",
			payload: `{"unit":"pounds","value":143300}`,
			check: func(t *testing.T, msg *Message) {
				assert.Equal(t, KindValue, msg.Kind)
				assert.Equal(t, "TOTAL WEIGHT", msg.Value.Name)
				assert.Equal(t, 143300.0, msg.Value.Value)
				assert.False(t, msg.Value.Timestamp.IsZero())
			},
		},
		{
			name:    "Value with name in payload",
			topic:   "efb/sim/simvar/value/alias",
			payload: `{"name":"L:A32NX_FAILURE_ACTIVATE","value":0}`,
			check: func(t *testing.T, msg *Message) {
				assert.Equal(t, "L:A32NX_FAILURE_ACTIVATE", msg.Value.Name)
			},
		},
		{
			name:    "Metar response",
			topic:   "efb/sim/metar/response/efb-api-1",
			payload: `{"icao":"EGLL","metarString":"EGLL 181050Z 24012KT 12/08 Q1015"}`,
			check: func(t *testing.T, msg *Message) {
				assert.Equal(t, KindMetar, msg.Kind)
				assert.Equal(t, "efb-api-1", msg.Metar.ID)
				assert.Equal(t, "EGLL", msg.Metar.ICAO)
			},
		},
		{name: "Invalid prefix", topic: "fb/b/ABC/f/1", payload: `{}`, expectError: true},
		{name: "Unsupported topic", topic: "efb/sim/unknown/x", payload: `{}`, expectError: true},
		{name: "Missing simvar name", topic: "efb/sim/simvar/value/", payload: `{}`, expectError: true},
		{name: "Broken value payload", topic: "efb/sim/simvar/value/X", payload: `{`, expectError: true},
		{name: "Broken metar payload", topic: "efb/sim/metar/response/1", payload: `[]`, expectError: true},
		{name: "Missing request id", topic: "efb/sim/metar/response/", payload: `{}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := c.Parse(tt.topic, []byte(tt.payload))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

func TestCodec_Encode(t *testing.T) {
	c := NewCodec("efb/sim")

	_, err := c.EncodeSet(SetRequest{Unit: "number"})
	assert.Error(t, err)

	data, err := c.EncodeSet(SetRequest{Name: "L:A32NX_BOARDING_RATE", Unit: "number", Value: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"L:A32NX_BOARDING_RATE","unit":"number","value":2}`, string(data))

	_, err = c.EncodeMetarRequest(MetarRequest{ICAO: "EGLL"})
	assert.Error(t, err)

	data, err = c.EncodeMetarRequest(MetarRequest{ID: "1", ICAO: "EGLL"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","icao":"EGLL"}`, string(data))
}
