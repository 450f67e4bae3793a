package simbridge

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken завершенный токен MQTT операции
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	payload []byte
}

// fakeBroker записывает публикации вместо отправки брокеру
type fakeBroker struct {
	mu        sync.Mutex
	published []published
	onPublish func(topic string, payload []byte)
}

func (b *fakeBroker) IsConnected() bool      { return true }
func (b *fakeBroker) IsConnectionOpen() bool { return true }
func (b *fakeBroker) Connect() mqtt.Token    { return newFakeToken(nil) }
func (b *fakeBroker) Disconnect(uint)        {}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	data := payload.([]byte)
	b.mu.Lock()
	b.published = append(b.published, published{topic: topic, payload: data})
	hook := b.onPublish
	b.mu.Unlock()

	if hook != nil {
		go hook(topic, data)
	}
	return newFakeToken(nil)
}

func (b *fakeBroker) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return newFakeToken(nil)
}

func (b *fakeBroker) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newFakeToken(nil)
}

func (b *fakeBroker) Unsubscribe(...string) mqtt.Token        { return newFakeToken(nil) }
func (b *fakeBroker) AddRoute(string, mqtt.MessageHandler)    {}
func (b *fakeBroker) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func (b *fakeBroker) last() published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

func newTestClient(t *testing.T, connected bool) (*Client, *fakeBroker) {
	t.Helper()
	cfg := &config.MQTTConfig{
		URL:            "tcp://localhost:1883",
		ClientID:       "efb-test",
		TopicPrefix:    "efb/sim",
		RequestTimeout: 200 * time.Millisecond,
	}
	c := newClient(cfg, utils.NewLoggerWithOutput("error", "text", io.Discard))
	broker := &fakeBroker{}
	c.client = broker
	c.setConnected(connected)
	return c, broker
}

func TestNewClient_Validation(t *testing.T) {
	logger := utils.NewLoggerWithOutput("error", "text", io.Discard)

	_, err := NewClient(nil, logger)
	assert.Error(t, err)

	_, err = NewClient(&config.MQTTConfig{URL: "tcp://localhost:1883"}, nil)
	assert.Error(t, err)

	c, err := NewClient(&config.MQTTConfig{URL: "tcp://localhost:1883", ClientID: "x", TopicPrefix: "efb/sim"}, logger)
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
}

func TestClient_SetSimVarValue(t *testing.T) {
	c, broker := newTestClient(t, true)

	err := c.SetSimVarValue(context.Background(), "L:A32NX_EFB_BRIGHTNESS", "number", 75)
	require.NoError(t, err)

	msg := broker.last()
	assert.Equal(t, "efb/sim/simvar/set", msg.topic)

	var req SetRequest
	require.NoError(t, json.Unmarshal(msg.payload, &req))
	assert.Equal(t, SetRequest{Name: "L:A32NX_EFB_BRIGHTNESS", Unit: "number", Value: 75}, req)
}

func TestClient_SetSimVarValueNotConnected(t *testing.T) {
	c, broker := newTestClient(t, false)

	err := c.SetSimVarValue(context.Background(), "L:A32NX_EFB_BRIGHTNESS", "number", 1)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, broker.published)
}

func TestClient_ValueUpdates(t *testing.T) {
	c, _ := newTestClient(t, true)

	_, err := c.TotalWeightPounds(context.Background())
	assert.ErrorIs(t, err, ErrNoValue)

	var received []ValueUpdate
	unsubscribe := c.OnValue(func(u ValueUpdate) { received = append(received, u) })

	c.handleMessage("efb/sim/simvar/value/TOTAL WEIGHT", []byte(`{"unit":"pounds","value":143300}`))

	weight, err := c.TotalWeightPounds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 143300.0, weight)
	require.Len(t, received, 1)
	assert.Equal(t, TotalWeightVar, received[0].Name)

	unsubscribe()
	c.handleMessage("efb/sim/simvar/value/TOTAL WEIGHT", []byte(`{"value":140000}`))
	assert.Len(t, received, 1)

	v, ok := c.SimVarValue(TotalWeightVar)
	require.True(t, ok)
	assert.Equal(t, 140000.0, v.Value)
}

// fakeMessage входящее MQTT сообщение
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestClient_MessageHandlerKeepsOrder(t *testing.T) {
	c, _ := newTestClient(t, true)

	var mu sync.Mutex
	var seen []float64
	c.OnValue(func(u ValueUpdate) {
		mu.Lock()
		seen = append(seen, u.Value)
		mu.Unlock()
	})

	handler := c.messageHandler()
	expected := make([]float64, 0, 50)
	for i := 1; i <= 50; i++ {
		payload, err := json.Marshal(map[string]interface{}{"value": i})
		require.NoError(t, err)
		handler(nil, &fakeMessage{topic: "efb/sim/simvar/value/L:A32NX_FAILURE_ACTIVATE", payload: payload})
		expected = append(expected, float64(i))

		// Значение обновлено до возврата из обработчика
		v, ok := c.SimVarValue("L:A32NX_FAILURE_ACTIVATE")
		require.True(t, ok)
		require.Equal(t, float64(i), v.Value)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, expected, seen)
}

func TestClient_InvalidMessageIgnored(t *testing.T) {
	c, _ := newTestClient(t, true)

	c.handleMessage("other/topic", []byte(`{}`))
	c.handleMessage("efb/sim/simvar/value/X", []byte(`not json`))

	assert.Equal(t, 0, c.GetStats()["known_simvars"])
}

func TestClient_RequestMetar(t *testing.T) {
	c, broker := newTestClient(t, true)

	broker.onPublish = func(topic string, payload []byte) {
		if topic != "efb/sim/metar/request" {
			return
		}
		var req MetarRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return
		}
		resp, _ := json.Marshal(MetarResponse{
			ICAO:        req.ICAO,
			MetarString: req.ICAO + " 181050Z 24012KT 9999 12/08 Q1015",
		})
		c.handleMessage("efb/sim/metar/response/"+req.ID, resp)
	}

	got, err := c.RequestMetar(context.Background(), "EGLL")
	require.NoError(t, err)
	assert.Equal(t, "EGLL", got.ICAO)
	assert.Contains(t, got.MetarString, "Q1015")
	assert.Equal(t, 0, c.GetStats()["pending_requests"])
}

func TestClient_RequestMetarBridgeError(t *testing.T) {
	c, broker := newTestClient(t, true)

	broker.onPublish = func(topic string, payload []byte) {
		var req MetarRequest
		_ = json.Unmarshal(payload, &req)
		c.handleMessage("efb/sim/metar/response/"+req.ID, []byte(`{"error":"station not found"}`))
	}

	_, err := c.RequestMetar(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "station not found")
}

func TestClient_RequestMetarTimeout(t *testing.T) {
	c, _ := newTestClient(t, true)

	start := time.Now()
	_, err := c.RequestMetar(context.Background(), "EGLL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestClient_RequestMetarCancelled(t *testing.T) {
	c, _ := newTestClient(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RequestMetar(ctx, "EGLL")
	assert.ErrorIs(t, err, context.Canceled)
}
