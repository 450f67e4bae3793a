package simbridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/flybeeper/efb-backend/internal/config"
	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// TotalWeightVar переменная полной массы самолета (фунты)
const TotalWeightVar = "TOTAL WEIGHT"

var (
	// ErrNotConnected клиент не подключен к брокеру
	ErrNotConnected = errors.New("simulator bridge is not connected")

	// ErrNoValue мост еще не публиковал значение переменной
	ErrNoValue = errors.New("simvar value not available")
)

// ValueHandler получает обновления значений переменных
type ValueHandler func(update ValueUpdate)

// Client MQTT клиент моста симулятора
type Client struct {
	client    mqtt.Client
	config    *config.MQTTConfig
	logger    *utils.Logger
	codec     *Codec
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	connected bool
	mu        sync.RWMutex

	values   map[string]ValueUpdate
	handlers map[int]ValueHandler
	nextID   int
	pending  map[string]chan *MetarResponse
	seq      atomic.Uint64
}

// NewClient создает новый клиент моста
func NewClient(cfg *config.MQTTConfig, logger *utils.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	c := newClient(cfg, logger)

	// Настройка MQTT клиента
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetOrderMatters(cfg.OrderMatters)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// Подписки восстанавливаются при каждом подключении
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.setConnected(true)
		c.logger.WithField("broker", cfg.URL).Info("Connected to simulator bridge")
		c.subscribe(client)
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.WithField("error", err).Warn("Lost connection to simulator bridge")
	})

	c.client = mqtt.NewClient(opts)

	return c, nil
}

func newClient(cfg *config.MQTTConfig, logger *utils.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:   cfg,
		logger:   logger.WithField("component", "simbridge"),
		codec:    NewCodec(cfg.TopicPrefix),
		ctx:      ctx,
		cancel:   cancel,
		values:   make(map[string]ValueUpdate),
		handlers: make(map[int]ValueHandler),
		pending:  make(map[string]chan *MetarResponse),
	}
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()

	if connected {
		metrics.MQTTConnectionStatus.Set(1)
	} else {
		metrics.MQTTConnectionStatus.Set(0)
	}
}

func (c *Client) subscribe(client mqtt.Client) {
	for _, topic := range c.codec.Subscriptions() {
		if token := client.Subscribe(topic, 1, c.messageHandler()); token.Wait() && token.Error() != nil {
			c.logger.WithFields(map[string]interface{}{
				"topic": topic,
				"error": token.Error(),
			}).Error("Failed to subscribe to topic")
			continue
		}
		c.logger.WithField("topic", topic).Info("Subscribed to bridge topic")
	}
}

// Connect подключается к MQTT брокеру
func (c *Client) Connect() error {
	c.logger.WithField("broker", c.config.URL).Info("Connecting to simulator bridge")

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	// Ждем подтверждения подключения
	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("connection timeout")
		case <-ticker.C:
			c.mu.RLock()
			connected := c.connected
			c.mu.RUnlock()

			if connected {
				return nil
			}
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}

// Disconnect отключается от MQTT брокера
func (c *Client) Disconnect() {
	c.logger.Info("Disconnecting from simulator bridge")

	c.cancel()

	if c.client.IsConnected() {
		c.client.Disconnect(1000) // 1 секунда на graceful disconnect
	}

	c.wg.Wait()
	c.logger.Info("Simulator bridge disconnected")
}

// IsConnected проверяет статус подключения
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetSimVarValue записывает переменную симулятора
func (c *Client) SetSimVarValue(ctx context.Context, name, unit string, value float64) error {
	payload, err := c.codec.EncodeSet(SetRequest{Name: name, Unit: unit, Value: value})
	if err != nil {
		metrics.SimVarWrites.WithLabelValues("error").Inc()
		return err
	}

	if err := c.publish(ctx, c.codec.SetTopic(), payload); err != nil {
		metrics.SimVarWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("set simvar %s: %w", name, err)
	}

	metrics.SimVarWrites.WithLabelValues("success").Inc()
	c.logger.WithFields(map[string]interface{}{
		"simvar": name,
		"unit":   unit,
		"value":  value,
	}).Debug("Simvar write published")
	return nil
}

// SimVarValue последнее известное значение переменной
func (c *Client) SimVarValue(name string) (ValueUpdate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// TotalWeightPounds полная масса самолета по последнему значению моста
func (c *Client) TotalWeightPounds(_ context.Context) (float64, error) {
	v, ok := c.SimVarValue(TotalWeightVar)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoValue, TotalWeightVar)
	}
	return v.Value, nil
}

// OnValue подписывает обработчик на обновления значений, возвращает функцию отписки
func (c *Client) OnValue(h ValueHandler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = h
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// RequestMetar запрашивает у симулятора сводку METAR по коду аэродрома
func (c *Client) RequestMetar(ctx context.Context, icao string) (*metar.SimMetar, error) {
	id := fmt.Sprintf("%s-%d", c.config.ClientID, c.seq.Add(1))
	payload, err := c.codec.EncodeMetarRequest(MetarRequest{ID: id, ICAO: icao})
	if err != nil {
		return nil, err
	}

	ch := make(chan *MetarResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.publish(ctx, c.codec.MetarRequestTopic(), payload); err != nil {
		return nil, fmt.Errorf("request metar %s: %w", icao, err)
	}

	timeout := c.config.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("simulator metar error: %s", resp.Error)
		}
		return &metar.SimMetar{ICAO: resp.ICAO, MetarString: resp.MetarString}, nil
	case <-timer.C:
		return nil, fmt.Errorf("metar request %s timed out after %s", icao, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrNotConnected
	}
}

func (c *Client) publish(ctx context.Context, topic string, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"topic":        topic,
		"payload_size": len(payload),
	}).Debug("Published MQTT message")
	return nil
}

// messageHandler создает обработчик MQTT сообщений
func (c *Client) messageHandler() mqtt.MessageHandler {
	// обрабатываем в порядке доставки, иначе старое значение переменной может перезаписать новое
	return func(client mqtt.Client, msg mqtt.Message) {
		c.wg.Add(1)
		defer c.wg.Done()
		c.handleMessage(msg.Topic(), msg.Payload())
	}
}

func (c *Client) handleMessage(topic string, payload []byte) {
	msg, err := c.codec.Parse(topic, payload)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"topic":        topic,
			"error":        err,
			"payload_size": len(payload),
		}).Error("Failed to parse bridge message")
		metrics.MQTTParseErrors.Inc()
		return
	}

	switch msg.Kind {
	case KindValue:
		metrics.SimVarUpdatesReceived.Inc()
		c.mu.Lock()
		c.values[msg.Value.Name] = *msg.Value
		handlers := make([]ValueHandler, 0, len(c.handlers))
		for _, h := range c.handlers {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()

		for _, h := range handlers {
			h(*msg.Value)
		}

	case KindMetar:
		c.mu.RLock()
		ch, ok := c.pending[msg.Metar.ID]
		c.mu.RUnlock()
		if !ok {
			c.logger.WithField("request_id", msg.Metar.ID).Debug("METAR response for unknown request")
			return
		}
		select {
		case ch <- msg.Metar:
		default:
		}
	}
}

// GetStats возвращает статистику клиента
func (c *Client) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"connected":        c.connected,
		"client_id":        c.config.ClientID,
		"broker_url":       c.config.URL,
		"topic_prefix":     strings.TrimSuffix(c.config.TopicPrefix, "/"),
		"known_simvars":    len(c.values),
		"pending_requests": len(c.pending),
	}
}
