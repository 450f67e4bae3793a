// Package simbridge связывает сервис с мостом симулятора через MQTT:
// запись переменных симулятора, получение их значений и запрос METAR.
package simbridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Топики относительно префикса моста
const (
	topicSimVarSet     = "simvar/set"
	topicSimVarValue   = "simvar/value"
	topicMetarRequest  = "metar/request"
	topicMetarResponse = "metar/response"
)

// SetRequest запрос записи переменной симулятора
type SetRequest struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// ValueUpdate текущее значение переменной, опубликованное мостом
type ValueUpdate struct {
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// MetarRequest запрос сводки METAR у симулятора (GET_METAR_BY_IDENT)
type MetarRequest struct {
	ID   string `json:"id"`
	ICAO string `json:"icao"`
}

// MetarResponse ответ симулятора на запрос METAR
type MetarResponse struct {
	ID          string `json:"id"`
	ICAO        string `json:"icao"`
	MetarString string `json:"metarString"`
	Error       string `json:"error,omitempty"`
}

// MessageKind тип входящего сообщения моста
type MessageKind int

const (
	KindValue MessageKind = iota + 1
	KindMetar
)

// Message разобранное входящее сообщение
type Message struct {
	Kind  MessageKind
	Value *ValueUpdate
	Metar *MetarResponse
}

// Codec кодирует исходящие и разбирает входящие сообщения моста
type Codec struct {
	prefix string
}

// NewCodec создает кодек для префикса топиков
func NewCodec(prefix string) *Codec {
	return &Codec{prefix: strings.TrimSuffix(prefix, "/")}
}

func (c *Codec) topic(suffix string) string {
	return c.prefix + "/" + suffix
}

// SetTopic топик записи переменных
func (c *Codec) SetTopic() string {
	return c.topic(topicSimVarSet)
}

// ValueTopic топик значения переменной
func (c *Codec) ValueTopic(name string) string {
	return c.topic(topicSimVarValue + "/" + name)
}

// MetarRequestTopic топик запросов METAR
func (c *Codec) MetarRequestTopic() string {
	return c.topic(topicMetarRequest)
}

// MetarResponseTopic топик ответа на запрос METAR
func (c *Codec) MetarResponseTopic(id string) string {
	return c.topic(topicMetarResponse + "/" + id)
}

// Subscriptions топики, на которые подписывается клиент
func (c *Codec) Subscriptions() []string {
	return []string{
		c.topic(topicSimVarValue + "/#"),
		c.topic(topicMetarResponse + "/#"),
	}
}

// EncodeSet кодирует запрос записи переменной
func (c *Codec) EncodeSet(req SetRequest) ([]byte, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("simvar name is required")
	}
	return json.Marshal(req)
}

// EncodeMetarRequest кодирует запрос METAR
func (c *Codec) EncodeMetarRequest(req MetarRequest) ([]byte, error) {
	if req.ID == "" || req.ICAO == "" {
		return nil, fmt.Errorf("metar request requires id and icao")
	}
	return json.Marshal(req)
}

// Parse разбирает входящее сообщение по топику.
// {prefix}/simvar/value/{name} или {prefix}/metar/response/{id}
func (c *Codec) Parse(topic string, payload []byte) (*Message, error) {
	rest, ok := strings.CutPrefix(topic, c.prefix+"/")
	if !ok {
		return nil, fmt.Errorf("invalid topic prefix: %s", topic)
	}

	switch {
	case strings.HasPrefix(rest, topicSimVarValue+"/"):
		name := strings.TrimPrefix(rest, topicSimVarValue+"/")
		if name == "" {
			return nil, fmt.Errorf("missing simvar name in topic: %s", topic)
		}

		var update ValueUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			return nil, fmt.Errorf("invalid simvar value payload: %w", err)
		}
		if update.Name == "" {
			update.Name = name
		}
		if update.Timestamp.IsZero() {
			update.Timestamp = time.Now()
		}
		return &Message{Kind: KindValue, Value: &update}, nil

	case strings.HasPrefix(rest, topicMetarResponse+"/"):
		id := strings.TrimPrefix(rest, topicMetarResponse+"/")

		var resp MetarResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, fmt.Errorf("invalid metar response payload: %w", err)
		}
		if resp.ID == "" {
			resp.ID = id
		}
		if resp.ID == "" {
			return nil, fmt.Errorf("missing request id in topic: %s", topic)
		}
		return &Message{Kind: KindMetar, Metar: &resp}, nil
	}

	return nil, fmt.Errorf("unsupported topic: %s", topic)
}
