package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flybeeper/efb-backend/internal/failures"
	"github.com/flybeeper/efb-backend/internal/performance"
	"github.com/flybeeper/efb-backend/pkg/pool"
	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Format формат кадров WebSocket
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

// Типы сообщений WebSocket
const (
	MessageWelcome  = "welcome"
	MessageLanding  = "landing"
	MessageFailures = "failures"
)

// Envelope сообщение WebSocket.
// В формате protobuf кадр содержит google.protobuf.Struct с теми же полями.
type Envelope struct {
	Type      string      `json:"type"`
	Sequence  uint64      `json:"sequence"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// LandingPayload состояние формы расчета посадки для клиентов
type LandingPayload struct {
	State   performance.LandingState   `json:"state"`
	Display *performance.DisplayValues `json:"display,omitempty"`
}

// FailuresPayload состояние отказов для клиентов
type FailuresPayload = failures.Snapshot

func parseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatProtobuf:
		return FormatProtobuf, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

func newEnvelope(msgType string, seq uint64, data interface{}) Envelope {
	return Envelope{
		Type:      msgType,
		Sequence:  seq,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// encodeFrame кодирует сообщение и возвращает тип кадра WebSocket
func encodeFrame(format Format, env Envelope) ([]byte, int, error) {
	buf := pool.Global.GetBuffer()
	defer pool.Global.PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(env); err != nil {
		return nil, 0, fmt.Errorf("failed to encode %s message: %w", env.Type, err)
	}

	if format != FormatProtobuf {
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		return out, websocket.TextMessage, nil
	}

	s := pool.Global.GetStruct()
	defer pool.Global.PutStruct(s)

	if err := protojson.Unmarshal(buf.Bytes(), s); err != nil {
		return nil, 0, fmt.Errorf("failed to convert %s message to struct: %w", env.Type, err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal %s message: %w", env.Type, err)
	}
	return data, websocket.BinaryMessage, nil
}
