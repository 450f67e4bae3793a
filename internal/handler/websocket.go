package handler

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// SnapshotProvider сообщения, которые получает клиент сразу после подключения
type SnapshotProvider func() map[string]interface{}

// WebSocketHandler рассылает обновления состояния EFB подключенным клиентам
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	logger       *utils.Logger
	snapshot     SnapshotProvider
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	closed   bool
	sequence atomic.Uint64
}

// Client WebSocket соединение
type Client struct {
	conn    *websocket.Conn
	send    chan frame
	format  Format
	handler *WebSocketHandler
	mu      sync.Mutex
	closed  bool
}

type frame struct {
	messageType int
	data        []byte
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(logger *utils.Logger, snapshot SnapshotProvider, pingInterval, pongTimeout time.Duration) *WebSocketHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if pongTimeout <= pingInterval {
		pongTimeout = 2 * pingInterval
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin проверяется CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:       logger.WithField("component", "websocket"),
		snapshot:     snapshot,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		clients:      make(map[*Client]struct{}),
	}
}

// HandleWebSocket обрабатывает WebSocket подключения
// GET /ws/v1/updates?format=json|protobuf
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	format, err := parseFormat(c.Query("format"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan frame, sendBufferSize),
		format:  format,
		handler: h,
	}

	if !h.register(client) {
		conn.Close()
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"client_ip": c.ClientIP(),
		"format":    format,
	}).Info("WebSocket client connected")

	metrics.WebSocketConnections.Inc()

	go client.writePump()
	go client.readPump()

	client.sendInitial()
}

// Broadcast отправляет сообщение всем подключенным клиентам
func (h *WebSocketHandler) Broadcast(msgType string, data interface{}) {
	env := newEnvelope(msgType, h.sequence.Add(1), data)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	// Каждый формат кодируем один раз
	frames := make(map[Format]frame, 2)
	for _, c := range clients {
		f, ok := frames[c.format]
		if !ok {
			data, messageType, err := encodeFrame(c.format, env)
			if err != nil {
				h.logger.WithField("type", msgType).WithField("error", err).Error("Failed to encode broadcast")
				metrics.WebSocketErrors.Inc()
				return
			}
			f = frame{messageType: messageType, data: data}
			frames[c.format] = f
		}
		c.enqueue(f, msgType)
	}
}

// ClientCount количество подключенных клиентов
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// GetStats возвращает статистику WebSocket handler
func (h *WebSocketHandler) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"clients":          h.ClientCount(),
		"current_sequence": h.sequence.Load(),
	}
}

func (h *WebSocketHandler) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *WebSocketHandler) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		metrics.WebSocketConnections.Dec()
		h.logger.Debug("WebSocket client disconnected")
	}
}

// sendInitial отправляет приветствие и текущее состояние
func (c *Client) sendInitial() {
	h := c.handler
	c.sendMessage(MessageWelcome, map[string]interface{}{"format": c.format})

	if h.snapshot == nil {
		return
	}
	for msgType, data := range h.snapshot() {
		c.sendMessage(msgType, data)
	}
}

func (c *Client) sendMessage(msgType string, data interface{}) {
	env := newEnvelope(msgType, c.handler.sequence.Add(1), data)
	payload, messageType, err := encodeFrame(c.format, env)
	if err != nil {
		c.handler.logger.WithField("type", msgType).WithField("error", err).Error("Failed to encode message")
		metrics.WebSocketErrors.Inc()
		return
	}
	c.enqueue(frame{messageType: messageType, data: payload}, msgType)
}

// enqueue ставит кадр в очередь, медленный клиент отключается
func (c *Client) enqueue(f frame, msgType string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- f:
		c.mu.Unlock()
		metrics.WebSocketMessagesOut.WithLabelValues(msgType).Inc()
		return
	default:
	}
	c.mu.Unlock()

	c.handler.logger.Warn("WebSocket client too slow, disconnecting")
	metrics.WebSocketErrors.Inc()
	c.close()
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.handler.unregister(c)
}

// readPump читает входящие кадры, нужен для обработки pong и закрытия
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(c.handler.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.handler.pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.WithField("error", err).Error("WebSocket read error")
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(c.handler.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				c.handler.logger.WithField("error", err).Error("WebSocket write error")
				metrics.WebSocketErrors.Inc()
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketErrors.Inc()
				c.close()
				return
			}
			metrics.WebSocketMessagesOut.WithLabelValues("ping").Inc()
		}
	}
}
