package system

import (
	"encoding/json"
	"sync"
	"time"

	"crmflow/internal/features/automation"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const (
	// clientSendBuffer is how many events a slow client may lag before
	// we start dropping its messages.
	clientSendBuffer = 16
	writeTimeout     = 5 * time.Second
)

// wsConn is the slice of *websocket.Conn the write pump needs.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// wsClient owns the outbound queue for one connection. All writes go
// through the queue: the connection allows only a single writer, and
// runs can finish concurrently.
type wsClient struct {
	send chan []byte
	done chan struct{}
}

// WebSocketController broadcasts automation run outcomes to every
// connected client. Publish never blocks the runner: a client whose
// queue is full just misses the event.
type WebSocketController struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	logger  *zap.Logger
}

func NewWebSocketController(logger *zap.Logger) *WebSocketController {
	return &WebSocketController{
		clients: make(map[*wsClient]bool),
		logger:  logger,
	}
}

// Publish implements automation.RunPublisher.
func (h *WebSocketController) Publish(event automation.RunEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Slow client; drop rather than stall the run.
		}
	}
}

func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	client := &wsClient{
		send: make(chan []byte, clientSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go h.writePump(c, client)

	// Clients only listen; the read loop just detects disconnects.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			h.logger.Debug("websocket client disconnected", zap.Error(err))
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	close(client.done)
}

// writePump is the connection's sole writer.
func (h *WebSocketController) writePump(conn wsConn, client *wsClient) {
	for {
		select {
		case msg := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Wakes the read loop, which unregisters the client.
				conn.Close()
				return
			}
		case <-client.done:
			return
		}
	}
}
