package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/notabene00/yandex-weather/internal/weather"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait     = 10 * time.Second
	clientBacklog = 16
)

// StateMessage is pushed to stream subscribers on every state update.
type StateMessage struct {
	EntryID string        `json:"entry_id"`
	State   weather.State `json:"state"`
}

// Hub fans state updates out to WebSocket subscribers. Slow subscribers are
// dropped.
type Hub struct {
	clients map[*websocket.Conn]chan []byte
	logger  *logrus.Logger
	mutex   sync.Mutex
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger,
	}
}

func (h *Hub) Broadcast(entryID string, state weather.State) {
	payload, err := json.Marshal(StateMessage{EntryID: entryID, State: state})
	if err != nil {
		h.logger.Errorf("Failed to encode stream message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, send := range h.clients {
		select {
		case send <- payload:
		default:
			h.logger.Warnf("Dropping slow stream client %s", conn.RemoteAddr())
			delete(h.clients, conn)
			close(send)
		}
	}
}

func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// serve pumps messages to conn until it closes.
func (h *Hub) serve(conn *websocket.Conn) {
	send := make(chan []byte, clientBacklog)

	h.mutex.Lock()
	h.clients[conn] = send
	h.mutex.Unlock()

	h.logger.Infof("Stream client connected: %s", conn.RemoteAddr())

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer conn.Close()
	for payload := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Write message error for %s: %v", conn.RemoteAddr(), err)
			h.remove(conn)
			return
		}
	}
	h.logger.Infof("Stream client disconnected: %s", conn.RemoteAddr())
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
}
