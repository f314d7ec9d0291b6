package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"remind-server/middleware"
	"remind-server/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // single-user service, same-device clients
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans reminder notifications and collection-change events out to every
// connected client. It is the notification collaborator of the delivery
// handler: the user may have several open clients (desktop + phone browser),
// all of them get the event.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	auth       *middleware.Auth
	log        *zap.SugaredLogger
	mu         sync.RWMutex
}

func NewHub(auth *middleware.Auth, log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		auth:       auth,
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Infof("[WS] client registered (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Infof("[WS] client unregistered (total: %d)", count)

		case message := <-h.broadcast:
			var stale []*Client
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					stale = append(stale, client)
				}
			}
			h.mu.RUnlock()

			if len(stale) > 0 {
				h.mu.Lock()
				for _, client := range stale {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
						h.log.Warnf("[WS] removed stale client (buffer full)")
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// SendAll queues a message for every connected client.
func (h *Hub) SendAll(msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("[WS] marshal error for type %q: %v", msg.Type, err)
		return
	}
	h.broadcast <- data
}

// Show pushes a reminder notification to every connected client.
// Implements delivery.Notifier.
func (h *Hub) Show(title, body, targetID string) {
	h.SendAll(models.WSMessage{
		Type: models.WSTypeReminder,
		Payload: models.ReminderNotification{
			Title:    title,
			Body:     body,
			TargetID: targetID,
		},
	})
}

// NotifyCollectionChanged tells open clients to refresh their lists.
func (h *Hub) NotifyCollectionChanged() {
	h.SendAll(models.WSMessage{Type: models.WSTypeCollectionChanged, Payload: nil})
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}
	if _, err := h.auth.ValidateToken(token); err != nil {
		h.log.Warnf("[WS] connection rejected from %s: %v", r.RemoteAddr, err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("[WS] upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	welcome, _ := json.Marshal(models.WSMessage{Type: models.WSTypeWelcome, Payload: map[string]string{"message": "connected"}})
	if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
		h.log.Errorf("[WS] failed to send welcome: %v", err)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	h.register <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Clients only listen; inbound frames are drained to keep the
	// connection's control messages flowing.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnf("[WS] unexpected close: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
