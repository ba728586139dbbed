package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"smsbridge-backend/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Client struct {
	Hub       *Hub
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub fans session events out to the presentation clients of each session.
type Hub struct {
	// Registered clients map[sessionID]map[*Client]bool
	Clients    map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Event
	mu         sync.RWMutex
}

// Event is one message to the UI: either a re-render signal for a state
// scope or a toast notification.
type Event struct {
	SessionID string      `json:"-"`
	Type      string      `json:"type"`
	Scope     string      `json:"scope,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Event),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Clients[client.SessionID] == nil {
				h.Clients[client.SessionID] = make(map[*Client]bool)
			}
			h.Clients[client.SessionID][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.Clients[client.SessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.Clients, client.SessionID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.Broadcast:
			h.mu.RLock()
			if clients, ok := h.Clients[event.SessionID]; ok {
				msgBytes, _ := json.Marshal(event)
				for client := range clients {
					select {
					case client.Send <- msgBytes:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Session returns the event sink for one session, satisfying the session
// controller's Events interface.
func (h *Hub) Session(sessionID string) *SessionEvents {
	return &SessionEvents{hub: h, sessionID: sessionID}
}

type SessionEvents struct {
	hub       *Hub
	sessionID string
}

func (e *SessionEvents) Render(scope string, data any) {
	e.hub.Broadcast <- Event{
		SessionID: e.sessionID,
		Type:      "render",
		Scope:     scope,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (e *SessionEvents) Notify(level model.NotificationLevel, message string) {
	e.hub.Broadcast <- Event{
		SessionID: e.sessionID,
		Type:      "notification",
		Data:      model.Notification{Message: message, Level: level},
		Timestamp: time.Now(),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		c.Conn.Close()
	}()
	for message := range c.Send {
		c.Conn.WriteMessage(websocket.TextMessage, message)
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, sessionID string, allowedOrigins []string) {
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return originAllowed(origin, allowedOrigins)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := &Client{Hub: hub, SessionID: sessionID, Conn: conn, Send: make(chan []byte, 256)}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
