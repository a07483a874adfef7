package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Task event types pushed to connected clients.
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskStatus  = "task.status"
	EventTaskDeleted = "task.deleted"
)

// Event is one task change, delivered only to the owning user's
// connections.
type Event struct {
	Type   string `json:"type"`
	TaskID int    `json:"task_id"`
	UserID int    `json:"user_id"`
}

// Client is one authenticated WebSocket connection.
type Client struct {
	UserID int
	Conn   *websocket.Conn
	Mu     sync.Mutex
}

// Hub fans task events out to the connections of the user they belong to.
type Hub struct {
	Clients    map[*Client]bool
	Events     chan Event
	Register   chan *Client
	Unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Events:     make(chan Event, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Publish queues a task event. Safe on a nil hub and never blocks a
// request handler: events are dropped when the buffer is full.
func (h *Hub) Publish(eventType string, userID, taskID int) {
	if h == nil {
		return
	}
	select {
	case h.Events <- Event{Type: eventType, TaskID: taskID, UserID: userID}:
	default:
	}
}

// Run drives the register/unregister/event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client] = true
		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				client.Conn.Close()
			}
		case event := <-h.Events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			for client := range h.Clients {
				if client.UserID != event.UserID {
					continue
				}
				client.Mu.Lock()
				err := client.Conn.WriteMessage(websocket.TextMessage, payload)
				client.Mu.Unlock()
				if err != nil {
					delete(h.Clients, client)
					client.Conn.Close()
				}
			}
		}
	}
}
