package controller

import (
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// ActivityHub fans queue-refresh events out to connected clients, grouped by
// organization. It implements engine.Notifier.
type ActivityHub struct {
	mu     sync.RWMutex
	conns  map[uint]map[*websocket.Conn]bool
	Logger *log.Logger
}

func NewActivityHub(logger *log.Logger) *ActivityHub {
	return &ActivityHub{
		conns:  make(map[uint]map[*websocket.Conn]bool),
		Logger: logger,
	}
}

type activityEvent struct {
	Event string `json:"event"`
}

// QueueUpdated notifies every client of the organization that the pending
// activity queue changed and should be re-fetched.
func (h *ActivityHub) QueueUpdated(orgID uint) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.conns[orgID] {
		if err := conn.WriteJSON(activityEvent{Event: "queue_updated"}); err != nil {
			h.Logger.Printf("Failed to push queue update: %v", err)
		}
	}
}

func (h *ActivityHub) register(orgID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[orgID] == nil {
		h.conns[orgID] = make(map[*websocket.Conn]bool)
	}
	h.conns[orgID][conn] = true
}

func (h *ActivityHub) unregister(orgID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[orgID], conn)
	if len(h.conns[orgID]) == 0 {
		delete(h.conns, orgID)
	}
}

// HandleActivityWS keeps a client subscribed to queue updates for its
// organization until the connection drops.
func HandleActivityWS(hub *ActivityHub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		orgID, ok := c.Locals("orgID").(uint)
		if !ok {
			return
		}

		hub.register(orgID, c)
		defer hub.unregister(orgID, c)

		// Block until the client goes away; inbound messages are ignored.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}
}
