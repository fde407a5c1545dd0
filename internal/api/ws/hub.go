package ws

import (
	"sync"

	"github.com/sirupsen/logrus"

	"meetpanel/internal/pkg/logger"
)

// Hub keeps the websocket subscribers of every panel.
type Hub struct {
	clients map[string]map[*Client]struct{} // panelID -> subscribers
	mu      sync.RWMutex
	log     logrus.FieldLogger
}

// NewHub returns an empty hub. A nil log discards.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{clients: make(map[string]map[*Client]struct{}), log: log}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	set, ok := h.clients[client.PanelID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.PanelID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes client and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.PanelID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.PanelID)
	}
	close(client.Send)
}

// Broadcast queues message for every subscriber of panelID. Subscribers with
// a full queue miss the frame.
func (h *Hub) Broadcast(panelID string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for client := range h.clients[panelID] {
		select {
		case client.Send <- message:
			sent++
		default:
			h.log.WithField("panel_id", panelID).Warn("websocket subscriber is lagging, frame dropped")
		}
	}
	return sent
}

// ClosePanel drops every subscriber of panelID.
func (h *Hub) ClosePanel(panelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[panelID] {
		close(client.Send)
	}
	delete(h.clients, panelID)
}

// Subscribers counts the clients of panelID.
func (h *Hub) Subscribers(panelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[panelID])
}
