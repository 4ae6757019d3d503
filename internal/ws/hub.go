package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
)

// Event is a WebSocket message pushed to clients.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// saleEvent routes a sale notification: admins see every sale, cashiers only
// their own.
type saleEvent struct {
	SellerID uuid.UUID
	Event    Event
}

// Hub maintains the set of connected clients and fans sale events out to
// them.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *saleEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *saleEvent, 256),
	}
}

// Run starts the hub's main loop. Call as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.clients[client]; exists {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				if !client.isAdmin && client.userID != event.SellerID {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// salePayload is the compact sale shape pushed over the feed.
type salePayload struct {
	ID         uuid.UUID `json:"id"`
	SellerID   uuid.UUID `json:"sellerId"`
	SellerName string    `json:"sellerName"`
	DayKey     string    `json:"dayKey"`
	Status     string    `json:"status"`
	Total      float64   `json:"total"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NotifySale broadcasts a sale lifecycle event ("sale.created",
// "sale.voided") to every admin and to the selling cashier.
func (h *Hub) NotifySale(eventType string, sale *domain.Sale) {
	payload, err := json.Marshal(salePayload{
		ID:         sale.ID,
		SellerID:   sale.SellerID,
		SellerName: sale.SellerName,
		DayKey:     sale.DayKey,
		Status:     sale.Status,
		Total:      sale.Total.InexactFloat64(),
		CreatedAt:  sale.CreatedAt,
	})
	if err != nil {
		return
	}
	h.broadcast <- &saleEvent{
		SellerID: sale.SellerID,
		Event:    Event{Type: eventType, Payload: payload},
	}
}
