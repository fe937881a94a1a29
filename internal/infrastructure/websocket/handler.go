package websocket

import (
	"net/http"
	"sync"
	"time"

	"ev-marketplace/internal/domain"
	"ev-marketplace/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Handler upgrades watcher connections for a listing's live bid feed.
type Handler struct {
	listingRepo domain.ListingRepository
	connManager *ConnectionManager
	log         logger.Logger
}

func NewHandler(listingRepo domain.ListingRepository, connManager *ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		listingRepo: listingRepo,
		connManager: connManager,
		log:         log,
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, listingID string) {
	listing, err := h.listingRepo.GetListing(r.Context(), listingID)
	if err != nil {
		h.log.Error("Failed to find listing", "error", err, "listing_id", listingID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if listing == nil {
		http.Error(w, "listing not found", http.StatusNotFound)
		return
	}
	if listing.AuctionEnd != nil && listing.AuctionEnd.Before(time.Now()) {
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewConnection(conn, userID, listingID)

	if err := h.connManager.RegisterConnection(userID, listingID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.readLoop(wsConn, userID, listingID)
}

// readLoop drains client messages so pings are answered and closed
// connections are unregistered. Bids are placed over HTTP, not here.
func (h *Handler) readLoop(conn *Connection, userID, listingID string) {
	defer func() {
		h.connManager.UnregisterConnection(userID, listingID)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "ping" {
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

type Connection struct {
	conn      *websocket.Conn
	userID    string
	listingID string
	mu        sync.Mutex
}

func NewConnection(conn *websocket.Conn, userID, listingID string) *Connection {
	return &Connection{
		conn:      conn,
		userID:    userID,
		listingID: listingID,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(message)
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) UserID() string {
	return c.userID
}

func (c *Connection) ListingID() string {
	return c.listingID
}
