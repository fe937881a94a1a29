package websocket

import (
	"context"
)

type WebSocketNotifier struct {
	connManager *ConnectionManager
}

func NewWebSocketNotifier(connManager *ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) BroadcastToListing(ctx context.Context, listingID string, message interface{}) error {
	return n.connManager.BroadcastToListing(listingID, message)
}
