package websocket

import (
	"sync"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"
)

// ConnectionManager tracks live websocket connections per listing room.
// A room holds at most one connection per user; a reconnect replaces the
// previous connection for that user.
type ConnectionManager struct {
	rooms map[string]map[string]domain.WebSocketConnection // listingID -> userID -> connection
	mutex sync.RWMutex
	log   logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		rooms: make(map[string]map[string]domain.WebSocketConnection),
		log:   log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, listingID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.rooms[listingID] == nil {
		cm.rooms[listingID] = make(map[string]domain.WebSocketConnection)
	}
	if previous, exists := cm.rooms[listingID][userID]; exists {
		previous.Close()
	}
	cm.rooms[listingID][userID] = conn

	cm.log.Info("Connection registered", "user_id", userID, "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if room, exists := cm.rooms[listingID]; exists {
		delete(room, userID)
		if len(room) == 0 {
			delete(cm.rooms, listingID)
		}
	}

	cm.log.Info("Connection unregistered", "user_id", userID, "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) BroadcastToRoom(listingID string, message interface{}) error {
	for _, conn := range cm.roomConnections(listingID) {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(),
				"listing_id", listingID, "error", err)
			// Continue to other connections
		}
	}
	return nil
}

func (cm *ConnectionManager) BroadcastToAll(message interface{}) error {
	cm.mutex.RLock()
	var connections []domain.WebSocketConnection
	for _, room := range cm.rooms {
		for _, conn := range room {
			connections = append(connections, conn)
		}
	}
	cm.mutex.RUnlock()

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(), "error", err)
		}
	}
	return nil
}

func (cm *ConnectionManager) CloseRoom(listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	room, exists := cm.rooms[listingID]
	if !exists {
		return nil
	}

	for userID, conn := range room {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "user_id", userID,
				"listing_id", listingID, "error", err)
		}
	}
	delete(cm.rooms, listingID)

	cm.log.Info("Room closed", "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) roomConnections(listingID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.rooms[listingID] {
		connections = append(connections, conn)
	}
	return connections
}
