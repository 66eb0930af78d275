package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Connection wraps a gorilla connection with a write lock so room broadcasts
// and direct replies can interleave safely.
type Connection struct {
	conn      *websocket.Conn
	userID    string
	listingID string
	writeMu   sync.Mutex
}

func NewConnection(conn *websocket.Conn, userID, listingID string) *Connection {
	return &Connection{
		conn:      conn,
		userID:    userID,
		listingID: listingID,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(message)
}

func (c *Connection) ReadJSON(v interface{}) error {
	return c.conn.ReadJSON(v)
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
