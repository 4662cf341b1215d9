package notifier

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 10 * time.Second

// ConnSession adapts a gorilla websocket connection. Writes are serialised because
// the connection supports only one concurrent writer.
type ConnSession struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	lock   sync.Mutex
	closed bool
}

func NewConnSession(conn *websocket.Conn) *ConnSession {
	return &ConnSession{
		id:           uuid.New().String(),
		conn:         conn,
		writeTimeout: defaultWriteTimeout,
	}
}

func (c *ConnSession) ID() string { return c.id }

func (c *ConnSession) IsOpen() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return !c.closed
}

func (c *ConnSession) WriteText(data []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame and releases the connection. Closing twice is a no-op.
func (c *ConnSession) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
