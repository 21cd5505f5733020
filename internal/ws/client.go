package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/uidraft/backend/internal/presence"
	"github.com/uidraft/backend/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	ErrSlowConsumer     = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// Client is one live WebSocket session. It implements relay.Sender: the
// relay hands it serialized events, the write pump drains them onto the
// socket. Send never blocks; a saturated buffer drops the event, which keeps
// a stalled recipient from holding up a room's fan-out.
type Client struct {
	id       string
	userID   string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	closeOne sync.Once
	server   *relay.Server
	presence *presence.Tracker
	logger   zerolog.Logger
}

func newClient(conn *websocket.Conn, server *relay.Server, tracker *presence.Tracker, userID string, logger zerolog.Logger) *Client {
	return &Client{
		userID:   userID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		server:   server,
		presence: tracker,
		logger:   logger,
	}
}

// Send queues one event for delivery.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) close() {
	c.closeOne.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump consumes messages from the socket until it fails, dispatching
// membership messages to the relay server and everything else to the fan-out.
// On exit the connection leaves all its rooms before the handle is dropped,
// so an abrupt disconnect needs no leave_room from the client.
func (c *Client) readPump() {
	defer func() {
		rooms := c.server.RoomsOf(c.id)
		c.server.Disconnect(c.id)
		for _, room := range rooms {
			c.presence.Leave(context.Background(), room, c.id)
		}
		c.close()
		c.logger.Info().Str("conn", c.id).Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Str("conn", c.id).Err(err).Msg("unexpected close")
			}
			break
		}

		ev, err := relay.DecodeEvent(message)
		if err != nil {
			// Fire-and-forget protocol: malformed and unknown messages are
			// dropped without a reply.
			c.logger.Debug().Str("conn", c.id).Err(err).Msg("dropping message")
			continue
		}

		switch ev.Kind {
		case relay.KindJoinRoom:
			if ev.RoomID == "" {
				continue
			}
			c.server.Join(c.id, ev.RoomID)
			c.presence.Join(context.Background(), ev.RoomID, c.id)
		case relay.KindLeaveRoom:
			if ev.RoomID == "" {
				continue
			}
			c.server.Leave(c.id, ev.RoomID)
			c.presence.Leave(context.Background(), ev.RoomID, c.id)
		default:
			c.server.Relay(c.id, ev)
		}
	}
}

// writePump moves queued events onto the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
