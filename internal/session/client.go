// Package session runs the erase-region picker for a connected editor over
// a WebSocket. Each connection owns its own selection state; pointer events
// come in, the resulting state goes back out.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/roomstage/studio/internal/selection"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 16 * 1024
)

type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	state    selection.State
	seq      int64
	ClientID string
}

func NewClient(conn *websocket.Conn, clientID string) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 64),
		ClientID: clientID,
	}
}

// ReadPump processes incoming messages until the connection closes. It owns
// the selection state, so no locking is needed.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		close(c.send)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	welcome, _ := json.Marshal(WelcomePayload{ClientID: c.ClientID, State: c.state})
	c.Send(&Message{Type: TypeWelcome, ClientID: c.ClientID, Payload: welcome})

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			slog.Debug("read error", "error", err, "client", c.ClientID)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "client", c.ClientID)
			c.sendError("invalid message")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case TypeEvent:
		var ev selection.Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			c.sendError("invalid selection event")
			return
		}
		c.state = selection.Next(c.state, ev)
	case TypeEvents:
		var evs []selection.Event
		if err := json.Unmarshal(msg.Payload, &evs); err != nil {
			c.sendError("invalid selection events")
			return
		}
		c.state = selection.Run(c.state, evs...)
	case TypeReset:
		c.state = selection.State{}
	default:
		slog.Warn("unknown message type", "type", msg.Type, "client", c.ClientID)
		c.sendError("unknown message type: " + msg.Type)
		return
	}

	c.seq++
	payload, _ := json.Marshal(c.state)
	c.Send(&Message{Type: TypeState, Seq: c.seq, Payload: payload})
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping message", "client", c.ClientID)
	}
}

func (c *Client) sendError(text string) {
	payload, _ := json.Marshal(ErrorPayload{Message: text})
	c.Send(&Message{Type: TypeError, Payload: payload})
}
