// Package ws adapts WebSocket connections to the same dispatcher the TCP
// protocol uses. WebSocket already delimits messages, so each text frame
// carries one bare JSON envelope with no length prefix.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/calebmartin/netchess-backend/internal/protocol"
	"github.com/calebmartin/netchess-backend/internal/server"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the request and runs the connection through the server's
// standard lifecycle until the client goes away.
func Handler(srv *server.Server, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}

		c := &wsConn{ctx: r.Context(), conn: conn}
		srv.HandleConn(c, c.recv, r.RemoteAddr)
	}
}

// wsConn is one WebSocket client transport. The library serializes concurrent
// writers internally, so Send is safe from any handler.
type wsConn struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (c *wsConn) Send(msgType string, data any) error {
	payload, err := protocol.EncodePayload(msgType, data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *wsConn) recv() (protocol.Envelope, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return protocol.Envelope{}, err
	}
	return protocol.Decode(data)
}
