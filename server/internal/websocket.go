// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"net"
	stdlibtime "time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/wsupgrade/time"
)

// NewWebSocketAdapter frames the raw transport as server-side websocket messages. The
// returned context cancels when the adapter closes.
func NewWebSocketAdapter(ctx context.Context, conn net.Conn, readTimeout, writeTimeout stdlibtime.Duration) (Raw, context.Context) {
	adapter := &websocketAdapter{
		conn:         conn,
		closeChannel: make(chan struct{}, 1),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}

	return adapter, NewCustomCancelContext(ctx, adapter.closeChannel)
}

func (w *websocketAdapter) WriteMessage(messageType int, data []byte) error {
	var err error
	if w.writeTimeout > 0 {
		err = multierror.Append(nil, w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)))
	}
	err = multierror.Append(err,
		wsutil.WriteServerMessage(w.conn, ws.OpCode(messageType), data),
	).ErrorOrNil()

	return errors.Wrapf(err, "failed to write message to websocket")
}

func (w *websocketAdapter) ReadMessage() (messageType int, p []byte, err error) {
	if w.readTimeout > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.readTimeout)) //nolint:errcheck // It is not crucial if we ignore it here.
	}
	msgBytes, typ, err := wsutil.ReadClientData(w.conn)
	if err != nil {
		return int(typ), msgBytes, err //nolint:wrapcheck // Proxy.
	}
	if typ == ws.OpPing {
		err = wsutil.WriteServerMessage(w.conn, ws.OpPong, nil)
		if err == nil {
			return w.ReadMessage()
		}

		return int(typ), msgBytes, errors.Wrapf(err, "failed to reply with pong")
	}

	return int(typ), msgBytes, nil
}

func (w *websocketAdapter) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeChannel)
		err = multierror.Append(
			wsutil.WriteServerMessage(w.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "")),
			w.conn.Close(),
		).ErrorOrNil()
	})

	return errors.Wrapf(err, "failed to close websocket conn")
}
