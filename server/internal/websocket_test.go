// SPDX-License-Identifier: ice License 1.0

package internal_test

import (
	"context"
	"net"
	"os"
	"testing"
	stdlibtime "time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/wsupgrade/server/internal"
)

func TestWebSocketAdapterEnforcesReadDeadline(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	adapter, _ := internal.NewWebSocketAdapter(context.Background(), serverConn, 50*stdlibtime.Millisecond, 0)

	_, _, err := adapter.ReadMessage()
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestWebSocketAdapterEnforcesWriteDeadline(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	adapter, _ := internal.NewWebSocketAdapter(context.Background(), serverConn, 0, 50*stdlibtime.Millisecond)

	err := adapter.WriteMessage(int(ws.OpText), []byte("payload"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestWebSocketAdapterWithoutTimeoutsBlocksUntilData(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	adapter, closeCtx := internal.NewWebSocketAdapter(context.Background(), serverConn, 0, 0)
	go func() {
		_ = wsutil.WriteClientMessage(clientConn, ws.OpText, []byte("hello"))
	}()

	typ, msg, err := adapter.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, int(ws.OpText), typ)
	require.Equal(t, "hello", string(msg))
	require.NoError(t, closeCtx.Err())
	go func() { _, _ = clientConn.Read(make([]byte, 128)) }() // Drain the close frame.
	require.NoError(t, adapter.Close())
	require.Error(t, closeCtx.Err())
}
