// SPDX-License-Identifier: ice License 1.0

package httpx

import (
	"bufio"
	"net"
	"net/http"
	"sync"

	"github.com/ice-blockchain/wsupgrade/server/internal"
	"github.com/ice-blockchain/wsupgrade/upgrade"
)

// Private API.

const (
	websocketProtocol = "websocket"
)

type (
	srv struct {
		server   *http.Server
		handler  http.HandlerFunc
		upgrader *upgrade.Upgrader
		cfg      *internal.Config
	}

	// streamTransport is the raw transport for the extended CONNECT path: the request
	// stream stays open and reads come from the request body, writes go through the
	// response writer, flushed per write. The upgrading handler parks until Close.
	streamTransport struct {
		req        *http.Request
		writer     http.ResponseWriter
		controller *http.ResponseController
		done       chan struct{}
		closeOnce  sync.Once
	}

	// hijackedConn drains bytes the server buffered ahead of the protocol switch before
	// reading from the connection itself.
	hijackedConn struct {
		net.Conn
		reader *bufio.Reader
	}

	strAddr string
)
