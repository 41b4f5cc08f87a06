// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	_ "embed"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	stdlibtime "time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/ice-blockchain/wsupgrade/server"
)

// Public API.

var (
	//go:embed .testdata/localhost.crt
	localhostCrt string
)

type (
	MockService struct {
		server         server.Server
		processingFunc func(writer server.RawWriter, in string) error
		closedMx       sync.Mutex
		closed         bool
		ReaderExited   atomic.Uint64
	}
	Client interface {
		Received
		server.RawWriter
	}
	Received interface {
		Received() <-chan []byte
	}
)

const (
	applicationYamlKey = "self"
	// The RFC 8441 pseudo-header, passed verbatim to x/net's http2 transport.
	extendedConnectProtocolHeader = ":protocol"
)

// Private API.

type (
	wsocketClient struct {
		conn          net.Conn
		closeChannel  chan struct{}
		inputMessages chan []byte
		closeMx       sync.Mutex
		closed        bool
		writeTimeout  stdlibtime.Duration
		readTimeout   stdlibtime.Duration
	}
	gorillaClient struct {
		conn          *gorillaws.Conn
		inputMessages chan []byte
		closeMx       sync.Mutex
		closed        bool
	}
	// http2ClientStream is the client-side raw conn for extended CONNECT: writes stream
	// into the request body, reads come from the response body.
	http2ClientStream struct {
		writer *io.PipeWriter
		resp   *http.Response
	}
)
