// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"io"
	"net"
	"sync"
	stdlibtime "time"
)

// Public API.

type (
	Server interface {
		ListenAndServeTLS(ctx context.Context, certFile, keyFile string) error
		Shutdown(ctx context.Context) error
	}

	// TransportHandler owns the continuation: it receives the transport after a
	// successful handshake, already framed with the configured read/write deadlines,
	// and speaks the actual message protocol over it. subprotocol is whatever the
	// serving layer picked out of the client's raw subprotocol list, or "".
	TransportHandler interface {
		HandleTransport(ctx context.Context, transport Raw, subprotocol string)
	}

	RawReader interface {
		ReadMessage() (messageType int, p []byte, err error)
		io.Closer
	}
	RawWriter interface {
		WriteMessage(messageType int, data []byte) error
		io.Closer
	}
	Raw interface {
		RawWriter
		RawReader
	}

	Config struct {
		WSUpgrade struct {
			CertPath        string              `yaml:"certPath"`
			KeyPath         string              `yaml:"keyPath"`
			WriteTimeout    stdlibtime.Duration `yaml:"writeTimeout"`
			ReadTimeout     stdlibtime.Duration `yaml:"readTimeout"`
			Port            uint16              `yaml:"port"`
			ExtendedConnect bool                `yaml:"extendedConnect"`
		} `yaml:"wsupgrade"`
		Development bool `yaml:"development"`
	}
)

// Private API.

type (
	customCancelContext struct {
		context.Context //nolint:containedctx // Custom implementation.
		ch              <-chan struct{}
	}

	websocketAdapter struct {
		conn         net.Conn
		closeChannel chan struct{}
		closeOnce    sync.Once
		readTimeout  stdlibtime.Duration
		writeTimeout stdlibtime.Duration
	}
)
