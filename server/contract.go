// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/ice-blockchain/wsupgrade/server/internal"
)

// Public API.

type (
	Server interface {
		// ListenAndServe starts everything and blocks indefinitely.
		ListenAndServe(ctx context.Context, cancel context.CancelFunc)
	}

	// Service is the application: it owns the continuation that takes the framed
	// transport after every successful handshake, plus any plain HTTP routes.
	Service interface {
		internal.TransportHandler
		RegisterRoutes(router *gin.Engine)
		Init(ctx context.Context, cancel context.CancelFunc)
		Close(ctx context.Context) error
	}

	RawReader = internal.RawReader
	RawWriter = internal.RawWriter
	Raw       = internal.Raw
)

// Private API.

type (
	srv struct {
		wsServer internal.Server
		cfg      *internal.Config
		router   *gin.Engine
		quit     chan<- os.Signal
		service  Service
	}
)
