// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"net"
	"sync"
)

// Public API.

type (
	// Pending is the one-shot handle for the raw transport. The serving layer resolves it
	// with the physical connection once the protocol switch completes, or fails it if the
	// connection is torn down first. It resolves exactly once.
	Pending struct {
		done      chan struct{}
		transport net.Conn
		err       error
		once      sync.Once
	}
)

// Private API.

type (
	pendingSlotCtxKey struct{}

	pendingSlot struct {
		pending *Pending
		mx      sync.Mutex
	}
)
