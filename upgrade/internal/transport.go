// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"net"
	"net/http"
)

func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) Resolve(transport net.Conn) {
	p.once.Do(func() {
		p.transport = transport
		close(p.done)
	})
}

func (p *Pending) Fail(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Wait blocks until Resolve or Fail, whichever happened first.
func (p *Pending) Wait() (net.Conn, error) {
	<-p.done

	return p.transport, p.err
}

// RequestWithPending stores pending in a request-scoped slot. TakePending removes it,
// so at most one consumer ever observes a given pending transport.
func RequestWithPending(req *http.Request, pending *Pending) *http.Request {
	slot := &pendingSlot{pending: pending}

	return req.WithContext(context.WithValue(req.Context(), pendingSlotCtxKey{}, slot))
}

func TakePending(req *http.Request) *Pending {
	slot, ok := req.Context().Value(pendingSlotCtxKey{}).(*pendingSlot)
	if !ok {
		return nil
	}
	slot.mx.Lock()
	defer slot.mx.Unlock()
	pending := slot.pending
	slot.pending = nil

	return pending
}
