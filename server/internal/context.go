// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
)

// NewCustomCancelContext cancels when ch closes, regardless of the parent's lifecycle:
// the transport outlives the request handler that upgraded it.
func NewCustomCancelContext(reqCtx context.Context, ch <-chan struct{}) context.Context {
	return customCancelContext{Context: reqCtx, ch: ch}
}

func (c customCancelContext) Done() <-chan struct{} {
	return c.ch
}

func (c customCancelContext) Err() error {
	select {
	case <-c.ch:
		return context.Canceled
	default:
		return nil
	}
}
