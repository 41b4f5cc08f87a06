// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingResolveWinsOverFail(t *testing.T) {
	t.Parallel()
	pending := NewPending()
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	pending.Resolve(server)
	pending.Fail(errors.New("too late"))
	transport, err := pending.Wait()
	require.NoError(t, err)
	assert.Same(t, server, transport)
}

func TestPendingFailWinsOverResolve(t *testing.T) {
	t.Parallel()
	pending := NewPending()
	expected := errors.New("connection torn down")
	pending.Fail(expected)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	pending.Resolve(server)
	transport, err := pending.Wait()
	require.ErrorIs(t, err, expected)
	assert.Nil(t, transport)
}

func TestTakePendingRemovesFromSlot(t *testing.T) {
	t.Parallel()
	pending := NewPending()
	req := RequestWithPending(httptest.NewRequest("GET", "/", nil), pending)
	assert.Same(t, pending, TakePending(req))
	assert.Nil(t, TakePending(req))
}

func TestTakePendingWithoutSlot(t *testing.T) {
	t.Parallel()
	assert.Nil(t, TakePending(httptest.NewRequest("GET", "/", nil)))
}
