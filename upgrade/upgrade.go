// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"crypto/sha1" //nolint:gosec // Mandated by RFC 6455.
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	appcfg "github.com/ice-blockchain/wsupgrade/config"
	"github.com/ice-blockchain/wsupgrade/upgrade/internal"
)

func New(applicationYamlKey string) *Upgrader {
	var conf cfg
	appcfg.MustLoadFromKey(applicationYamlKey, &conf)

	return &Upgrader{ExtendedConnect: conf.ExtendedConnect}
}

func NewPendingTransport() *Pending {
	return internal.NewPending()
}

// WithPendingTransport is called by the serving layer, before validation, to store the
// pending transport in a request-scoped slot. FromRequest removes it from there, which
// structurally guarantees at most one consumer per connection.
func WithPendingTransport(req *http.Request, pending *Pending) *http.Request {
	return internal.RequestWithPending(req, pending)
}

// FromRequest validates that req is a well-formed websocket upgrade request.
// Checks run in a fixed order and the first failing one determines the returned
// *Rejection. It is fully synchronous and inspects only already-parsed metadata.
//
//nolint:funlen // The literal check order is the contract.
func (u *Upgrader) FromRequest(req *http.Request) (*Upgrade, error) {
	var secWebSocketKey string
	hasKey := req.ProtoMajor <= 1
	if hasKey {
		if req.Method != http.MethodGet {
			return nil, ErrMethodNotGet
		}
		if !headerContains(req.Header, headerConnectionCanonical, "upgrade") {
			return nil, ErrInvalidConnectionHeader
		}
		if !headerEq(req.Header, headerUpgradeCanonical, websocketProtocol) {
			return nil, ErrInvalidUpgradeHeader
		}
		keys := req.Header.Values(headerSecKeyCanonical)
		if len(keys) == 0 {
			return nil, ErrWebSocketKeyHeaderMissing
		}
		secWebSocketKey = keys[0]
	} else {
		if req.Method != http.MethodConnect {
			return nil, ErrMethodNotConnect
		}
		// Extended CONNECT carries the `:protocol` pseudo-header value in req.Proto,
		// both in x/net/http2 and quic-go. If the feature is off, the serving layer
		// rejects such requests before they get here.
		if u.ExtendedConnect && req.Proto != websocketProtocol {
			return nil, ErrInvalidProtocolPseudoheader
		}
	}
	if !headerEq(req.Header, headerSecVersionCanonical, websocketVersion) {
		return nil, ErrInvalidWebSocketVersionHeader
	}
	pending := internal.TakePending(req)
	if pending == nil {
		return nil, ErrConnectionNotUpgradable
	}
	up := &Upgrade{
		pendingTransport:  make(chan *internal.Pending, 1),
		onFailedUpgrade:   noOpOnFailedUpgrade{},
		secWebSocketKey:   secWebSocketKey,
		subprotocolHeader: req.Header.Get(headerSecProtocolCanonical),
		hasKey:            hasKey,
	}
	up.pendingTransport <- pending

	return up, nil
}

// Subprotocols returns the raw `Sec-WebSocket-Protocol` request value, verbatim. The
// core neither interprets nor echoes it; negotiation belongs to the continuation.
func (up *Upgrade) Subprotocols() string {
	return up.subprotocolHeader
}

// WithOnFailedUpgrade replaces the failure policy. Must be called before OnUpgrade.
func (up *Upgrade) WithOnFailedUpgrade(callback OnFailedUpgrade) *Upgrade {
	up.onFailedUpgrade = callback

	return up
}

// OnUpgrade finalizes the handshake. It consumes the pending transport (a second call
// returns ErrUpgradeAlreadyCompleted and schedules nothing), spawns a detached task that
// hands the eventually-resolved transport to continuation (or the failure policy to the
// cause, exactly once, never both), and synchronously returns the response the serving
// layer has to deliver. The response does not depend on the task's eventual outcome.
func (up *Upgrade) OnUpgrade(continuation Continuation) (*Response, error) {
	var pending *internal.Pending
	select {
	case pending = <-up.pendingTransport:
	default:
		return nil, ErrUpgradeAlreadyCompleted
	}
	onFailedUpgrade := up.onFailedUpgrade
	go func() {
		transport, err := pending.Wait()
		if err != nil {
			onFailedUpgrade.Call(errors.Wrap(err, "transport handoff failed"))

			return
		}
		continuation(transport)
	}()
	if up.hasKey {
		return &Response{
			Code: http.StatusSwitchingProtocols,
			Header: http.Header{
				headerConnectionCanonical:   {headerUpgradeCanonical},
				headerUpgradeCanonical:      {websocketProtocol},
				headerSecWebSocketAcceptRFC: {sign(up.secWebSocketKey)},
			},
		}, nil
	}

	return &Response{Code: http.StatusOK, Header: http.Header{}}, nil
}

func (callback OnFailedUpgradeFunc) Call(err error) {
	callback(err)
}

func (noOpOnFailedUpgrade) Call(_ error) {}

func (r *Rejection) Error() string {
	return r.reason
}

// sign computes the `Sec-WebSocket-Accept` token for the client's key, per RFC 6455.
func sign(secWebSocketKey string) string {
	hash := sha1.New() //nolint:gosec // Mandated by RFC 6455.
	hash.Write([]byte(secWebSocketKey))
	hash.Write([]byte(websocketGUID))

	return base64.StdEncoding.EncodeToString(hash.Sum(nil))
}

func headerEq(header http.Header, key, expected string) bool {
	values := header.Values(key)

	return len(values) > 0 && strings.EqualFold(values[0], expected)
}

func headerContains(header http.Header, key, token string) bool {
	values := header.Values(key)

	return len(values) > 0 && strings.Contains(strings.ToLower(values[0]), token)
}
