// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"net"
	"net/http"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/wsupgrade/upgrade/internal"
)

// Public API.

type (
	// Pending is the one-shot handle for the raw transport, resolved by the serving layer
	// once it physically switches the connection's protocol.
	Pending = internal.Pending

	// Continuation takes ownership of the raw transport after a successful handshake and
	// implements the actual wire protocol over it. It is invoked at most once, never on
	// a failed handoff.
	Continuation func(transport net.Conn)

	// OnFailedUpgrade is invoked at most once, with the cause, if the transport handoff
	// fails after the handshake response was already produced.
	OnFailedUpgrade interface {
		Call(err error)
	}
	OnFailedUpgradeFunc func(err error)

	Upgrader struct {
		// ExtendedConnect enables the RFC 8441 `:protocol` pseudo-header check for
		// HTTP/2+ requests. When disabled, the serving layer is assumed to reject
		// extended CONNECT requests before they reach the validator.
		ExtendedConnect bool
	}

	// Upgrade is the validated, not-yet-finalized handshake. OnUpgrade consumes it.
	Upgrade struct {
		pendingTransport  chan *internal.Pending
		onFailedUpgrade   OnFailedUpgrade
		secWebSocketKey   string
		subprotocolHeader string
		hasKey            bool
	}

	// Response is what the serving layer has to deliver to the client. For the HTTP/1.1
	// path it is the verbatim 101 with its three headers and empty body, for HTTP/2+ it
	// is an empty 200, the switch being implicit in the extended CONNECT mechanism.
	Response struct {
		Header http.Header
		Code   int
	}

	// Rejection is one of the closed set of validation failures below. The mapping to an
	// HTTP status is owned by the serving layer.
	Rejection struct {
		reason string
	}
)

//nolint:grouper // .
var (
	ErrMethodNotGet                  = &Rejection{reason: "request method is not GET"}
	ErrMethodNotConnect              = &Rejection{reason: "request method is not CONNECT"}
	ErrInvalidConnectionHeader       = &Rejection{reason: "`Connection` header does not include 'upgrade'"}
	ErrInvalidUpgradeHeader          = &Rejection{reason: "`Upgrade` header is not 'websocket'"}
	ErrInvalidWebSocketVersionHeader = &Rejection{reason: "`Sec-WebSocket-Version` header is not '13'"}
	ErrWebSocketKeyHeaderMissing     = &Rejection{reason: "`Sec-WebSocket-Key` header is missing"}
	ErrInvalidProtocolPseudoheader   = &Rejection{reason: "`:protocol` pseudo-header is not 'websocket'"}
	ErrConnectionNotUpgradable       = &Rejection{reason: "connection does not support protocol switching"}

	// ErrUpgradeAlreadyCompleted is a misuse error, outside of the rejection set: the
	// pending transport was already consumed by a previous OnUpgrade call.
	ErrUpgradeAlreadyCompleted = errors.New("upgrade already completed")
)

// Private API.

const (
	headerConnectionCanonical   = "Connection"
	headerUpgradeCanonical      = "Upgrade"
	headerSecKeyCanonical       = "Sec-Websocket-Key"
	headerSecVersionCanonical   = "Sec-Websocket-Version"
	headerSecProtocolCanonical  = "Sec-Websocket-Protocol"
	headerSecWebSocketAcceptRFC = "Sec-WebSocket-Accept"

	websocketProtocol = "websocket"
	websocketVersion  = "13"
	// Fixed by RFC 6455 for computing `Sec-WebSocket-Accept`.
	websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
)

type (
	cfg struct {
		ExtendedConnect bool `yaml:"extendedConnect"`
	}
	noOpOnFailedUpgrade struct{}
)
