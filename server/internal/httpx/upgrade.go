// SPDX-License-Identifier: ice License 1.0

package httpx

import (
	"bufio"
	"net"
	"net/http"

	"github.com/gobwas/httphead"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/wsupgrade/log"
	"github.com/ice-blockchain/wsupgrade/server/internal"
	"github.com/ice-blockchain/wsupgrade/terror"
	"github.com/ice-blockchain/wsupgrade/upgrade"
)

func (s *srv) handleUpgrade(writer http.ResponseWriter, req *http.Request, transportHandler internal.TransportHandler) {
	pending := upgrade.NewPendingTransport()
	req = upgrade.WithPendingTransport(req, pending)
	up, err := s.upgrader.FromRequest(req)
	if err != nil {
		status := rejectionStatus(err)
		log.Error(terror.New(err, map[string]any{"status": status}), "upgrade rejected", req.Proto)
		writer.WriteHeader(status)

		return
	}
	subprotocol := selectSubprotocol(up.Subprotocols())
	reqCtx := req.Context()
	up = up.WithOnFailedUpgrade(upgrade.OnFailedUpgradeFunc(func(failure error) {
		log.Error(failure, "proto", req.Proto)
	}))
	resp, err := up.OnUpgrade(func(transport net.Conn) {
		wsocket, wsCtx := internal.NewWebSocketAdapter(reqCtx, transport, s.cfg.WSUpgrade.ReadTimeout, s.cfg.WSUpgrade.WriteTimeout)
		defer func() {
			log.Error(wsocket.Close(), "failed to close websocket conn")
		}()
		transportHandler.HandleTransport(wsCtx, wsocket, subprotocol)
	})
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to finalize upgrade (%v)", req.Proto))
		writer.WriteHeader(http.StatusInternalServerError)

		return
	}
	s.deliver(resp, writer, req, pending)
}

//nolint:funlen // Both delivery shapes in one place, mirroring the response contract.
func (s *srv) deliver(resp *upgrade.Response, writer http.ResponseWriter, req *http.Request, pending *upgrade.Pending) {
	if resp.Code != http.StatusSwitchingProtocols {
		// Extended CONNECT: the switch is implicit, the request stream becomes the raw
		// transport and this handler parks until the continuation is done with it.
		for name, values := range resp.Header {
			for _, value := range values {
				writer.Header().Add(name, value)
			}
		}
		writer.WriteHeader(resp.Code)
		if flusher, ok := writer.(http.Flusher); ok {
			flusher.Flush()
		}
		stream := newStreamTransport(req, writer)
		pending.Resolve(stream)
		select {
		case <-stream.closed():
		case <-req.Context().Done():
		}

		return
	}
	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		pending.Fail(errors.New("http.ResponseWriter does not support hijack"))
		writer.WriteHeader(http.StatusInternalServerError)

		return
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		pending.Fail(errors.Wrapf(err, "failed to hijack connection"))
		writer.WriteHeader(http.StatusInternalServerError)

		return
	}
	if err = writeSwitchingProtocols(rw.Writer, resp.Header); err != nil {
		pending.Fail(errors.Wrapf(err, "failed to write 101 response"))
		log.Error(errors.Wrapf(conn.Close(), "failed to close hijacked conn"))

		return
	}
	pending.Resolve(wrapHijacked(conn, rw.Reader))
}

//nolint:errcheck // Buffered writes surface on Flush.
func writeSwitchingProtocols(bw *bufio.Writer, header http.Header) error {
	bw.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	for _, name := range []string{"Connection", "Upgrade", "Sec-WebSocket-Accept"} {
		for _, value := range header[name] {
			bw.WriteString(name)
			bw.WriteString(": ")
			bw.WriteString(value)
			bw.WriteString("\r\n")
		}
	}
	bw.WriteString("\r\n")

	return errors.Wrap(bw.Flush(), "failed to flush handshake")
}

// rejectionStatus owns the rejection-to-HTTP mapping; the upgrade core stays
// transport-agnostic.
func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, upgrade.ErrMethodNotGet), errors.Is(err, upgrade.ErrMethodNotConnect):
		return http.StatusMethodNotAllowed
	case errors.Is(err, upgrade.ErrConnectionNotUpgradable):
		return http.StatusUpgradeRequired
	default:
		return http.StatusBadRequest
	}
}

// selectSubprotocol picks the first token out of the client's raw subprotocol list. Any
// echoing to the client belongs to the continuation, not to the handshake response.
func selectSubprotocol(raw string) (selected string) {
	if raw == "" {
		return ""
	}
	httphead.ScanTokens([]byte(raw), func(token []byte) bool {
		selected = string(token)

		return false
	})

	return selected
}
