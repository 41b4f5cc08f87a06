// SPDX-License-Identifier: ice License 1.0

package httpx

import (
	"bufio"
	"net"
	"net/http"
	stdlibtime "time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

func newStreamTransport(req *http.Request, writer http.ResponseWriter) *streamTransport {
	return &streamTransport{
		req:        req,
		writer:     writer,
		controller: http.NewResponseController(writer),
		done:       make(chan struct{}),
	}
}

func (s *streamTransport) Read(b []byte) (n int, err error) {
	return s.req.Body.Read(b) //nolint:wrapcheck // Proxy.
}

func (s *streamTransport) Write(b []byte) (n int, err error) {
	n, err = s.writer.Write(b)
	if err == nil {
		err = s.controller.Flush()
	}

	return n, err //nolint:wrapcheck // Proxy.
}

func (s *streamTransport) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.req.Body.Close()
		close(s.done)
	})

	return errors.Wrap(err, "failed to close stream transport")
}

func (s *streamTransport) closed() <-chan struct{} {
	return s.done
}

func (s *streamTransport) LocalAddr() net.Addr {
	if addr, ok := s.req.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		return addr
	}

	return strAddr("")
}

func (s *streamTransport) RemoteAddr() net.Addr {
	return strAddr(s.req.RemoteAddr)
}

func (s *streamTransport) SetDeadline(t stdlibtime.Time) error {
	return multierror.Append( //nolint:wrapcheck // .
		s.SetReadDeadline(t),
		s.SetWriteDeadline(t),
	).ErrorOrNil()
}

func (s *streamTransport) SetReadDeadline(t stdlibtime.Time) error {
	return s.controller.SetReadDeadline(t) //nolint:wrapcheck // Proxy.
}

func (s *streamTransport) SetWriteDeadline(t stdlibtime.Time) error {
	return s.controller.SetWriteDeadline(t) //nolint:wrapcheck // Proxy.
}

func (strAddr) Network() string {
	return "tcp"
}

func (a strAddr) String() string {
	return string(a)
}

func wrapHijacked(conn net.Conn, reader *bufio.Reader) net.Conn {
	if reader != nil && reader.Buffered() > 0 {
		return &hijackedConn{Conn: conn, reader: reader}
	}

	return conn
}

func (h *hijackedConn) Read(b []byte) (n int, err error) {
	return h.reader.Read(b) //nolint:wrapcheck // Proxy.
}
