// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	stdlibtime "time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	gorillaws "github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/net/http2"

	"github.com/ice-blockchain/wsupgrade/log"
	"github.com/ice-blockchain/wsupgrade/server/internal"
	"github.com/ice-blockchain/wsupgrade/time"
)

func NewWebsocketClient(ctx context.Context, url string) (Client, error) {
	dialer := ws.Dialer{TLSConfig: localhostTLS()}
	conn, _, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to establish websocket conn to %v", url)
	}
	c, closectx := clientWebSocketAdapter(ctx, conn, 0, 0)
	go c.read(closectx)

	return c, nil
}

// NewWebsocketClientHTTP2 dials over HTTP/2 extended CONNECT: x/net's transport sends
// the request as CONNECT with the `:protocol` pseudo-header once the server advertises
// SETTINGS_ENABLE_CONNECT_PROTOCOL, the request body pipe carries client frames and the
// response body carries server frames.
func NewWebsocketClientHTTP2(ctx context.Context, urlStr string) (Client, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid url %v", urlStr)
	}
	header := http.Header{}
	header.Set("Sec-Websocket-Version", "13")
	header[extendedConnectProtocolHeader] = []string{"websocket"}
	bodyReader, bodyWriter := io.Pipe()
	req := (&http.Request{
		Method: http.MethodConnect,
		Proto:  "websocket",
		Header: header,
		Host:   u.Host,
		URL:    u,
		Body:   bodyReader,
	}).WithContext(ctx)
	transport := &http2.Transport{TLSClientConfig: localhostTLS()}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to establish websocket conn over http2 to %v", urlStr)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Errorf("received status %d", resp.StatusCode)
	}
	c, closectx := clientWebSocketAdapter(ctx, &http2ClientStream{writer: bodyWriter, resp: resp}, 0, 0)
	go c.read(closectx)

	return c, nil
}

// NewGorillaWebsocketClient dials with a second, independent websocket implementation.
// Gorilla verifies the Sec-WebSocket-Accept response header itself, so a successful
// dial also proves the signed accept key is bit-exact.
func NewGorillaWebsocketClient(ctx context.Context, url string) (Client, error) {
	dialer := gorillaws.Dialer{TLSClientConfig: localhostTLS()}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to establish gorilla websocket conn to %v", url)
	}
	c := &gorillaClient{conn: conn, inputMessages: make(chan []byte)}
	go c.read(ctx)

	return c, nil
}

func clientWebSocketAdapter(ctx context.Context, conn net.Conn, readTimeout, writeTimeout stdlibtime.Duration) (*wsocketClient, context.Context) {
	wt := &wsocketClient{
		conn:          conn,
		closeChannel:  make(chan struct{}, 1),
		readTimeout:   readTimeout,
		writeTimeout:  writeTimeout,
		inputMessages: make(chan []byte),
	}

	return wt, internal.NewCustomCancelContext(ctx, wt.closeChannel)
}

func (w *wsocketClient) read(ctx context.Context) {
	for ctx.Err() == nil {
		_, msg, err := w.ReadMessage()
		if err != nil {
			break
		}
		if len(msg) > 0 {
			select {
			case <-w.closeChannel:
				return
			default:
				func() {
					w.closeMx.Lock()
					defer w.closeMx.Unlock()
					if !w.closed {
						w.inputMessages <- msg
					}
				}()
			}
		}
	}
}

func (w *wsocketClient) Received() <-chan []byte {
	return w.inputMessages
}

func (w *wsocketClient) WriteMessage(messageType int, data []byte) error {
	select {
	case <-w.closeChannel:
		return nil
	default:
		var err error
		if w.writeTimeout > 0 {
			err = multierror.Append(nil, w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)))
		}
		w.closeMx.Lock()
		if w.closed {
			w.closeMx.Unlock()

			return nil
		}
		w.closeMx.Unlock()
		wErr := wsutil.WriteClientMessage(w.conn, ws.OpCode(messageType), data)
		if isConnClosedErr(wErr) {
			wErr = nil
		}

		return errors.Wrapf(multierror.Append(err, wErr).ErrorOrNil(), "client: failed to write data to websocket")
	}
}

func (w *wsocketClient) ReadMessage() (messageType int, p []byte, err error) {
	if w.readTimeout > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.readTimeout)) //nolint:errcheck // It is not crucial if we ignore it here.
	}
	msgBytes, typ, err := wsutil.ReadServerData(w.conn)
	if err != nil {
		return int(typ), msgBytes, err
	}
	if typ == ws.OpPing {
		err = wsutil.WriteClientMessage(w.conn, ws.OpPong, nil)
		if err == nil {
			return w.ReadMessage()
		}

		return int(typ), msgBytes, err
	}

	return int(typ), msgBytes, err
}

func (w *wsocketClient) Close() error {
	w.closeMx.Lock()
	if w.closed {
		w.closeMx.Unlock()

		return nil
	}
	w.closed = true
	close(w.closeChannel)
	close(w.inputMessages)
	w.closeMx.Unlock()
	wErr := wsutil.WriteClientMessage(w.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	err := w.conn.Close()

	return multierror.Append(wErr, err).ErrorOrNil()
}

func (g *gorillaClient) read(ctx context.Context) {
	for ctx.Err() == nil {
		_, msg, err := g.conn.ReadMessage()
		if err != nil {
			break
		}
		if len(msg) > 0 {
			func() {
				g.closeMx.Lock()
				defer g.closeMx.Unlock()
				if !g.closed {
					g.inputMessages <- msg
				}
			}()
		}
	}
}

func (g *gorillaClient) Received() <-chan []byte {
	return g.inputMessages
}

func (g *gorillaClient) WriteMessage(messageType int, data []byte) error {
	g.closeMx.Lock()
	if g.closed {
		g.closeMx.Unlock()

		return nil
	}
	g.closeMx.Unlock()

	return errors.Wrap(g.conn.WriteMessage(gorillaws.TextMessage, data), "client: failed to write data to gorilla websocket")
}

func (g *gorillaClient) Close() error {
	g.closeMx.Lock()
	if g.closed {
		g.closeMx.Unlock()

		return nil
	}
	g.closed = true
	close(g.inputMessages)
	g.closeMx.Unlock()
	wErr := g.conn.WriteMessage(gorillaws.CloseMessage, gorillaws.FormatCloseMessage(gorillaws.CloseNormalClosure, ""))

	return multierror.Append(wErr, g.conn.Close()).ErrorOrNil()
}

func (s *http2ClientStream) Read(b []byte) (n int, err error) {
	return s.resp.Body.Read(b) //nolint:wrapcheck // Proxy.
}

func (s *http2ClientStream) Write(b []byte) (n int, err error) {
	return s.writer.Write(b) //nolint:wrapcheck // Proxy.
}

func (s *http2ClientStream) Close() error {
	return multierror.Append( //nolint:wrapcheck // .
		s.writer.Close(),
		s.resp.Body.Close(),
	).ErrorOrNil()
}

func (*http2ClientStream) LocalAddr() net.Addr {
	return nil
}

func (*http2ClientStream) RemoteAddr() net.Addr {
	return nil
}

func (*http2ClientStream) SetDeadline(_ stdlibtime.Time) error {
	return nil
}

func (*http2ClientStream) SetReadDeadline(_ stdlibtime.Time) error {
	return nil
}

func (*http2ClientStream) SetWriteDeadline(_ stdlibtime.Time) error {
	return nil
}

func localhostTLS() *tls.Config {
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM([]byte(localhostCrt)); !ok {
		log.Panic(errors.New("failed to append localhost tls to cert pool"))
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    caCertPool,
	}
}

func isConnClosedErr(err error) bool {
	return err != nil &&
		(errors.Is(err, syscall.EPIPE) ||
			errors.Is(err, syscall.ECONNRESET) ||
			errors.Is(err, io.ErrClosedPipe) ||
			strings.Contains(err.Error(), "use of closed network connection"))
}
