// SPDX-License-Identifier: ice License 1.0

package server_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	stdlibtime "time"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/wsupgrade/log"
	"github.com/ice-blockchain/wsupgrade/server"
	"github.com/ice-blockchain/wsupgrade/server/fixture"
)

const (
	connCount    = 10
	testDeadline = 10 * stdlibtime.Second
	serverURL    = "wss://localhost:9546/"
	httpURL      = "https://localhost:9546"
)

func TestSimpleEchoDifferentClients(t *testing.T) {
	t.Run("gobwas websocket http 1.1", func(t *testing.T) {
		testEcho(t, connCount, func(ctx context.Context) (fixture.Client, error) {
			return fixture.NewWebsocketClient(ctx, serverURL)
		})
	})

	t.Run("gorilla websocket http 1.1", func(t *testing.T) {
		testEcho(t, connCount, func(ctx context.Context) (fixture.Client, error) {
			return fixture.NewGorillaWebsocketClient(ctx, serverURL)
		})
	})

	t.Run("websocket http 2", func(t *testing.T) {
		testEcho(t, connCount, func(ctx context.Context) (fixture.Client, error) {
			return fixture.NewWebsocketClientHTTP2(ctx, httpURL+"/")
		})
	})
}

func testEcho(t *testing.T, conns int, client func(ctx context.Context) (fixture.Client, error)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	var handlersMx sync.Mutex
	handlers := make(map[server.RawWriter]struct{}, conns)
	echoFunc := func(w server.RawWriter, in string) error {
		handlersMx.Lock()
		handlers[w] = struct{}{}
		handlersMx.Unlock()

		return w.WriteMessage(int(ws.OpText), []byte("server reply:"+in))
	}
	srv := fixture.NewTestServer(ctx, cancel, echoFunc)
	waitForServer(t)
	clients := make([]fixture.Client, 0, conns)
	for i := 0; i < conns; i++ {
		clientConn, err := client(ctx)
		if err != nil {
			log.Panic(err)
		}
		clients = append(clients, clientConn)
	}
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(ii int) {
			defer wg.Done()
			clientConn := clients[ii]
			defer clientConn.Close()
			sendMsgsTransformed := make([]string, 0)
			receivedBackOnClient := make([]string, 0)
			go func() {
				for received := range clientConn.Received() {
					receivedBackOnClient = append(receivedBackOnClient, string(received))
					assert.Equal(t, sendMsgsTransformed[0:len(receivedBackOnClient)], receivedBackOnClient)
				}
			}()
			for ctx.Err() == nil {
				msg := uuid.NewString()
				sendMsgsTransformed = append(sendMsgsTransformed, "server reply:"+msg)
				err := clientConn.WriteMessage(int(ws.OpText), []byte(msg))
				if ctx.Err() == nil {
					assert.NoError(t, err)
				}
			}
		}(i)
	}
	wg.Wait()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*stdlibtime.Second)
	defer shutdownCancel()
	for srv.ReaderExited.Load() != uint64(conns) {
		if shutdownCtx.Err() != nil {
			log.Panic(errors.Errorf("shutdown timeout %v of %v", srv.ReaderExited.Load(), conns))
		}
		stdlibtime.Sleep(100 * stdlibtime.Millisecond)
	}
	require.Equal(t, uint64(conns), srv.ReaderExited.Load())
	require.Len(t, handlers, conns)
}

func TestHandshakeRejectionStatuses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	fixture.NewTestServer(ctx, cancel, func(w server.RawWriter, in string) error { return nil })
	waitForServer(t)
	httpClient := newHTTPClient(t)

	upgradeHeaders := func(req *http.Request) {
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
		req.Header.Set("Sec-WebSocket-Version", "13")
	}
	cases := []struct {
		name           string
		mutate         func(req *http.Request)
		method         string
		expectedStatus int
	}{
		{name: "wrong method", method: http.MethodPost, mutate: upgradeHeaders, expectedStatus: http.StatusMethodNotAllowed},
		{name: "unsupported version", method: http.MethodGet, mutate: func(req *http.Request) {
			upgradeHeaders(req)
			req.Header.Set("Sec-WebSocket-Version", "12")
		}, expectedStatus: http.StatusBadRequest},
		{name: "missing key", method: http.MethodGet, mutate: func(req *http.Request) {
			upgradeHeaders(req)
			req.Header.Del("Sec-WebSocket-Key")
		}, expectedStatus: http.StatusBadRequest},
		{name: "wrong connection header", method: http.MethodGet, mutate: func(req *http.Request) {
			upgradeHeaders(req)
			req.Header.Set("Connection", "keep-alive")
		}, expectedStatus: http.StatusBadRequest},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(ctx, tt.method, httpURL+"/", http.NoBody)
			require.NoError(t, err)
			tt.mutate(req)
			resp, err := httpClient.Do(req)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}

	t.Run("plain http falls through to the router", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURL+"/health", http.NoBody)
		require.NoError(t, err)
		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func waitForServer(t *testing.T) {
	t.Helper()
	httpClient := newHTTPClient(t)
	for i := 0; i < 100; i++ {
		resp, err := httpClient.Get(httpURL + "/health") //nolint:noctx // Readiness probe.
		if err == nil {
			_ = resp.Body.Close() //nolint:errcheck // Readiness probe.

			return
		}
		stdlibtime.Sleep(100 * stdlibtime.Millisecond)
	}
	t.Fatal("server did not start listening")
}

func newHTTPClient(t *testing.T) *http.Client {
	t.Helper()
	crt, err := os.ReadFile("fixture/.testdata/localhost.crt")
	require.NoError(t, err)
	caCertPool := x509.NewCertPool()
	require.True(t, caCertPool.AppendCertsFromPEM(crt), fmt.Sprintf("failed to append %v to cert pool", crt))

	return &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: caCertPool}}}
}
