// SPDX-License-Identifier: ice License 1.0

package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"

	"github.com/ice-blockchain/wsupgrade/server/internal"
	"github.com/ice-blockchain/wsupgrade/upgrade"
)

func New(cfg *internal.Config, transportHandler internal.TransportHandler, handler http.Handler) internal.Server {
	s := &srv{cfg: cfg, upgrader: &upgrade.Upgrader{ExtendedConnect: cfg.WSUpgrade.ExtendedConnect}}
	s.handler = s.handle(transportHandler, handler)

	return s
}

func (s *srv) ListenAndServeTLS(ctx context.Context, certFile, keyFile string) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%v", s.cfg.WSUpgrade.Port),
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	// Extended CONNECT support on the h2 side needs x/net's server, not the bundled one.
	if err := http2.ConfigureServer(s.server, &http2.Server{}); err != nil {
		return errors.Wrap(err, "failed to configure http2 server")
	}

	return errors.Wrap(s.server.ListenAndServeTLS(certFile, keyFile), "failed to start http1/2 server")
}

func (s *srv) handle(transportHandler internal.TransportHandler, handler http.Handler) http.HandlerFunc {
	return func(writer http.ResponseWriter, req *http.Request) {
		if isUpgradeRequest(req) {
			s.handleUpgrade(writer, req, transportHandler)

			return
		}
		if handler != nil {
			handler.ServeHTTP(writer, req)

			return
		}
		writer.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func isUpgradeRequest(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), websocketProtocol) ||
		(req.Method == http.MethodConnect && req.Proto == websocketProtocol)
}

func (s *srv) Shutdown(_ context.Context) error {
	return errors.Wrapf(s.server.Close(), "failed to close server")
}
