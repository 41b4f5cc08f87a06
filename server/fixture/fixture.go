// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ice-blockchain/wsupgrade/server"
)

func NewTestServer(ctx context.Context, cancel context.CancelFunc, processingFunc func(w server.RawWriter, in string) error) *MockService {
	service := newMockService(processingFunc)
	service.server = server.New(service, applicationYamlKey)
	go service.server.ListenAndServe(ctx, cancel)

	return service
}

func newMockService(processingFunc func(w server.RawWriter, in string) error) *MockService {
	return &MockService{processingFunc: processingFunc}
}

func (m *MockService) HandleTransport(ctx context.Context, transport server.Raw, _ string) {
	defer func() {
		m.ReaderExited.Add(1)
	}()
	for ctx.Err() == nil {
		_, msg, err := transport.ReadMessage()
		if err != nil {
			break
		}
		if len(msg) > 0 {
			m.processingFunc(transport, string(msg))
		}
	}
}

func (m *MockService) Init(ctx context.Context, cancel context.CancelFunc) {
}

func (m *MockService) Close(ctx context.Context) error {
	return nil
}

func (m *MockService) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(ginCtx *gin.Context) {
		ginCtx.String(http.StatusOK, "ok")
	})
}
