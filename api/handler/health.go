package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/api/transport"
	"github.com/fastygo/sellerdesk/internal/infrastructure/monitor"
	"github.com/fastygo/sellerdesk/internal/middleware"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
)

// StatusSource reports dependency connectivity.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
}

func NewHealthHandler(mon StatusSource, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /api/health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp":     time.Now().UTC(),
		"authenticated": middleware.Caller(ctx) != nil,
		"services": map[string]interface{}{
			"store": connected(status.Store),
			"redis": connected(status.Redis),
			"buffer": map[string]interface{}{
				"online": status.Buffer,
				"size":   status.BufferSize,
			},
		},
		"last_check": status.LastCheck,
	}

	if status.Healthy() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("degraded", "dependencies unhealthy", payload))
}

func connected(ok bool) string {
	if ok {
		return "connected"
	}
	return "disconnected"
}
