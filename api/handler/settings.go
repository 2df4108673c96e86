package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/api/transport"
	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/middleware"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	"github.com/fastygo/sellerdesk/usecase/catalog"
	settingsUC "github.com/fastygo/sellerdesk/usecase/settings"
)

type SettingsHandler struct {
	baseHandler
	uc      *settingsUC.UseCase
	catalog *catalog.Coordinator
}

func NewSettingsHandler(uc *settingsUC.UseCase, coordinator *catalog.Coordinator, adapter *httpcontext.Adapter, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		catalog:     coordinator,
	}
}

// @Summary Current marketplace settings
// @Tags settings
// @Router /api/settings [get]
func (h *SettingsHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	s, err := h.uc.Get(stdCtx, middleware.Caller(ctx))
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, s)
}

// @Summary Save marketplace settings
// @Tags settings
// @Router /api/settings [post]
func (h *SettingsHandler) Save(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var req transport.SettingsRequest
	if err := h.decode(ctx, &req); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	s, err := h.uc.Save(stdCtx, middleware.Caller(ctx), settingsUC.Input{APIKey: req.APIKey, APIBaseURL: req.APIBaseURL})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, s)
}

// @Summary Test marketplace credentials without saving them
// @Tags settings
// @Router /api/settings/test [post]
func (h *SettingsHandler) Test(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var req transport.SettingsRequest
	if err := h.decode(ctx, &req); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	err := h.uc.TestConnection(stdCtx, middleware.Caller(ctx), settingsUC.Input{APIKey: req.APIKey, APIBaseURL: req.APIBaseURL})
	switch {
	case err == nil:
		h.respondSuccess(ctx, http.StatusOK, map[string]string{"message": "Connection successful!"})
	case domain.ReasonOf(err) == domain.ErrCodeUpstreamDomain:
		h.respondErrorStatus(stdCtx, ctx, http.StatusBadRequest, domain.ErrCodeUpstreamDomain, "Connection failed", err)
	default:
		h.respondError(stdCtx, ctx, err)
	}
}

// @Summary Empty every cached marketplace table
// @Tags settings
// @Router /api/settings/clear-cache [post]
func (h *SettingsHandler) ClearCache(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.catalog.ClearCache(stdCtx); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}
