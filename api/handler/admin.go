package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/middleware"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	"github.com/fastygo/sellerdesk/repository"
	adminUC "github.com/fastygo/sellerdesk/usecase/admin"
)

type AdminHandler struct {
	baseHandler
	uc *adminUC.UseCase
}

func NewAdminHandler(uc *adminUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List users
// @Tags admin
// @Router /api/admin/users [get]
func (h *AdminHandler) ListUsers(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	limit, err := queryInt(ctx, "limit")
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	offset, err := queryInt(ctx, "offset")
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	users, err := h.uc.ListUsers(stdCtx, middleware.Caller(ctx), repository.UserFilter{
		Status: domain.Status(queryString(ctx, "status")),
		Role:   domain.Role(queryString(ctx, "role")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, users)
}

// @Summary Recent audit entries
// @Tags admin
// @Router /api/admin/logs [get]
func (h *AdminHandler) ListLogs(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	limit, err := queryInt(ctx, "limit")
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	entries, err := h.uc.ListLogs(stdCtx, middleware.Caller(ctx), limit)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, entries)
}

type moderation func(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error)

func (h *AdminHandler) moderate(op moderation) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		stdCtx, cancel := h.requestContext(ctx)
		defer cancel()

		user, err := op(stdCtx, middleware.Caller(ctx), pathParam(ctx, "id"))
		if err != nil {
			h.respondError(stdCtx, ctx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, user)
	}
}

// @Router /api/admin/users/{id}/approve [post]
func (h *AdminHandler) Approve(ctx *fasthttp.RequestCtx) { h.moderate(h.uc.Approve)(ctx) }

// @Router /api/admin/users/{id}/ban [post]
func (h *AdminHandler) Ban(ctx *fasthttp.RequestCtx) { h.moderate(h.uc.Ban)(ctx) }

// @Router /api/admin/users/{id}/unban [post]
func (h *AdminHandler) Unban(ctx *fasthttp.RequestCtx) { h.moderate(h.uc.Unban)(ctx) }

// @Router /api/admin/users/{id}/promote [post]
func (h *AdminHandler) Promote(ctx *fasthttp.RequestCtx) { h.moderate(h.uc.Promote)(ctx) }

// @Router /api/admin/users/{id}/demote [post]
func (h *AdminHandler) Demote(ctx *fasthttp.RequestCtx) { h.moderate(h.uc.Demote)(ctx) }
