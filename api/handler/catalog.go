package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/api/transport"
	"github.com/fastygo/sellerdesk/internal/marketplace"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	"github.com/fastygo/sellerdesk/usecase/catalog"
)

// CatalogHandler exposes the marketplace entities behind the cache coordinator.
type CatalogHandler struct {
	baseHandler
	c *catalog.Coordinator
}

func NewCatalogHandler(coordinator *catalog.Coordinator, adapter *httpcontext.Adapter, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		baseHandler: newBaseHandler(adapter, logger),
		c:           coordinator,
	}
}

type read func(ctx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error)

func (h *CatalogHandler) serve(ctx *fasthttp.RequestCtx, fn read) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := fn(stdCtx, ctx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondResult(ctx, res)
}

func (h *CatalogHandler) lookup(ctx *fasthttp.RequestCtx, fn read) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := fn(stdCtx, ctx)
	if err != nil {
		h.respondLookupError(stdCtx, ctx, err)
		return
	}
	h.respondResult(ctx, res)
}

// @Router /api/orders [get]
func (h *CatalogHandler) ListOrders(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		limit, err := queryInt(rc, "limit")
		if err != nil {
			return nil, err
		}
		return h.c.ListOrders(stdCtx, limit)
	})
}

// @Router /api/orders/{id} [get]
func (h *CatalogHandler) GetOrder(ctx *fasthttp.RequestCtx) {
	h.lookup(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.GetOrder(stdCtx, pathParam(rc, "id"), refreshRequested(rc))
	})
}

// @Router /api/orders/{id}/delivery [post]
func (h *CatalogHandler) DeliverOrder(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		body, err := rawBody(rc)
		if err != nil {
			return nil, err
		}
		return h.c.DeliverOrder(stdCtx, pathParam(rc, "id"), body)
	})
}

// @Router /api/orders/{id}/delivery/{delivery} [get]
func (h *CatalogHandler) DeliveryStatus(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.DeliveryStatus(stdCtx, pathParam(rc, "id"), pathParam(rc, "delivery"))
	})
}

// @Router /api/offers [get]
func (h *CatalogHandler) ListOffers(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		limit, err := queryInt(rc, "limit")
		if err != nil {
			return nil, err
		}
		return h.c.ListOffers(stdCtx, limit)
	})
}

// @Router /api/offers/{id} [get]
func (h *CatalogHandler) GetOffer(ctx *fasthttp.RequestCtx) {
	h.lookup(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.GetOffer(stdCtx, pathParam(rc, "id"), refreshRequested(rc))
	})
}

// @Router /api/offers [post]
func (h *CatalogHandler) CreateOffer(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		body, err := rawBody(rc)
		if err != nil {
			return nil, err
		}
		return h.c.CreateOffer(stdCtx, body)
	})
}

// @Router /api/offers/{id} [patch]
func (h *CatalogHandler) UpdateOffer(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		body, err := rawBody(rc)
		if err != nil {
			return nil, err
		}
		return h.c.UpdateOffer(stdCtx, pathParam(rc, "id"), body)
	})
}

// @Router /api/offers/{id} [delete]
func (h *CatalogHandler) DeleteOffer(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.DeleteOffer(stdCtx, pathParam(rc, "id"))
	})
}

// @Router /api/services [get]
func (h *CatalogHandler) Services(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.Services(stdCtx, queryString(rc, "language"), refreshRequested(rc))
	})
}

// @Router /api/brands/{service} [get]
func (h *CatalogHandler) Brands(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		query := marketplace.BrandQuery{
			Language: queryString(rc, "language"),
			Q:        queryString(rc, "q"),
			After:    queryString(rc, "after"),
		}
		return h.c.Brands(stdCtx, pathParam(rc, "service"), query, refreshRequested(rc))
	})
}

// @Router /api/products [get]
func (h *CatalogHandler) Products(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.Products(stdCtx, queryString(rc, "service_id"), queryString(rc, "brand_id"), refreshRequested(rc))
	})
}

// @Router /api/products/{id}/attributes [get]
func (h *CatalogHandler) ProductAttributes(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.ProductAttributes(stdCtx, pathParam(rc, "id"))
	})
}

// @Router /api/inventory/{offer} [post]
func (h *CatalogHandler) UploadInventoryItem(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		var req transport.InventoryUploadRequest
		if err := h.decode(rc, &req); err != nil {
			return nil, err
		}
		return h.c.UploadInventoryItem(stdCtx, pathParam(rc, "offer"), catalog.InventoryUpload{
			Content:     req.Content,
			ContentType: req.ContentType,
			ReferenceID: req.ReferenceID,
		})
	})
}

// @Router /api/inventory/{offer} [get]
func (h *CatalogHandler) ListInventory(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.ListInventory(stdCtx, pathParam(rc, "offer"))
	})
}

// @Router /api/inventory/{offer}/{item} [get]
func (h *CatalogHandler) GetInventoryItem(ctx *fasthttp.RequestCtx) {
	h.lookup(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.GetInventoryItem(stdCtx, pathParam(rc, "offer"), pathParam(rc, "item"))
	})
}

// @Router /api/inventory/{offer}/{item} [delete]
func (h *CatalogHandler) DeleteInventoryItem(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.DeleteInventoryItem(stdCtx, pathParam(rc, "offer"), pathParam(rc, "item"))
	})
}

// @Router /api/store [get]
func (h *CatalogHandler) Store(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, _ *fasthttp.RequestCtx) (*catalog.Result, error) {
		return h.c.Store(stdCtx)
	})
}

// @Router /api/webhook-logs/search [post]
func (h *CatalogHandler) SearchWebhookLogs(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		body, err := rawBody(rc)
		if err != nil {
			return nil, err
		}
		return h.c.SearchWebhookLogs(stdCtx, body)
	})
}

// @Router /api/webhook-logs [get]
func (h *CatalogHandler) ListWebhookLogs(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, rc *fasthttp.RequestCtx) (*catalog.Result, error) {
		limit, err := queryInt(rc, "limit")
		if err != nil {
			return nil, err
		}
		return h.c.ListWebhookLogs(stdCtx, limit)
	})
}

// @Router /api/stats [get]
func (h *CatalogHandler) Stats(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.c.Stats(stdCtx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}
