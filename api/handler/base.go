package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/api/transport"
	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	appLogger "github.com/fastygo/sellerdesk/pkg/logger"
	"github.com/fastygo/sellerdesk/usecase/catalog"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

// respondResult writes a marketplace read with its cache metadata.
func (h baseHandler) respondResult(ctx *fasthttp.RequestCtx, res *catalog.Result) {
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(res.Data, transport.Meta{Cached: res.Cached, After: res.After}))
}

func (h baseHandler) respondError(stdCtx context.Context, ctx *fasthttp.RequestCtx, err error) {
	status, code, message := transport.ErrorStatus(err)
	h.respondErrorStatus(stdCtx, ctx, status, code, message, err)
}

// respondLookupError reports upstream rejections of single-entity reads as not found.
func (h baseHandler) respondLookupError(stdCtx context.Context, ctx *fasthttp.RequestCtx, err error) {
	status, code, message := transport.ErrorStatus(err)
	h.respondErrorStatus(stdCtx, ctx, transport.NotFoundOnUpstreamReject(status, code), code, message, err)
}

func (h baseHandler) respondErrorStatus(stdCtx context.Context, ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string, err error) {
	log := appLogger.WithRequestID(stdCtx, h.logger)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", zap.String("path", string(ctx.Path())), zap.String("code", string(code)), zap.Error(err))
	case code == domain.ErrCodeUpstreamDomain:
		log.Warn("marketplace rejected request", zap.String("path", string(ctx.Path())), zap.Error(err))
	}
	h.respondJSON(ctx, status, transport.NewError(string(code), message, nil))
}

func (h baseHandler) decode(ctx *fasthttp.RequestCtx, out interface{}) error {
	if len(ctx.PostBody()) == 0 {
		return domain.ErrInvalidPayload
	}
	if err := json.Unmarshal(ctx.PostBody(), out); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "invalid payload", err)
	}
	return nil
}

// rawBody returns the request body as JSON, or nil when empty.
func rawBody(ctx *fasthttp.RequestCtx) (json.RawMessage, error) {
	body := ctx.PostBody()
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, domain.ErrInvalidPayload
	}
	return append(json.RawMessage(nil), body...), nil
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func queryString(ctx *fasthttp.RequestCtx, name string) string {
	return string(ctx.QueryArgs().Peek(name))
}

// refreshRequested accepts any non-empty refresh value other than false or 0.
func refreshRequested(ctx *fasthttp.RequestCtx) bool {
	v := queryString(ctx, "refresh")
	return v != "" && v != "false" && v != "0"
}

func queryInt(ctx *fasthttp.RequestCtx, name string) (int, error) {
	v := queryString(ctx, name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.NewError(domain.ErrCodeInvalid, name+" must be a non-negative integer")
	}
	return n, nil
}
