package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/middleware"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	appLogger "github.com/fastygo/sellerdesk/pkg/logger"
	authUC "github.com/fastygo/sellerdesk/usecase/auth"
)

// OAuthFlow is the external identity handshake.
type OAuthFlow interface {
	Begin(ctx context.Context) (string, error)
	Complete(ctx context.Context, params url.Values) (domain.ExternalProfile, error)
}

type AuthHandler struct {
	baseHandler
	uc           *authUC.UseCase
	flow         OAuthFlow
	tokens       *authUC.Tokens
	frontendURL  string
	secureCookie bool
}

func NewAuthHandler(uc *authUC.UseCase, flow OAuthFlow, tokens *authUC.Tokens, frontendURL string, secureCookie bool, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler:  newBaseHandler(adapter, logger),
		uc:           uc,
		flow:         flow,
		tokens:       tokens,
		frontendURL:  frontendURL,
		secureCookie: secureCookie,
	}
}

// userView is what the frontend needs to render a caller, including pending or banned ones.
type userView struct {
	ID            string        `json:"id"`
	DiscordID     string        `json:"discord_id"`
	Username      string        `json:"username"`
	Discriminator string        `json:"discriminator,omitempty"`
	Avatar        string        `json:"avatar,omitempty"`
	Email         string        `json:"email,omitempty"`
	Role          domain.Role   `json:"role"`
	Status        domain.Status `json:"status"`
}

func viewOf(u *domain.User) userView {
	return userView{
		ID:            u.ID,
		DiscordID:     u.DiscordID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Avatar:        u.Avatar,
		Email:         u.Email,
		Role:          u.Role,
		Status:        u.Status,
	}
}

// @Summary Start Discord login
// @Tags auth
// @Router /auth/discord [get]
func (h *AuthHandler) Discord(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	target, err := h.flow.Begin(stdCtx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.Redirect(target, http.StatusFound)
}

// @Summary Discord OAuth callback
// @Tags auth
// @Router /auth/discord/callback [get]
func (h *AuthHandler) Callback(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	log := appLogger.WithRequestID(stdCtx, h.logger)

	params := url.Values{}
	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		params.Add(string(key), string(value))
	})

	profile, err := h.flow.Complete(stdCtx, params)
	if err != nil {
		log.Warn("discord callback rejected", zap.Error(err))
		ctx.Redirect(h.frontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}
	user, session, err := h.uc.Login(stdCtx, profile)
	if err != nil {
		log.Error("login failed", zap.String("discord_id", profile.ExternalID), zap.Error(err))
		ctx.Redirect(h.frontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}
	token, err := h.tokens.Issue(session)
	if err != nil {
		log.Error("failed to sign session", zap.Error(err))
		ctx.Redirect(h.frontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}

	h.setCookie(ctx, token, session.ExpiresAt)
	log.Info("user logged in", zap.String("user_id", user.ID), zap.String("status", string(user.Status)))
	ctx.Redirect(h.frontendURL, http.StatusFound)
}

// @Summary Log out
// @Tags auth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Logout(stdCtx, middleware.Session(ctx)); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.setCookie(ctx, "", time.Unix(0, 0))
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// @Summary Current user
// @Tags auth
// @Router /auth/user [get]
func (h *AuthHandler) User(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, viewOf(middleware.Caller(ctx)))
}

// @Summary Authentication status
// @Tags auth
// @Router /auth/status [get]
func (h *AuthHandler) Status(ctx *fasthttp.RequestCtx) {
	payload := map[string]interface{}{"authenticated": false}
	if caller := middleware.Caller(ctx); caller != nil {
		payload["authenticated"] = true
		payload["user"] = viewOf(caller)
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}

func (h *AuthHandler) setCookie(ctx *fasthttp.RequestCtx, value string, expires time.Time) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(middleware.SessionCookie)
	cookie.SetValue(value)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(h.secureCookie)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetExpire(expires)
	ctx.Response.Header.SetCookie(cookie)
}
