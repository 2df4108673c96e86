package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/api/transport"
	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	authUC "github.com/fastygo/sellerdesk/usecase/auth"
)

// SessionCookie carries the signed session token.
const SessionCookie = "sid"

const (
	callerValue  = "caller"
	sessionValue = "session"
)

// Resolver turns a session id into a caller and gates access levels.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)
	Authorize(ctx context.Context, caller *domain.User, level domain.Level) error
}

type TokenParser interface {
	Parse(token string) (*authUC.Claims, error)
}

type Auth struct {
	resolver Resolver
	tokens   TokenParser
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAuth(resolver Resolver, tokens TokenParser, timeout time.Duration, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Auth{resolver: resolver, tokens: tokens, timeout: timeout, logger: logger}
}

// Identify resolves the caller from the session cookie or bearer token. Requests without a
// valid session continue anonymously; gating is left to Require.
func (a *Auth) Identify(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if token := extractToken(ctx); token != "" {
			a.identify(ctx, token)
		}
		next(ctx)
	}
}

func (a *Auth) identify(ctx *fasthttp.RequestCtx, token string) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		a.logger.Debug("rejected session token", zap.Error(err))
		return
	}

	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	session, user, err := a.resolver.Resolve(stdCtx, claims.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			a.logger.Warn("session lookup failed", zap.String("session_id", claims.SessionID), zap.Error(err))
		}
		return
	}
	ctx.SetUserValue(sessionValue, session)
	ctx.SetUserValue(callerValue, user)
	ctx.SetUserValue(httpcontext.UserIDValue, user.ID)
}

// Require rejects requests whose caller does not reach level.
func (a *Auth) Require(level domain.Level) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
			err := a.resolver.Authorize(stdCtx, Caller(ctx), level)
			cancel()
			if err != nil {
				writeError(ctx, err)
				return
			}
			next(ctx)
		}
	}
}

// Caller returns the resolved user or nil for anonymous requests.
func Caller(ctx *fasthttp.RequestCtx) *domain.User {
	user, _ := ctx.UserValue(callerValue).(*domain.User)
	return user
}

func Session(ctx *fasthttp.RequestCtx) *domain.Session {
	session, _ := ctx.UserValue(sessionValue).(*domain.Session)
	return session
}

func writeError(ctx *fasthttp.RequestCtx, err error) {
	status, code, message := transport.ErrorStatus(err)
	body, _ := json.Marshal(transport.NewError(string(code), message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	if cookie := ctx.Request.Header.Cookie(SessionCookie); len(cookie) > 0 {
		return string(cookie)
	}
	header := string(ctx.Request.Header.Peek("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
