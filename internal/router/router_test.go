package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/sellerdesk/api/handler"
	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/infrastructure/monitor"
	"github.com/fastygo/sellerdesk/internal/marketplace"
	"github.com/fastygo/sellerdesk/internal/middleware"
	"github.com/fastygo/sellerdesk/pkg/httpcontext"
	"github.com/fastygo/sellerdesk/repository/bolt"
	redisRepo "github.com/fastygo/sellerdesk/repository/redis"
	adminUC "github.com/fastygo/sellerdesk/usecase/admin"
	"github.com/fastygo/sellerdesk/usecase/audit"
	authUC "github.com/fastygo/sellerdesk/usecase/auth"
	"github.com/fastygo/sellerdesk/usecase/catalog"
	settingsUC "github.com/fastygo/sellerdesk/usecase/settings"
)

const ownerDiscordID = "1000"

type healthyMonitor struct{}

func (healthyMonitor) GetStatus() monitor.Status {
	return monitor.Status{Store: true, Redis: true, Buffer: true, LastCheck: time.Now()}
}

type noFlow struct{}

func (noFlow) Begin(context.Context) (string, error) { return "https://discord.example/authorize", nil }

func (noFlow) Complete(context.Context, url.Values) (domain.ExternalProfile, error) {
	return domain.ExternalProfile{}, domain.ErrUnauthenticated
}

type app struct {
	handler fasthttp.RequestHandler
	auth    *authUC.UseCase
	tokens  *authUC.Tokens
}

func newApp(t *testing.T) *app {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	recorder := audit.NewRecorder(store.Activity(), nil, nil)
	authUseCase := authUC.New(store.Users(), redisRepo.NewSessionRepository(client, time.Hour), recorder,
		authUC.Config{OwnerDiscordID: ownerDiscordID, SessionTTL: time.Hour}, nil)
	tokens := authUC.NewTokens("test-secret", "sellerdesk")

	provider := marketplace.NewSettingsProvider(store.Settings(), 2*time.Second)
	coordinator := catalog.New(provider, store.Cache(), nil, nil)
	adapter := httpcontext.NewAdapter(2 * time.Second)

	handlers := Handlers{
		Auth:     apiHandler.NewAuthHandler(authUseCase, noFlow{}, tokens, "http://frontend.test", false, adapter, nil),
		Admin:    apiHandler.NewAdminHandler(adminUC.New(store.Users(), recorder, authUseCase, nil), adapter, nil),
		Catalog:  apiHandler.NewCatalogHandler(coordinator, adapter, nil),
		Settings: apiHandler.NewSettingsHandler(settingsUC.New(store.Settings(), provider, authUseCase, "", nil), coordinator, adapter, nil),
		Health:   apiHandler.NewHealthHandler(healthyMonitor{}, adapter, nil),
	}
	return &app{
		handler: New(handlers, middleware.NewAuth(authUseCase, tokens, 2*time.Second, nil)),
		auth:    authUseCase,
		tokens:  tokens,
	}
}

// login opens a session for the external id and returns the user and its cookie value.
func (a *app) login(t *testing.T, externalID string) (*domain.User, string) {
	t.Helper()
	user, session, err := a.auth.Login(context.Background(), domain.ExternalProfile{ExternalID: externalID, Username: "u" + externalID})
	require.NoError(t, err)
	token, err := a.tokens.Issue(session)
	require.NoError(t, err)
	return user, token
}

type response struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Meta   json.RawMessage `json:"meta"`
}

func (a *app) call(t *testing.T, method, uri, token string, body []byte) (int, response) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if token != "" {
		ctx.Request.Header.SetCookie(middleware.SessionCookie, token)
	}
	if body != nil {
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBody(body)
	}
	a.handler(&ctx)

	var out response
	if len(ctx.Response.Body()) > 0 {
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	}
	return ctx.Response.StatusCode(), out
}

func upstream(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/v1/services" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":40400001,"message":"unknown path"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":20000001,"payload":{"service_list":[{"service_id":"s1","service_name":"Coins"}]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouterAccess(t *testing.T) {
	t.Run("Should report health to anonymous callers", func(t *testing.T) {
		a := newApp(t)
		status, body := a.call(t, fasthttp.MethodGet, "/api/health", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "success", body.Status)
		assert.Contains(t, string(body.Data), `"authenticated":false`)
	})

	t.Run("Should reject anonymous calls to gated routes", func(t *testing.T) {
		a := newApp(t)
		status, body := a.call(t, fasthttp.MethodGet, "/api/orders", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, string(domain.ErrCodeUnauthenticated), body.Code)
	})

	t.Run("Should treat a forged token as anonymous", func(t *testing.T) {
		a := newApp(t)
		status, _ := a.call(t, fasthttp.MethodGet, "/auth/user", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("Should keep pending users out until an admin approves them", func(t *testing.T) {
		a := newApp(t)
		_, ownerToken := a.login(t, ownerDiscordID)
		pending, pendingToken := a.login(t, "2000")

		status, body := a.call(t, fasthttp.MethodGet, "/api/orders", pendingToken, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, string(domain.ErrCodePendingApproval), body.Code)

		status, _ = a.call(t, fasthttp.MethodGet, "/auth/user", pendingToken, nil)
		assert.Equal(t, http.StatusOK, status)

		status, _ = a.call(t, fasthttp.MethodPost, "/api/admin/users/"+pending.ID+"/approve", ownerToken, nil)
		require.Equal(t, http.StatusOK, status)

		status, body = a.call(t, fasthttp.MethodGet, "/api/orders", pendingToken, nil)
		assert.Equal(t, http.StatusPreconditionFailed, status)
		assert.Equal(t, string(domain.ErrCodeConfiguration), body.Code)
	})

	t.Run("Should keep admin routes from approved users", func(t *testing.T) {
		a := newApp(t)
		_, ownerToken := a.login(t, ownerDiscordID)
		user, token := a.login(t, "3000")
		status, _ := a.call(t, fasthttp.MethodPost, "/api/admin/users/"+user.ID+"/approve", ownerToken, nil)
		require.Equal(t, http.StatusOK, status)

		status, body := a.call(t, fasthttp.MethodGet, "/api/admin/users", token, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, string(domain.ErrCodeForbiddenRole), body.Code)
	})

	t.Run("Should reserve promotion to the owner", func(t *testing.T) {
		a := newApp(t)
		_, ownerToken := a.login(t, ownerDiscordID)
		admin, adminToken := a.login(t, "4000")
		target, _ := a.login(t, "5000")

		status, _ := a.call(t, fasthttp.MethodPost, "/api/admin/users/"+admin.ID+"/promote", ownerToken, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = a.call(t, fasthttp.MethodPost, "/api/admin/users/"+target.ID+"/promote", adminToken, nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = a.call(t, fasthttp.MethodPost, "/api/admin/users/"+target.ID+"/approve", adminToken, nil)
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestRouterCatalog(t *testing.T) {
	t.Run("Should serve services from the cache after the first upstream read", func(t *testing.T) {
		var calls int32
		srv := upstream(t, &calls)
		a := newApp(t)
		_, ownerToken := a.login(t, ownerDiscordID)

		settings, err := json.Marshal(map[string]string{"api_key": "key", "api_base_url": srv.URL})
		require.NoError(t, err)
		status, _ := a.call(t, fasthttp.MethodPost, "/api/settings", ownerToken, settings)
		require.Equal(t, http.StatusOK, status)

		status, body := a.call(t, fasthttp.MethodGet, "/api/services", ownerToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(body.Data), `"s1"`)
		assert.JSONEq(t, `{"cached":false}`, string(body.Meta))

		status, body = a.call(t, fasthttp.MethodGet, "/api/services", ownerToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"cached":true}`, string(body.Meta))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("Should map an upstream rejection of a single read to not found", func(t *testing.T) {
		var calls int32
		srv := upstream(t, &calls)
		a := newApp(t)
		_, ownerToken := a.login(t, ownerDiscordID)

		settings, err := json.Marshal(map[string]string{"api_key": "key", "api_base_url": srv.URL})
		require.NoError(t, err)
		status, _ := a.call(t, fasthttp.MethodPost, "/api/settings", ownerToken, settings)
		require.Equal(t, http.StatusOK, status)

		status, _ = a.call(t, fasthttp.MethodGet, "/api/orders/o-404", ownerToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
