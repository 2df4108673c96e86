package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/sellerdesk/api/handler"
	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/middleware"
)

type Handlers struct {
	Auth     *apiHandler.AuthHandler
	Admin    *apiHandler.AdminHandler
	Catalog  *apiHandler.CatalogHandler
	Settings *apiHandler.SettingsHandler
	Health   *apiHandler.HealthHandler
}

// New wires every route. The returned handler resolves the caller before routing.
func New(handlers Handlers, auth *middleware.Auth) fasthttp.RequestHandler {
	r := router.New()

	authenticated := auth.Require(domain.LevelAuthenticated)
	approved := auth.Require(domain.LevelApproved)
	admin := auth.Require(domain.LevelAdmin)
	owner := auth.Require(domain.LevelOwner)

	r.GET("/api/health", handlers.Health.Check)

	// Auth routes
	r.GET("/auth/discord", handlers.Auth.Discord)
	r.GET("/auth/discord/callback", handlers.Auth.Callback)
	r.POST("/auth/logout", handlers.Auth.Logout)
	r.GET("/auth/user", authenticated(handlers.Auth.User))
	r.GET("/auth/status", handlers.Auth.Status)

	// Admin routes
	r.GET("/api/admin/users", admin(handlers.Admin.ListUsers))
	r.GET("/api/admin/logs", admin(handlers.Admin.ListLogs))
	r.POST("/api/admin/users/{id}/approve", admin(handlers.Admin.Approve))
	r.POST("/api/admin/users/{id}/ban", admin(handlers.Admin.Ban))
	r.POST("/api/admin/users/{id}/unban", admin(handlers.Admin.Unban))
	r.POST("/api/admin/users/{id}/promote", owner(handlers.Admin.Promote))
	r.POST("/api/admin/users/{id}/demote", owner(handlers.Admin.Demote))

	// Settings
	r.GET("/api/settings", approved(handlers.Settings.Get))
	r.POST("/api/settings", admin(handlers.Settings.Save))
	r.POST("/api/settings/test", admin(handlers.Settings.Test))
	r.POST("/api/settings/clear-cache", approved(handlers.Settings.ClearCache))

	// Marketplace entities
	c := handlers.Catalog
	r.GET("/api/orders", approved(c.ListOrders))
	r.GET("/api/orders/{id}", approved(c.GetOrder))
	r.POST("/api/orders/{id}/delivery", approved(c.DeliverOrder))
	r.GET("/api/orders/{id}/delivery/{delivery}", approved(c.DeliveryStatus))

	r.GET("/api/offers", approved(c.ListOffers))
	r.POST("/api/offers", approved(c.CreateOffer))
	r.GET("/api/offers/{id}", approved(c.GetOffer))
	r.PATCH("/api/offers/{id}", approved(c.UpdateOffer))
	r.DELETE("/api/offers/{id}", approved(c.DeleteOffer))

	r.GET("/api/services", approved(c.Services))
	r.GET("/api/brands/{service}", approved(c.Brands))
	r.GET("/api/products", approved(c.Products))
	r.GET("/api/products/{id}/attributes", approved(c.ProductAttributes))

	r.POST("/api/inventory/{offer}", approved(c.UploadInventoryItem))
	r.GET("/api/inventory/{offer}", approved(c.ListInventory))
	r.GET("/api/inventory/{offer}/{item}", approved(c.GetInventoryItem))
	r.DELETE("/api/inventory/{offer}/{item}", approved(c.DeleteInventoryItem))

	r.GET("/api/store", approved(c.Store))
	r.POST("/api/webhook-logs/search", approved(c.SearchWebhookLogs))
	r.GET("/api/webhook-logs", approved(c.ListWebhookLogs))
	r.GET("/api/stats", approved(c.Stats))

	return auth.Identify(r.Handler)
}
