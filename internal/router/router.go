// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/zmbpark/ticketing/internal/auth"
	"github.com/zmbpark/ticketing/internal/handler"
	"github.com/zmbpark/ticketing/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
// Currently only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the auth endpoints: register/login are open, /v1/me
// requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.Use(middleware.RequireRole(auth.RoleAdmin, auth.RoleMember))
	me.GET("/me", a.Me)
}

// RegisterPublic wires the unauthenticated catalog behind the response
// cache. cache may be a pass-through when Redis is unavailable.
func RegisterPublic(e *echo.Echo, p *handler.ProductHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/products", p.List, cache)
}

// RegisterOrders wires every order, line, status and payment endpoint.
// The webhook route stays outside the JWT group: the payment provider
// authenticates by payload signature, not by bearer token.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(auth.RoleAdmin, auth.RoleMember))

	g.POST("/orders", h.CreateOrder)
	g.GET("/orders", h.ListOrders, middleware.RequireRole(auth.RoleAdmin))
	g.GET("/orders/user/:user_id", h.ListUserOrders)
	g.GET("/orders/:id", h.GetOneOrder)

	g.POST("/orders/:id/lines", h.AddLine)
	g.PATCH("/orders/lines/:lineId", h.UpdateLineQuantity)
	g.DELETE("/orders/lines/:lineId", h.DeleteLine)

	g.PATCH("/orders/:id/status", h.UpdateStatus)
	g.POST("/orders/:id/checkout", h.CreateCheckout)

	e.POST("/v1/payments/ipn", h.HandleWebhook)
}
