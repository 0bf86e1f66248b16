package server

import (
	"net/http"

	"fatfood/internal/config"
	"fatfood/internal/domain/model"
	"fatfood/internal/handler"
	"fatfood/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Orders  *handler.OrderHandler
	VNPay   *handler.VNPayHandler
	Paypal  *handler.PaypalHandler
	Stripe  *handler.StripeHandler
	Offline *handler.OfflinePaymentHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	auth := middleware.AuthJWT(cfg)

	orders := e.Group("/orders", auth, middleware.RequireRoles(model.RoleCustomer))
	h.Orders.RegisterRoutes(orders)

	//プロバイダからのコールバックは認証なし（署名で検証する）
	public := e.Group("/payments")
	authed := e.Group("/payments", auth, middleware.RequireRoles(model.RoleCustomer, model.RoleAdmin))

	h.VNPay.RegisterRoutes(public, authed)
	h.Paypal.RegisterRoutes(public, authed)
	h.Stripe.RegisterRoutes(public, authed)
	h.Offline.RegisterRoutes(authed)
}
