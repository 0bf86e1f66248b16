package handler

import (
	"net/http"

	"fatfood/internal/usecase"
	"fatfood/internal/validator"

	"github.com/labstack/echo/v4"
)

type PaypalHandler struct {
	uc *usecase.PaypalUsecase
}

func NewPaypalHandler(uc *usecase.PaypalUsecase) *PaypalHandler {
	return &PaypalHandler{uc: uc}
}

func (h *PaypalHandler) RegisterRoutes(public *echo.Group, authed *echo.Group) {
	authed.POST("/paypal/create", h.create)

	public.GET("/paypal/return", h.handleReturn)
	public.GET("/paypal/cancel", h.cancel)
	public.POST("/paypal/webhook", h.webhook)
}

func (h *PaypalHandler) create(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req PaymentCreateRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := validator.ValidatePaymentCreate(req.OrderID, req.BankCode, req.Locale); err != nil {
		return invalidInput(c, err)
	}

	out, err := h.uc.CreateOrder(c.Request().Context(), actor, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ?token= がPayPalの注文ID
func (h *PaypalHandler) handleReturn(c echo.Context) error {
	token := c.QueryParam("token")
	if err := validator.ValidateReference(token); err != nil {
		return invalidInput(c, err)
	}
	out, err := h.uc.CaptureReturn(c.Request().Context(), token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaypalHandler) cancel(c echo.Context) error {
	token := c.QueryParam("token")
	if err := validator.ValidateReference(token); err != nil {
		return invalidInput(c, err)
	}
	out, err := h.uc.Cancel(c.Request().Context(), token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaypalHandler) webhook(c echo.Context) error {
	body, err := readRawBody(c)
	if err != nil {
		return badBody(c)
	}
	out, err := h.uc.HandleWebhook(c.Request().Context(), c.Request(), body)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
