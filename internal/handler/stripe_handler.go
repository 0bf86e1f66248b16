package handler

import (
	"net/http"

	"fatfood/internal/usecase"
	"fatfood/internal/validator"

	"github.com/labstack/echo/v4"
)

type StripeHandler struct {
	uc *usecase.StripeUsecase
}

func NewStripeHandler(uc *usecase.StripeUsecase) *StripeHandler {
	return &StripeHandler{uc: uc}
}

func (h *StripeHandler) RegisterRoutes(public *echo.Group, authed *echo.Group) {
	authed.POST("/stripe/create-intent", h.createIntent)

	public.POST("/stripe/webhook", h.webhook)
}

func (h *StripeHandler) createIntent(c echo.Context) error {
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

	out, err := h.uc.CreateIntent(c.Request().Context(), actor, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 署名はJSONとして解釈する前の生bodyで検証する
func (h *StripeHandler) webhook(c echo.Context) error {
	body, err := readRawBody(c)
	if err != nil {
		return badBody(c)
	}
	out, err := h.uc.HandleWebhook(c.Request().Context(), body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
