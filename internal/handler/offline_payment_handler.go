package handler

import (
	"net/http"

	"fatfood/internal/usecase"
	"fatfood/internal/validator"

	"github.com/labstack/echo/v4"
)

// 代引きとVietQR（どちらもプロバイダからのコールバックが無い）
type OfflinePaymentHandler struct {
	cod    *usecase.CODUsecase
	vietqr *usecase.VietQRUsecase
}

func NewOfflinePaymentHandler(cod *usecase.CODUsecase, vietqr *usecase.VietQRUsecase) *OfflinePaymentHandler {
	return &OfflinePaymentHandler{cod: cod, vietqr: vietqr}
}

func (h *OfflinePaymentHandler) RegisterRoutes(authed *echo.Group) {
	authed.POST("/cod/create", h.createCOD)
	authed.POST("/vietqr/create", h.createVietQR)
	authed.POST("/vietqr/confirm", h.confirmVietQR)
}

func (h *OfflinePaymentHandler) createCOD(c echo.Context) error {
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

	out, err := h.cod.Create(c.Request().Context(), actor, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OfflinePaymentHandler) createVietQR(c echo.Context) error {
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

	out, err := h.vietqr.Create(c.Request().Context(), actor, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OfflinePaymentHandler) confirmVietQR(c echo.Context) error {
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

	out, err := h.vietqr.Confirm(c.Request().Context(), actor, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
