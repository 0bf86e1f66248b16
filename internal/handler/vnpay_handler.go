package handler

import (
	"net/http"

	"fatfood/internal/usecase"
	"fatfood/internal/validator"

	"github.com/labstack/echo/v4"
)

type VNPayHandler struct {
	uc *usecase.VNPayUsecase
}

func NewVNPayHandler(uc *usecase.VNPayUsecase) *VNPayHandler {
	return &VNPayHandler{uc: uc}
}

// publicはVNPAYから呼ばれる、authedは顧客/管理者
func (h *VNPayHandler) RegisterRoutes(public *echo.Group, authed *echo.Group) {
	authed.POST("/vnpay/create", h.create)
	authed.GET("/vnpay/redirect", h.redirect)
	authed.GET("/vnpay/status", h.status)

	public.GET("/vnpay/return", h.handleReturn)
	public.GET("/vnpay/ipn", h.ipn)
}

func (h *VNPayHandler) create(c echo.Context) error {
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

	out, err := h.uc.CreatePaymentURL(c.Request().Context(), actor, usecase.VNPayCreateInput{
		OrderID:  req.OrderID,
		BankCode: req.BankCode,
		Locale:   req.Locale,
		ClientIP: c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ?order_id=&bank_code=&locale= で支払いページへ302
func (h *VNPayHandler) redirect(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req PaymentCreateRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
	}
	if err := validator.ValidatePaymentCreate(req.OrderID, req.BankCode, req.Locale); err != nil {
		return invalidInput(c, err)
	}

	out, err := h.uc.CreatePaymentURL(c.Request().Context(), actor, usecase.VNPayCreateInput{
		OrderID:  req.OrderID,
		BankCode: req.BankCode,
		Locale:   req.Locale,
		ClientIP: c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Redirect(http.StatusFound, out.PayURL)
}

func (h *VNPayHandler) status(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	txnRef := c.QueryParam("txn_ref")
	if err := validator.ValidateReference(txnRef); err != nil {
		return invalidInput(c, err)
	}
	out, err := h.uc.Status(c.Request().Context(), actor, txnRef)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *VNPayHandler) handleReturn(c echo.Context) error {
	out, err := h.uc.HandleReturn(c.Request().Context(), queryMap(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// VNPAYには常に200で {RspCode, Message} を返す
func (h *VNPayHandler) ipn(c echo.Context) error {
	return c.JSON(http.StatusOK, h.uc.HandleIPN(c.Request().Context(), queryMap(c)))
}
