package handler

import (
	"bytes"
	"io"
	"net/http"

	"fatfood/internal/payment/vnpay"

	"github.com/labstack/echo/v4"
)

// webhookの本文は最大64KB
const maxWebhookBody = 64 << 10

type PaymentCreateRequest struct {
	OrderID  int64  `json:"order_id" query:"order_id"`
	BankCode string `json:"bank_code" query:"bank_code"`
	Locale   string `json:"locale" query:"locale"`
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
}

func invalidInput(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"})
}

// 署名検証のため生のbodyを読み、後続のためにBodyを戻す
func readRawBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func queryMap(c echo.Context) map[string]string {
	return vnpay.FromValues(c.QueryParams())
}
