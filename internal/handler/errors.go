package handler

import (
	"net/http"

	"fatfood/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error    string                 `json:"error"`
	Code     string                 `json:"code,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Detail   string                 `json:"detail,omitempty"`
}

// echoのDebug（GO_ENV=dev）のときだけ原因を返す
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		res := ErrorResponse{Error: he.Message, Code: he.Code, Metadata: he.Metadata}
		if c.Echo().Debug && he.Cause() != nil {
			res.Detail = he.Cause().Error()
		}
		return c.JSON(he.Status, res)
	}

	//500
	res := ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR"}
	if c.Echo().Debug {
		res.Detail = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, res)
}
