package handler

import (
	"net/http"

	"fatfood/internal/domain/model"
	"fatfood/internal/middleware"
	"fatfood/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 呼び出し元はAuthJWTがcontextに入れたclaimsだけで決める。
// bodyやqueryのuser_idは見ない。
func actorFromContext(c echo.Context) (usecase.Actor, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return usecase.Actor{}, false
	}
	role, ok := c.Get(middleware.CtxUserRoleKey).(model.Role)
	if !ok || role == "" {
		return usecase.Actor{}, false
	}
	return usecase.Actor{UserID: id, Role: role}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "UNAUTHORIZED"})
}
