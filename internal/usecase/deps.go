package usecase

import (
	"time"

	"fatfood/internal/domain/model"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 呼び出し元（JWTから取り出したもの）
type Actor struct {
	UserID int64
	Role   model.Role
}

// 本人の注文か、スタッフ/管理者なら触れる
func (a Actor) CanAccess(o model.Order) bool {
	if a.Role == model.RoleAdmin || a.Role == model.RoleStaff {
		return true
	}
	return a.UserID > 0 && o.UserID == a.UserID
}
