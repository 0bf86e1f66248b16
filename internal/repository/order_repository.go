package repository

import (
	"context"

	"fatfood/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	//行ロック付き（トランザクション内で使う）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, status string, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	//未割り当ての場合だけスタッフを入れる（入れたらtrue）
	AssignStaffIfEmpty(ctx context.Context, orderID int64, staffID int64) (bool, error)
}
