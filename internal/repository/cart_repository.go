package repository

import (
	"context"

	"fatfood/internal/domain/model"
)

type CartRepository interface {
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error)
	Clear(ctx context.Context, cartID int64) error
}
