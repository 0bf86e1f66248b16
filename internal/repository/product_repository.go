package repository

import (
	"context"
	"errors"

	"fatfood/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type ProductRepository interface {
	//販売中のものだけ返す（見つからないIDは結果に含まれない）
	FindActiveByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
}
