package usecase

import (
	"context"
	"errors"

	repo "fatfood/internal/repository"
)

type CartUsecase struct {
	cartRepo repo.CartRepository
}

func NewCartUsecase(cartRepo repo.CartRepository) *CartUsecase {
	return &CartUsecase{cartRepo: cartRepo}
}

// ACTIVEカートの明細を空にする。カートが無ければ何もしない
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) error {
	cart, err := u.cartRepo.FindActiveByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	items, err := u.cartRepo.ListItems(ctx, cart.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return u.cartRepo.Clear(ctx, cart.ID)
}
