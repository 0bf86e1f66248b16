package repository

import (
	"context"

	repo "fatfood/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders      repo.OrderRepository
	orderItems  repo.OrderItemRepository
	payments    repo.PaymentRepository
	products    repo.ProductRepository
	carts       repo.CartRepository
	staffShifts repo.StaffShiftRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository           { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository   { return r.orderItems }
func (r *txReposGorm) Payments() repo.PaymentRepository       { return r.payments }
func (r *txReposGorm) Products() repo.ProductRepository       { return r.products }
func (r *txReposGorm) Carts() repo.CartRepository             { return r.carts }
func (r *txReposGorm) StaffShifts() repo.StaffShiftRepository { return r.staffShifts }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:      NewOrderGormRepository(tx),
			orderItems:  NewOrderItemGormRepository(tx),
			payments:    NewPaymentGormRepository(tx),
			products:    NewProductGormRepository(tx),
			carts:       NewCartGormRepository(tx),
			staffShifts: NewStaffShiftGormRepository(tx),
		}
		return fn(r)
	})
}
