package usecase

import (
	"context"
	"strconv"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"go.uber.org/zap"
)

// 代引き。支払いは受け渡し時なので台帳はinitiatedのまま
type CODUsecase struct {
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	staff    StaffAssigner
	ids      IDGenerator
	log      *zap.Logger
}

func NewCODUsecase(orders repo.OrderRepository, payments repo.PaymentRepository, staff StaffAssigner, ids IDGenerator, log *zap.Logger) *CODUsecase {
	return &CODUsecase{
		orders:   orders,
		payments: payments,
		staff:    staff,
		ids:      ids,
		log:      log.With(zap.String("provider", string(model.PaymentProviderCOD))),
	}
}

type CODCreateOutput struct {
	PaymentID     int64               `json:"payment_id"`
	OrderID       int64               `json:"order_id"`
	TxnRef        string              `json:"txn_ref"`
	Amount        string              `json:"amount"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	OrderStatus   model.OrderStatus   `json:"order_status"`
	StaffAssigned bool                `json:"staff_assigned"`
}

func (u *CODUsecase) Create(ctx context.Context, actor Actor, orderID int64) (CODCreateOutput, error) {
	o, err := loadPayableOrder(ctx, u.orders, actor, orderID)
	if err != nil {
		return CODCreateOutput{}, err
	}

	txnRef := "COD-" + strconv.FormatInt(o.ID, 10) + "-" + u.ids.NewID()
	p, err := u.payments.Create(ctx, model.Payment{
		OrderID:  o.ID,
		Provider: model.PaymentProviderCOD,
		Amount:   o.TotalAmount,
		Currency: "VND",
		TxnRef:   txnRef,
		Status:   model.PaymentStatusInitiated,
		Meta:     model.MergeMeta(nil, map[string]interface{}{"method": "cash_on_delivery"}),
	})
	if err != nil {
		return CODCreateOutput{}, dbError(err)
	}

	assigned, err := u.staff.AssignOrderToOnDutyStaff(ctx, o)
	if err != nil {
		u.log.Warn("assign staff failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}

	return CODCreateOutput{
		PaymentID:     p.ID,
		OrderID:       o.ID,
		TxnRef:        txnRef,
		Amount:        o.TotalAmount.String(),
		PaymentStatus: p.Status,
		OrderStatus:   o.Status,
		StaffAssigned: assigned,
	}, nil
}
