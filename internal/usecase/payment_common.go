package usecase

import (
	"context"
	"errors"
	"net/http"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"
)

// 決済リクエストを作ってよい注文か
func loadPayableOrder(ctx context.Context, orders repo.OrderRepository, actor Actor, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, validationError("invalid order_id")
	}
	o, err := orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, notFoundError("order not found")
	}
	if err != nil {
		return model.Order{}, dbError(err)
	}
	if !actor.CanAccess(o) {
		return model.Order{}, forbiddenError("forbidden")
	}
	if !o.Status.IsPayable() {
		return model.Order{}, invalidStateError(http.StatusBadRequest, "order is not payable").withMeta(map[string]interface{}{
			"status": string(o.Status),
		})
	}
	return o, nil
}

type PaymentStatusOutput struct {
	PaymentID     int64               `json:"payment_id"`
	OrderID       int64               `json:"order_id"`
	Provider      string              `json:"provider"`
	TxnRef        string              `json:"txn_ref"`
	Amount        string              `json:"amount"`
	Currency      string              `json:"currency"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	OrderStatus   model.OrderStatus   `json:"order_status"`
}

// txn_refで決済の状態を引く（本人の注文のみ）
func lookupPaymentStatus(ctx context.Context, orders repo.OrderRepository, payments repo.PaymentRepository, actor Actor, provider model.PaymentProvider, txnRef string) (PaymentStatusOutput, error) {
	if txnRef == "" {
		return PaymentStatusOutput{}, validationError("txn_ref required")
	}
	p, err := payments.FindByTxnRef(ctx, provider, txnRef)
	if errors.Is(err, repo.ErrNotFound) {
		return PaymentStatusOutput{}, notFoundError("payment not found")
	}
	if err != nil {
		return PaymentStatusOutput{}, dbError(err)
	}
	o, err := orders.FindByID(ctx, p.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return PaymentStatusOutput{}, notFoundError("order not found")
	}
	if err != nil {
		return PaymentStatusOutput{}, dbError(err)
	}
	if !actor.CanAccess(o) {
		return PaymentStatusOutput{}, notFoundError("payment not found")
	}
	return PaymentStatusOutput{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		Provider:      string(p.Provider),
		TxnRef:        p.TxnRef,
		Amount:        p.Amount.String(),
		Currency:      p.Currency,
		PaymentStatus: p.Status,
		OrderStatus:   o.Status,
	}, nil
}
