package usecase

import (
	"context"

	"fatfood/internal/domain/model"

	"go.uber.org/zap"
)

// 通知イベント名
const (
	EventOrderPaid     = "order:paid"
	EventOrderCanceled = "order:canceled"
	EventOrderCreated  = "order:created"
)

type CartClearer interface {
	ClearCart(ctx context.Context, userID int64) error
}

type StaffAssigner interface {
	// 割り当てたらtrue。勤務中スタッフがいなければfalse, nil
	AssignOrderToOnDutyStaff(ctx context.Context, order model.Order) (bool, error)
}

type AuditLogger interface {
	LogAction(ctx context.Context, actorUserID *int64, action model.AuditAction, resource model.AuditResourceType, resourceID int64, metadata map[string]interface{})
}

// リアルタイム通知。届かなくても業務は止めない
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, event string, payload interface{}) error
	NotifyRole(ctx context.Context, role model.Role, event string, payload interface{}) error
}

// 決済確定後の後処理。どれが失敗してもログだけ残して続ける
type Fulfillment struct {
	carts    CartClearer
	staff    StaffAssigner
	audit    AuditLogger
	notifier Notifier
	log      *zap.Logger
}

func NewFulfillment(carts CartClearer, staff StaffAssigner, audit AuditLogger, notifier Notifier, log *zap.Logger) *Fulfillment {
	return &Fulfillment{
		carts:    carts,
		staff:    staff,
		audit:    audit,
		notifier: notifier,
		log:      log,
	}
}

type orderPaidPayload struct {
	OrderID   int64                 `json:"order_id"`
	PaymentID int64                 `json:"payment_id"`
	Provider  model.PaymentProvider `json:"provider"`
	Amount    string                `json:"amount"`
	Currency  string                `json:"currency"`
	Status    model.OrderStatus     `json:"status"`
}

func (f *Fulfillment) OnOrderPaid(ctx context.Context, order model.Order, payment model.Payment) {
	log := f.log.With(
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("provider", string(payment.Provider)),
	)

	if err := f.carts.ClearCart(ctx, order.UserID); err != nil {
		log.Warn("clear cart failed", zap.Error(err))
	}

	assigned, err := f.staff.AssignOrderToOnDutyStaff(ctx, order)
	if err != nil {
		log.Warn("assign staff failed", zap.Error(err))
	} else if !assigned {
		log.Info("no on-duty staff to assign")
	}

	f.audit.LogAction(ctx, nil, model.AuditActionPaymentConfirmed, model.AuditResourcePayment, payment.ID, map[string]interface{}{
		"order_id": order.ID,
		"provider": string(payment.Provider),
		"txn_ref":  payment.TxnRef,
		"amount":   payment.Amount.String(),
		"currency": payment.Currency,
	})

	payload := orderPaidPayload{
		OrderID:   order.ID,
		PaymentID: payment.ID,
		Provider:  payment.Provider,
		Amount:    payment.Amount.String(),
		Currency:  payment.Currency,
		Status:    model.OrderStatusPaid,
	}
	if err := f.notifier.NotifyUser(ctx, order.UserID, EventOrderPaid, payload); err != nil {
		log.Warn("notify user failed", zap.Error(err))
	}
	if err := f.notifier.NotifyRole(ctx, model.RoleStaff, EventOrderPaid, payload); err != nil {
		log.Warn("notify staff failed", zap.Error(err))
	}
}

// 決済失敗（署名不正・金額不一致・ユーザーキャンセル等）の監査
func (f *Fulfillment) OnPaymentRejected(ctx context.Context, payment model.Payment, reason string) {
	f.audit.LogAction(ctx, nil, model.AuditActionPaymentRejected, model.AuditResourcePayment, payment.ID, map[string]interface{}{
		"order_id": payment.OrderID,
		"provider": string(payment.Provider),
		"txn_ref":  payment.TxnRef,
		"reason":   reason,
	})
}
