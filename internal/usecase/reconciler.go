package usecase

import (
	"context"
	"errors"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Applyが返す理由コード（Applied=false のとき）
const (
	ReasonOrderAlreadyPaid = "ORDER_ALREADY_PAID"
	ReasonOrderNotPayable  = "ORDER_NOT_PAYABLE"
	ReasonPaymentFailed    = "PAYMENT_ALREADY_FAILED"
)

// 検証済みコールバックから作る決済結果
type Outcome struct {
	Provider      model.PaymentProvider
	TxnRef        string
	Success       bool
	ClaimedAmount *decimal.Decimal // nilなら金額チェックしない
	FailureCode   string
	Meta          map[string]interface{}
}

type ReconcileResult struct {
	PaymentID     int64               `json:"payment_id"`
	OrderID       int64               `json:"order_id"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	OrderStatus   model.OrderStatus   `json:"order_status,omitempty"`
	Applied       bool                `json:"applied"`
	Duplicate     bool                `json:"duplicate"`
	OrderPaid     bool                `json:"order_paid"`
	Reason        string              `json:"reason,omitempty"`
}

// 重複通知はErrDuplicateEvent。呼び出し側では成功として扱う
func (r ReconcileResult) Err() error {
	if r.Duplicate {
		return ErrDuplicateEvent
	}
	return nil
}

// コミット後の副作用
type PaymentEffects interface {
	OnOrderPaid(ctx context.Context, order model.Order, payment model.Payment)
	OnPaymentRejected(ctx context.Context, payment model.Payment, reason string)
}

type Reconciler struct {
	tx      repo.TransactionManager
	effects PaymentEffects
	clock   Clock
	log     *zap.Logger
}

func NewReconciler(tx repo.TransactionManager, effects PaymentEffects, clock Clock, log *zap.Logger) *Reconciler {
	return &Reconciler{tx: tx, effects: effects, clock: clock, log: log}
}

// PaymentとOrderを1トランザクションで確定させる。
// 同じTxnRefで何度呼ばれても結果は1回分と同じ。
func (r *Reconciler) Apply(ctx context.Context, in Outcome) (ReconcileResult, error) {
	var (
		res      ReconcileResult
		paidOrd  model.Order
		payment  model.Payment
		rejected bool
	)

	now := r.clock.Now()
	log := r.log.With(zap.String("provider", string(in.Provider)), zap.String("txn_ref", in.TxnRef))

	err := r.tx.WithinTx(ctx, func(tr repo.TxRepos) error {
		p, err := tr.Payments().FindByTxnRefForUpdate(ctx, in.Provider, in.TxnRef)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("payment not found")
		}
		if err != nil {
			return dbError(err)
		}
		payment = p
		res = ReconcileResult{
			PaymentID:     p.ID,
			OrderID:       p.OrderID,
			PaymentStatus: p.Status,
		}

		//終端状態ならmetaの追記だけ
		if p.Status == model.PaymentStatusSuccess {
			res.Duplicate = true
			return tr.Payments().UpdateMeta(ctx, p.ID, model.MergeMeta(p.Meta, map[string]interface{}{
				"last_duplicate_at": now,
			}))
		}
		if p.Status == model.PaymentStatusFailed {
			if in.Success {
				res.Reason = ReasonPaymentFailed
			}
			return tr.Payments().UpdateMeta(ctx, p.ID, model.MergeMeta(p.Meta, map[string]interface{}{
				"late_callback": in.Meta,
				"late_success":  in.Success,
			}))
		}

		if in.ClaimedAmount != nil && !in.ClaimedAmount.Equal(p.Amount) {
			return amountMismatchError("amount mismatch").withMeta(map[string]interface{}{
				"expected": p.Amount.String(),
				"received": in.ClaimedAmount.String(),
			})
		}

		if !in.Success {
			code := in.FailureCode
			if code == "" {
				code = "PAYMENT_FAILED"
			}
			meta := model.MergeMeta(p.Meta, in.Meta)
			meta["reason"] = code
			meta["failed_at"] = now
			if err := tr.Payments().UpdateStatus(ctx, p.ID, model.PaymentStatusFailed, meta); err != nil {
				return dbError(err)
			}
			res.Applied = true
			res.PaymentStatus = model.PaymentStatusFailed
			payment.Status = model.PaymentStatusFailed
			rejected = true
			res.Reason = code
			return nil
		}

		o, err := tr.Orders().FindByIDForUpdate(ctx, p.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		res.OrderStatus = o.Status

		//兄弟の決済がすでに成功している（二重課金）
		other, err := tr.Payments().HasOtherSuccess(ctx, o.ID, p.ID)
		if err != nil {
			return dbError(err)
		}
		if other || !o.Status.AcceptsPayment() {
			res.Reason = ReasonOrderNotPayable
			if other {
				res.Reason = ReasonOrderAlreadyPaid
			}
			return tr.Payments().UpdateMeta(ctx, p.ID, model.MergeMeta(p.Meta, map[string]interface{}{
				"unapplied_success": in.Meta,
				"unapplied_reason":  res.Reason,
				"order_status":      string(o.Status),
				"needs_refund":      true,
			}))
		}

		meta := model.MergeMeta(p.Meta, in.Meta)
		meta["confirmed_at"] = now
		if err := tr.Payments().UpdateStatus(ctx, p.ID, model.PaymentStatusSuccess, meta); err != nil {
			return dbError(err)
		}
		if o.Status != model.OrderStatusPaid {
			if err := tr.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusPaid); err != nil {
				return dbError(err)
			}
		}

		o.Status = model.OrderStatusPaid
		paidOrd = o
		payment.Status = model.PaymentStatusSuccess
		res.Applied = true
		res.OrderPaid = true
		res.PaymentStatus = model.PaymentStatusSuccess
		res.OrderStatus = model.OrderStatusPaid
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); !ok {
			err = dbError(err)
		}
		log.Warn("reconcile failed", zap.Error(err))
		return ReconcileResult{}, err
	}

	switch {
	case res.OrderPaid:
		log.Info("payment confirmed", zap.Int64("order_id", res.OrderID))
		r.effects.OnOrderPaid(ctx, paidOrd, payment)
	case rejected:
		log.Info("payment failed", zap.String("reason", res.Reason))
		r.effects.OnPaymentRejected(ctx, payment, res.Reason)
	case res.Duplicate:
		log.Info("duplicate callback ignored")
	case res.Reason != "":
		log.Warn("success callback not applied", zap.String("reason", res.Reason))
	}
	return res, nil
}

// 検証に失敗したコールバックの記録。
// 行ロックの下で状態を見直し、initiated のときだけ failed にする。終端ならmetaの追記だけ
func (r *Reconciler) Reject(ctx context.Context, provider model.PaymentProvider, txnRef string, reason string, meta map[string]interface{}) (model.PaymentStatus, error) {
	var (
		payment  model.Payment
		rejected bool
	)

	now := r.clock.Now()
	log := r.log.With(zap.String("provider", string(provider)), zap.String("txn_ref", txnRef))

	err := r.tx.WithinTx(ctx, func(tr repo.TxRepos) error {
		p, err := tr.Payments().FindByTxnRefForUpdate(ctx, provider, txnRef)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("payment not found")
		}
		if err != nil {
			return dbError(err)
		}
		payment = p

		next := model.MergeMeta(p.Meta, meta)
		if p.Status.IsTerminal() {
			next["late_reason"] = reason
			next["late_rejected_at"] = now
			return tr.Payments().UpdateMeta(ctx, p.ID, next)
		}

		next["reason"] = reason
		next["failed_at"] = now
		if err := tr.Payments().UpdateStatus(ctx, p.ID, model.PaymentStatusFailed, next); err != nil {
			return dbError(err)
		}
		payment.Status = model.PaymentStatusFailed
		rejected = true
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); !ok {
			err = dbError(err)
		}
		log.Warn("reject failed", zap.Error(err))
		return "", err
	}

	if rejected {
		log.Info("payment rejected", zap.String("reason", reason))
		r.effects.OnPaymentRejected(ctx, payment, reason)
	}
	return payment.Status, nil
}
