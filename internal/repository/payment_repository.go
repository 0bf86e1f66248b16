package repository

import (
	"context"
	"errors"

	"fatfood/internal/domain/model"

	"gorm.io/datatypes"
)

// initiated 以外の行を書き換えようとした
var ErrPaymentNotInitiated = errors.New("payment is not initiated")

// 決済台帳
type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (model.Payment, error)
	FindByTxnRef(ctx context.Context, provider model.PaymentProvider, txnRef string) (model.Payment, error)
	//行ロック付き
	FindByTxnRefForUpdate(ctx context.Context, provider model.PaymentProvider, txnRef string) (model.Payment, error)
	FindLatestByOrder(ctx context.Context, orderID int64, provider model.PaymentProvider) (model.Payment, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error)

	//同じ注文で、excludeID以外にsuccessの行があるか
	HasOtherSuccess(ctx context.Context, orderID int64, excludeID int64) (bool, error)

	//initiated の行だけ更新する。終端の行なら ErrPaymentNotInitiated
	UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus, meta datatypes.JSONMap) error
	UpdateMeta(ctx context.Context, paymentID int64, meta datatypes.JSONMap) error
}
