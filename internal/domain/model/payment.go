package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentProvider string

const (
	PaymentProviderVNPay  PaymentProvider = "vnpay"
	PaymentProviderPayPal PaymentProvider = "paypal"
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderVietQR PaymentProvider = "vietqr"
	PaymentProviderCOD    PaymentProvider = "cod"
)

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// 決済試行1回につき1行。(provider, txn_ref) はユニーク。
// 終端状態になった後はmetaの追記だけ許可する。
type Payment struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"payment_id"`
	OrderID   int64             `gorm:"not null;index" json:"order_id"`
	Provider  PaymentProvider   `gorm:"type:varchar(20);not null;uniqueIndex:idx_payments_provider_txn_ref,priority:1" json:"provider"`
	Amount    decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency  string            `gorm:"type:varchar(10);not null" json:"currency"`
	TxnRef    string            `gorm:"type:varchar(100);not null;uniqueIndex:idx_payments_provider_txn_ref,priority:2" json:"txn_ref"`
	Status    PaymentStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb" json:"meta"`
	CreatedAt time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 既存metaにキーを上書きマージした新しいmapを返す
func MergeMeta(base datatypes.JSONMap, extra map[string]interface{}) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
