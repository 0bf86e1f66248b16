package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusShipping   OrderStatus = "shipping"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCanceled   OrderStatus = "canceled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// キャンセル可能か（completed / canceled / refunded 以外）
func (s OrderStatus) CanCancel() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCanceled, OrderStatusRefunded:
		return false
	}
	return true
}

// 支払いリクエストを作れるか
func (s OrderStatus) IsPayable() bool {
	return s != OrderStatusCanceled && s != OrderStatusRefunded
}

// 決済成功でpaidへ進めてよいか
func (s OrderStatus) AcceptsPayment() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPaid:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPaid, OrderStatusPreparing,
		OrderStatusDelivering, OrderStatusShipping, OrderStatusCompleted,
		OrderStatusCanceled, OrderStatusRefunded:
		return true
	}
	return false
}

// 注文は論理削除のみ（会計履歴を残す）
type Order struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               int64           `gorm:"not null;index" json:"user_id"`
	Status               OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	AssignedStaffID      *int64          `gorm:"index" json:"assigned_staff_id,omitempty"`
	AssignedShipperID    *int64          `gorm:"index" json:"assigned_shipper_id,omitempty"`
	ExpectedDeliveryTime *time.Time      `json:"expected_delivery_time,omitempty"`
	Note                 string          `gorm:"type:text" json:"note"`
	CreatedAt            time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt  `gorm:"index" json:"-"`
}
