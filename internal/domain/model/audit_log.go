package model

import (
	"time"

	"gorm.io/datatypes"
)

// 何をしたか
type AuditAction string

const (
	//決済確定
	AuditActionPaymentConfirmed AuditAction = "PAYMENT_CONFIRMED"
	//決済失敗（署名不正・金額不一致を含む）
	AuditActionPaymentRejected AuditAction = "PAYMENT_REJECTED"
	//注文キャンセル
	AuditActionCancelOrder AuditAction = "CANCEL_ORDER"
	//注文作成
	AuditActionCreateOrder AuditAction = "CREATE_ORDER"
	//スタッフ自動割り当て
	AuditActionAssignStaff AuditAction = "ASSIGN_STAFF"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder   AuditResourceType = "orders"
	AuditResourcePayment AuditResourceType = "payments"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」を残す。決済コールバックなど行為者がいない場合はActorUserIDがnil。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ActorUserID *int64 `gorm:"index" json:"actor_user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
