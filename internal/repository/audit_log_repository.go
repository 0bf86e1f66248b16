package repository

import (
	"context"

	"fatfood/internal/domain/model"
)

// 監査ログは追記のみ
type AuditLogRepository interface {
	Create(ctx context.Context, entry model.AuditLog) error
}
