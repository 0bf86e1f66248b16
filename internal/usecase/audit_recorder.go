package usecase

import (
	"context"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"go.uber.org/zap"
)

// audit_logsへの書き込み。失敗してもエラーは返さない
type AuditRecorder struct {
	auditRepo repo.AuditLogRepository
	clock     Clock
	log       *zap.Logger
}

func NewAuditRecorder(auditRepo repo.AuditLogRepository, clock Clock, log *zap.Logger) *AuditRecorder {
	return &AuditRecorder{auditRepo: auditRepo, clock: clock, log: log}
}

func (a *AuditRecorder) LogAction(ctx context.Context, actorUserID *int64, action model.AuditAction, resource model.AuditResourceType, resourceID int64, metadata map[string]interface{}) {
	err := a.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		Metadata:     model.MergeMeta(nil, metadata),
		CreatedAt:    a.clock.Now(),
	})
	if err != nil {
		a.log.Warn("audit log write failed",
			zap.String("action", string(action)),
			zap.Int64("resource_id", resourceID),
			zap.Error(err),
		)
	}
}
