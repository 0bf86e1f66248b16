package notify

import (
	"context"
	"errors"

	"fatfood/internal/domain/model"
	"fatfood/internal/usecase"

	"go.uber.org/zap"
)

var (
	_ usecase.Notifier = (*RedisNotifier)(nil)
	_ usecase.Notifier = (*AMQPNotifier)(nil)
	_ usecase.Notifier = (*Multi)(nil)
	_ usecase.Notifier = (*LogNotifier)(nil)
)

// 全部に送る。失敗はまとめて返す
type Multi struct {
	targets []usecase.Notifier
}

func NewMulti(targets ...usecase.Notifier) *Multi {
	return &Multi{targets: targets}
}

func (m *Multi) NotifyUser(ctx context.Context, userID int64, event string, payload interface{}) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.NotifyUser(ctx, userID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) NotifyRole(ctx context.Context, role model.Role, event string, payload interface{}) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.NotifyRole(ctx, role, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Redis/RabbitMQが無い環境用。ログに出すだけ
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyUser(_ context.Context, userID int64, event string, _ interface{}) error {
	n.log.Debug("notify user", zap.Int64("user_id", userID), zap.String("event", event))
	return nil
}

func (n *LogNotifier) NotifyRole(_ context.Context, role model.Role, event string, _ interface{}) error {
	n.log.Debug("notify role", zap.String("role", string(role)), zap.String("event", event))
	return nil
}
