package notify

import (
	"context"
	"fmt"
	"time"

	"fatfood/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// *redis.Client が満たす
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// realtimeゲートウェイが購読しているチャンネルへPUBLISHする
type RedisNotifier struct {
	client redisPublisher
	now    func() time.Time
}

func NewRedisNotifier(client redisPublisher) *RedisNotifier {
	return &RedisNotifier{client: client, now: time.Now}
}

// 起動時に疎通確認まで行う
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (n *RedisNotifier) NotifyUser(ctx context.Context, userID int64, event string, payload interface{}) error {
	return n.publish(ctx, userTarget(userID), event, payload)
}

func (n *RedisNotifier) NotifyRole(ctx context.Context, role model.Role, event string, payload interface{}) error {
	return n.publish(ctx, roleTarget(role), event, payload)
}

func (n *RedisNotifier) publish(ctx context.Context, channel, event string, payload interface{}) error {
	body, err := encode(channel, event, payload, n.now())
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}
