package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fatfood/internal/domain/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

const OrdersExchange = "orders_topic"

// *amqp.Channel が満たす
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// 注文イベントをtopic exchangeへ流す（ルーティングキー user.{id} / role.{role}）
type AMQPNotifier struct {
	ch   amqpPublisher
	conn *amqp.Connection
	now  func() time.Time
}

func NewAMQPNotifier(ch amqpPublisher) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, now: time.Now}
}

// 接続してexchangeを宣言する
func DialAMQP(url string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(OrdersExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	n := NewAMQPNotifier(ch)
	n.conn = conn
	return n, nil
}

func (n *AMQPNotifier) Close() error {
	if n.conn != nil && !n.conn.IsClosed() {
		return n.conn.Close()
	}
	return nil
}

func (n *AMQPNotifier) NotifyUser(ctx context.Context, userID int64, event string, payload interface{}) error {
	return n.publish(ctx, "user."+strconv.FormatInt(userID, 10), userTarget(userID), event, payload)
}

func (n *AMQPNotifier) NotifyRole(ctx context.Context, role model.Role, event string, payload interface{}) error {
	return n.publish(ctx, "role."+string(role), roleTarget(role), event, payload)
}

func (n *AMQPNotifier) publish(ctx context.Context, key, target, event string, payload interface{}) error {
	body, err := encode(target, event, payload, n.now())
	if err != nil {
		return err
	}
	return n.ch.PublishWithContext(ctx, OrdersExchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event,
		Timestamp:    n.now(),
		Body:         body,
	})
}
