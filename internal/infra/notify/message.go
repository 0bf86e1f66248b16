package notify

import (
	"encoding/json"
	"strconv"
	"time"

	"fatfood/internal/domain/model"
)

// 送る中身（Redis / RabbitMQ 共通）
type Message struct {
	Event   string      `json:"event"`
	Target  string      `json:"target"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

func userTarget(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

func roleTarget(role model.Role) string {
	return "role:" + string(role)
}

func encode(target, event string, payload interface{}, now time.Time) ([]byte, error) {
	return json.Marshal(Message{
		Event:   event,
		Target:  target,
		Payload: payload,
		SentAt:  now.UTC(),
	})
}
