package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"lobechat-go/internal/logger"
	"lobechat-go/internal/model"
)

type MessageStore interface {
	Create(message *model.Message) error
}

// MessagePersistWorker writes chat messages published by the chat service.
type MessagePersistWorker struct {
	queueWorker
	repo MessageStore
}

func NewMessagePersistWorker(conn *amqp.Connection, repo MessageStore, queueName string) *MessagePersistWorker {
	w := &MessagePersistWorker{repo: repo}
	w.queueWorker = queueWorker{
		conn:      conn,
		queueName: queueName,
		prefetch:  32,
		handle:    w.Handle,
		log:       logger.WithComponent("message-persist-worker"),
	}
	return w
}

func (w *MessagePersistWorker) Handle(_ context.Context, body []byte) error {
	var msg model.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode message failed: %w", err)
	}
	if msg.ID == "" || msg.SessionID == "" {
		return fmt.Errorf("message is missing id or session id")
	}
	return w.repo.Create(&msg)
}
