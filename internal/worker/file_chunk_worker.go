package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"lobechat-go/internal/logger"
)

// FileChunkJob asks the worker to parse, chunk and embed one file.
type FileChunkJob struct {
	FileID string `json:"file_id"`
	UserID string `json:"user_id"`
}

type FileProcessor interface {
	ProcessFile(ctx context.Context, userID, fileID string) error
}

type FileChunkWorker struct {
	queueWorker
	processor FileProcessor
}

func NewFileChunkWorker(conn *amqp.Connection, processor FileProcessor, queueName string) *FileChunkWorker {
	w := &FileChunkWorker{processor: processor}
	w.queueWorker = queueWorker{
		conn:      conn,
		queueName: queueName,
		prefetch:  1,
		handle:    w.Handle,
		log:       logger.WithComponent("file-chunk-worker"),
	}
	return w
}

func (w *FileChunkWorker) Handle(ctx context.Context, body []byte) error {
	var job FileChunkJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode chunk job failed: %w", err)
	}
	if job.FileID == "" || job.UserID == "" {
		return fmt.Errorf("chunk job is missing file id or user id")
	}
	return w.processor.ProcessFile(ctx, job.UserID, job.FileID)
}
