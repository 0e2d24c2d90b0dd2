package app

import (
	"context"
	"io"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/model"
)

// RuntimeProvider resolves a provider id to a model runtime.
type RuntimeProvider interface {
	Runtime(provider string, override ai.KeyOverride) (ai.Runtime, error)
	Defaults() (provider, model string)
}

// Publisher enqueues a JSON job.
type Publisher interface {
	Publish(ctx context.Context, v any) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string, topicID *string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID string, topicID *string, messages []model.Message) error
	Invalidate(ctx context.Context, sessionID string, topicID *string) error
	IsDirty(ctx context.Context, sessionID string, topicID *string) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// ObjectStore is the subset of the S3 wrapper the services use.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}
