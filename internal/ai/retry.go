package ai

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// ShouldRetry defaults to IsRetryable.
	ShouldRetry func(error) bool
}

// IsRetryable reports whether err is a transient runtime failure.
func IsRetryable(err error) bool {
	var rtErr *AgentRuntimeError
	if errors.As(err, &rtErr) {
		return rtErr.Retryable()
	}
	return false
}

// Backoff returns base*2^(attempt-1) capped at max, with up to 25% jitter
// either way. attempt starts at 1.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	// The ceiling leaves room for the jitter below without overflowing.
	ceiling := time.Duration(math.MaxInt64 / 2)
	if max > 0 && max < ceiling {
		ceiling = max
	}
	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		if d > ceiling/2 {
			d = ceiling
			break
		}
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half)) - d/4
	}
	return d
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. The last error is returned.
func Retry(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) error) error {
	shouldRetry := opts.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= opts.MaxRetries || !shouldRetry(err) {
			return err
		}
		timer := time.NewTimer(Backoff(opts.BaseDelay, opts.MaxDelay, attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// retryingRuntime wraps a Runtime with Retry. Streams are retried only until
// the first chunk reaches the caller.
type retryingRuntime struct {
	next Runtime
	opts RetryOptions
}

func WithRetry(next Runtime, opts RetryOptions) Runtime {
	if opts.MaxRetries <= 0 {
		return next
	}
	return &retryingRuntime{next: next, opts: opts}
}

func (r *retryingRuntime) Chat(ctx context.Context, payload ChatPayload) (*ChatResult, error) {
	var out *ChatResult
	err := Retry(ctx, r.opts, func(ctx context.Context) error {
		res, err := r.next.Chat(ctx, payload)
		out = res
		return err
	})
	return out, err
}

func (r *retryingRuntime) ChatStream(ctx context.Context, payload ChatPayload, onChunk func(chunk string) error) (*ChatResult, error) {
	var out *ChatResult
	started := false
	opts := r.opts
	shouldRetry := opts.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}
	opts.ShouldRetry = func(err error) bool { return !started && shouldRetry(err) }

	err := Retry(ctx, opts, func(ctx context.Context) error {
		res, err := r.next.ChatStream(ctx, payload, func(chunk string) error {
			started = true
			return onChunk(chunk)
		})
		out = res
		return err
	})
	return out, err
}

func (r *retryingRuntime) Embeddings(ctx context.Context, payload EmbeddingsPayload) ([][]float32, error) {
	var out [][]float32
	err := Retry(ctx, r.opts, func(ctx context.Context) error {
		res, err := r.next.Embeddings(ctx, payload)
		out = res
		return err
	})
	return out, err
}

func (r *retryingRuntime) Models(ctx context.Context) ([]ModelCard, error) {
	var out []ModelCard
	err := Retry(ctx, r.opts, func(ctx context.Context) error {
		res, err := r.next.Models(ctx)
		out = res
		return err
	})
	return out, err
}
