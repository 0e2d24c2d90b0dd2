package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Bounds(t *testing.T) {
	if got := Backoff(time.Second, time.Minute, 0); got != 0 {
		t.Errorf("Backoff(attempt 0) = %v, want 0", got)
	}
	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 4; attempt++ {
		expected := base << uint(attempt-1)
		got := Backoff(base, time.Minute, attempt)
		if got < expected*3/4 || got > expected*5/4 {
			t.Errorf("attempt %d: Backoff = %v, want within 25%% of %v", attempt, got, expected)
		}
	}
	if got := Backoff(time.Second, 2*time.Second, 20); got > 2500*time.Millisecond {
		t.Errorf("Backoff capped = %v, want <= 2.5s", got)
	}
}

func TestBackoff_LargeBaseDoesNotOverflow(t *testing.T) {
	tests := []struct {
		base, max time.Duration
		attempt   int
	}{
		{time.Minute, 5 * time.Minute, 30},
		{time.Minute, 5 * time.Minute, 1000},
		{time.Hour, 0, 64},
	}
	for _, tt := range tests {
		got := Backoff(tt.base, tt.max, tt.attempt)
		if got <= 0 {
			t.Errorf("Backoff(%v, %v, %d) = %v, want > 0", tt.base, tt.max, tt.attempt, got)
		}
		if tt.max > 0 && (got < tt.max*3/4 || got > tt.max*5/4) {
			t.Errorf("Backoff(%v, %v, %d) = %v, want within 25%% of %v", tt.base, tt.max, tt.attempt, got, tt.max)
		}
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryOptions{MaxRetries: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return NewRuntimeError(ErrorTypeInvalidProviderAPIKey, "openai", 401, nil)
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d, err = %v; want 1 call and an error", calls, err)
	}
}

func TestRetry_RetriesTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryOptions{MaxRetries: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return NewRuntimeError(ErrorTypeProviderBizError, "openai", 503, errors.New("unavailable"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryOptions{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return NewRuntimeError(ErrorTypeQuotaLimitReached, "openai", 429, nil)
	})
	if err == nil || calls != 3 {
		t.Errorf("calls = %d, err = %v; want 3 calls and an error", calls, err)
	}
}

type flakyStream struct {
	calls     int
	failAfter bool
}

func (f *flakyStream) Chat(context.Context, ChatPayload) (*ChatResult, error) { return nil, nil }
func (f *flakyStream) Embeddings(context.Context, EmbeddingsPayload) ([][]float32, error) {
	return nil, nil
}
func (f *flakyStream) Models(context.Context) ([]ModelCard, error) { return nil, nil }
func (f *flakyStream) ChatStream(_ context.Context, _ ChatPayload, onChunk func(string) error) (*ChatResult, error) {
	f.calls++
	if f.failAfter {
		_ = onChunk("partial")
	}
	if f.calls == 1 {
		return nil, NewRuntimeError(ErrorTypeProviderBizError, "openai", 500, nil)
	}
	return &ChatResult{Content: "ok"}, nil
}

func TestWithRetry_StreamRetriesBeforeFirstChunk(t *testing.T) {
	inner := &flakyStream{}
	rt := WithRetry(inner, RetryOptions{MaxRetries: 2, BaseDelay: time.Millisecond})
	res, err := rt.ChatStream(context.Background(), ChatPayload{}, func(string) error { return nil })
	if err != nil || res.Content != "ok" {
		t.Fatalf("ChatStream() = %+v, %v", res, err)
	}
	if inner.calls != 2 {
		t.Errorf("calls = %d, want 2", inner.calls)
	}
}

func TestWithRetry_StreamNoRetryAfterChunk(t *testing.T) {
	inner := &flakyStream{failAfter: true}
	rt := WithRetry(inner, RetryOptions{MaxRetries: 2, BaseDelay: time.Millisecond})
	_, err := rt.ChatStream(context.Background(), ChatPayload{}, func(string) error { return nil })
	if err == nil {
		t.Fatal("ChatStream() succeeded, want error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}
