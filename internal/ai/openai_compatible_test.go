package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newCompatibleServer(t *testing.T, handler http.HandlerFunc) *OpenAICompatibleRuntime {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	rt, err := NewOpenAICompatibleRuntime(CompatibleOptions{
		Provider: "openai",
		BaseURL:  srv.URL + "/v1",
		APIKey:   "sk-test",
	})
	if err != nil {
		t.Fatalf("NewOpenAICompatibleRuntime() failed: %v", err)
	}
	return rt
}

func TestNewOpenAICompatibleRuntime_EmptyKey(t *testing.T) {
	_, err := NewOpenAICompatibleRuntime(CompatibleOptions{Provider: "deepseek"})
	var rtErr *AgentRuntimeError
	if !errors.As(err, &rtErr) || rtErr.Type != ErrorTypeInvalidProviderAPIKey {
		t.Fatalf("err = %v, want InvalidProviderAPIKey", err)
	}
	if rtErr.Provider != "deepseek" {
		t.Errorf("Provider = %s, want deepseek", rtErr.Provider)
	}
}

func TestOpenAICompatibleRuntime_Chat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	rt := newCompatibleServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	})

	temp := float32(0.5)
	res, err := rt.Chat(context.Background(), ChatPayload{
		Model:       "gpt-4o-mini",
		Messages:    []ChatMessage{{Role: "user", Content: "hi"}},
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	if res.Content != "hello" {
		t.Errorf("Content = %q, want hello", res.Content)
	}
	if res.Usage.TotalTokens != 4 {
		t.Errorf("TotalTokens = %d, want 4", res.Usage.TotalTokens)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.5 {
		t.Errorf("temperature = %v, want 0.5", gotBody["temperature"])
	}
}

func TestOpenAICompatibleRuntime_ChatStream(t *testing.T) {
	var gotBody map[string]any
	rt := newCompatibleServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[],\"usage\":{\"prompt_tokens\":7,\"completion_tokens\":2,\"total_tokens\":9}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var chunks []string
	res, err := rt.ChatStream(context.Background(), ChatPayload{
		Model:    "gpt-4o-mini",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream() failed: %v", err)
	}
	if strings.Join(chunks, "|") != "Hel|lo" {
		t.Errorf("chunks = %v", chunks)
	}
	if res.Content != "Hello" {
		t.Errorf("Content = %q, want Hello", res.Content)
	}
	if res.Usage.PromptTokens != 7 || res.Usage.CompletionTokens != 2 || res.Usage.TotalTokens != 9 {
		t.Errorf("Usage = %+v, want 7/2/9", res.Usage)
	}
	opts, _ := gotBody["stream_options"].(map[string]any)
	if opts["include_usage"] != true {
		t.Errorf("stream_options = %v, want include_usage", gotBody["stream_options"])
	}
}

func TestOpenAICompatibleRuntime_ZeroTemperatureIsSent(t *testing.T) {
	var gotBody map[string]any
	rt := newCompatibleServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	})

	zero := float32(0)
	if _, err := rt.Chat(context.Background(), ChatPayload{
		Model:       "gpt-4o-mini",
		Messages:    []ChatMessage{{Role: "user", Content: "hi"}},
		Temperature: &zero,
	}); err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	temp, ok := gotBody["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request: %v", gotBody)
	}
	if temp > 1e-6 {
		t.Errorf("temperature = %v, want ~0", temp)
	}
	if _, ok := gotBody["stream_options"]; ok {
		t.Error("non-streaming request must not set stream_options")
	}
}

func TestOpenAICompatibleRuntime_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   AgentRuntimeErrorType
	}{
		{"bad key", http.StatusUnauthorized, "invalid_api_key", ErrorTypeInvalidProviderAPIKey},
		{"quota", http.StatusTooManyRequests, "insufficient_quota", ErrorTypeInsufficientQuota},
		{"rate limit", http.StatusTooManyRequests, "rate_limit_exceeded", ErrorTypeQuotaLimitReached},
		{"context", http.StatusBadRequest, "context_length_exceeded", ErrorTypeExceededContextWindow},
		{"upstream", http.StatusBadGateway, "", ErrorTypeProviderBizError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newCompatibleServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprintf(w, `{"error":{"message":"boom","type":"x","code":%q}}`, tt.code)
			})
			_, err := rt.Chat(context.Background(), ChatPayload{Model: "m"})
			var rtErr *AgentRuntimeError
			if !errors.As(err, &rtErr) {
				t.Fatalf("err = %v, want *AgentRuntimeError", err)
			}
			if rtErr.Type != tt.want {
				t.Errorf("Type = %s, want %s", rtErr.Type, tt.want)
			}
			if rtErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", rtErr.Status, tt.status)
			}
		})
	}
}

func TestOpenAICompatibleRuntime_Embeddings(t *testing.T) {
	rt := newCompatibleServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],"model":"m"}`)
	})
	vecs, err := rt.Embeddings(context.Background(), EmbeddingsPayload{Model: "m", Input: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Embeddings() failed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vecs = %v, want ordered by index", vecs)
	}
}

func TestOpenAICompatibleRuntime_ModelsFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"text-embedding-3-small"},{"id":"gpt-4o"},{"id":"dall-e-3"},{"id":"gpt-4o-mini"}]}`)
	}))
	defer srv.Close()
	rt, err := NewOpenAICompatibleRuntime(CompatibleOptions{
		Provider: "openai", BaseURL: srv.URL, APIKey: "k", ModelFilter: openAIChatModel,
	})
	if err != nil {
		t.Fatal(err)
	}
	cards, err := rt.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() failed: %v", err)
	}
	if len(cards) != 2 || cards[0].ID != "gpt-4o" || cards[1].ID != "gpt-4o-mini" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestVendorPayloadHandlers(t *testing.T) {
	temp := float32(1.6)
	got := halveTemperature(ChatPayload{Temperature: &temp})
	if *got.Temperature != 0.8 {
		t.Errorf("halveTemperature = %v, want 0.8", *got.Temperature)
	}
	if *got.Temperature == temp {
		t.Error("halveTemperature mutated the caller's value")
	}

	high := float32(2)
	if clampQwenTemperature(ChatPayload{Temperature: &high}).Temperature != nil {
		t.Error("qwen temperature 2 should be dropped")
	}
	ok := float32(1.2)
	if p := clampQwenTemperature(ChatPayload{Temperature: &ok}); p.Temperature == nil || *p.Temperature != 1.2 {
		t.Error("qwen temperature 1.2 should be kept")
	}
}
