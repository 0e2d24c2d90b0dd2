package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaRuntime_ChatStream(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"Hi"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":" there"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":5,"eval_count":2}`)
	}))
	defer srv.Close()

	rt, err := NewOllamaRuntime(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	temp := float32(0.3)
	var chunks int
	res, err := rt.ChatStream(context.Background(), ChatPayload{
		Model:       "llama3",
		Messages:    []ChatMessage{{Role: "user", Content: "hello"}},
		Temperature: &temp,
	}, func(string) error {
		chunks++
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream() failed: %v", err)
	}
	if res.Content != "Hi there" {
		t.Errorf("Content = %q, want %q", res.Content, "Hi there")
	}
	if chunks != 2 {
		t.Errorf("chunks = %d, want 2", chunks)
	}
	if res.Usage.PromptTokens != 5 || res.Usage.CompletionTokens != 2 || res.Usage.TotalTokens != 7 {
		t.Errorf("Usage = %+v", res.Usage)
	}
	opts, _ := gotReq["options"].(map[string]any)
	if v, ok := opts["temperature"].(float64); !ok || v < 0.29 || v > 0.31 {
		t.Errorf("options.temperature = %v", opts["temperature"])
	}
}

func TestOllamaRuntime_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found"}`)
	}))
	defer srv.Close()

	rt, _ := NewOllamaRuntime(srv.URL, nil)
	_, err := rt.Chat(context.Background(), ChatPayload{Model: "nope"})
	var rtErr *AgentRuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("err = %v, want *AgentRuntimeError", err)
	}
	if rtErr.Type != ErrorTypeModelNotFound {
		t.Errorf("Type = %s, want ModelNotFound", rtErr.Type)
	}
}

func TestOllamaRuntime_ServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rt, _ := NewOllamaRuntime(url, nil)
	_, err := rt.Models(context.Background())
	var rtErr *AgentRuntimeError
	if !errors.As(err, &rtErr) || rtErr.Type != ErrorTypeOllamaServiceUnavailable {
		t.Fatalf("err = %v, want OllamaServiceUnavailable", err)
	}
}
