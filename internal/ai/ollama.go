package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"syscall"

	ollama "github.com/ollama/ollama/api"
)

const (
	ollamaProvider       = "ollama"
	defaultOllamaBaseURL = "http://127.0.0.1:11434"
)

// OllamaRuntime needs no API key; the base URL alone enables it.
type OllamaRuntime struct {
	client *ollama.Client
}

func NewOllamaRuntime(baseURL string, httpClient *http.Client) (*OllamaRuntime, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, NewRuntimeError(ErrorTypeAgentRuntime, ollamaProvider, 0, fmt.Errorf("invalid base url: %w", err))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaRuntime{client: ollama.NewClient(parsed, httpClient)}, nil
}

func (o *OllamaRuntime) Chat(ctx context.Context, payload ChatPayload) (*ChatResult, error) {
	return o.chat(ctx, payload, false, nil)
}

func (o *OllamaRuntime) ChatStream(ctx context.Context, payload ChatPayload, onChunk func(chunk string) error) (*ChatResult, error) {
	return o.chat(ctx, payload, true, onChunk)
}

func (o *OllamaRuntime) chat(ctx context.Context, payload ChatPayload, stream bool, onChunk func(string) error) (*ChatResult, error) {
	messages := make([]ollama.Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		messages = append(messages, ollama.Message{Role: m.Role, Content: m.Content})
	}
	req := &ollama.ChatRequest{
		Model:    payload.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  ollamaOptions(payload),
	}

	result := &ChatResult{}
	var full strings.Builder
	err := o.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		if text := resp.Message.Content; text != "" {
			full.WriteString(text)
			if onChunk != nil {
				if err := onChunk(text); err != nil {
					return err
				}
			}
		}
		if resp.Done {
			result.Usage = Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateOllamaError(err)
	}
	result.Content = full.String()
	return result, nil
}

func (o *OllamaRuntime) Embeddings(ctx context.Context, payload EmbeddingsPayload) ([][]float32, error) {
	if len(payload.Input) == 0 {
		return nil, nil
	}
	resp, err := o.client.Embed(ctx, &ollama.EmbedRequest{Model: payload.Model, Input: payload.Input})
	if err != nil {
		return nil, translateOllamaError(err)
	}
	return resp.Embeddings, nil
}

func (o *OllamaRuntime) Models(ctx context.Context) ([]ModelCard, error) {
	list, err := o.client.List(ctx)
	if err != nil {
		return nil, translateOllamaError(err)
	}
	cards := make([]ModelCard, 0, len(list.Models))
	for _, m := range list.Models {
		cards = append(cards, ModelCard{ID: m.Name, Provider: ollamaProvider})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func ollamaOptions(p ChatPayload) map[string]any {
	opts := map[string]any{}
	if p.Temperature != nil {
		opts["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		opts["top_p"] = *p.TopP
	}
	if p.MaxTokens != nil {
		opts["num_predict"] = *p.MaxTokens
	}
	if p.PresencePenalty != nil {
		opts["presence_penalty"] = *p.PresencePenalty
	}
	if p.FrequencyPenalty != nil {
		opts["frequency_penalty"] = *p.FrequencyPenalty
	}
	return opts
}

func translateOllamaError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		errType := ErrorTypeOllamaBizError
		if statusErr.StatusCode == http.StatusNotFound {
			errType = ErrorTypeModelNotFound
		}
		return NewRuntimeError(errType, ollamaProvider, statusErr.StatusCode, err)
	}
	var opErr *net.OpError
	if errors.Is(err, syscall.ECONNREFUSED) || errors.As(err, &opErr) {
		return NewRuntimeError(ErrorTypeOllamaServiceUnavailable, ollamaProvider, http.StatusServiceUnavailable, err)
	}
	return NewRuntimeError(ErrorTypeOllamaBizError, ollamaProvider, 0, err)
}
