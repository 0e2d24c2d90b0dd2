package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// CompatibleOptions configures a runtime for any vendor that speaks the
// OpenAI chat completions protocol.
type CompatibleOptions struct {
	Provider   string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// HandlePayload rewrites the payload before it is sent, for vendors whose
	// parameter ranges differ from OpenAI's.
	HandlePayload func(ChatPayload) ChatPayload
	// ModelFilter drops listed models that cannot chat, when set.
	ModelFilter func(id string) bool
}

type OpenAICompatibleRuntime struct {
	client        *openai.Client
	provider      string
	handlePayload func(ChatPayload) ChatPayload
	modelFilter   func(id string) bool
}

func NewOpenAICompatibleRuntime(opts CompatibleOptions) (*OpenAICompatibleRuntime, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, NewRuntimeError(ErrorTypeInvalidProviderAPIKey, opts.Provider, 0, errors.New("api key is empty"))
	}
	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &OpenAICompatibleRuntime{
		client:        openai.NewClientWithConfig(cfg),
		provider:      opts.Provider,
		handlePayload: opts.HandlePayload,
		modelFilter:   opts.ModelFilter,
	}, nil
}

func (r *OpenAICompatibleRuntime) Chat(ctx context.Context, payload ChatPayload) (*ChatResult, error) {
	resp, err := r.client.CreateChatCompletion(ctx, r.buildRequest(payload, false))
	if err != nil {
		return nil, translateOpenAIError(r.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewRuntimeError(ErrorTypeProviderBizError, r.provider, 0, errors.New("empty choices"))
	}
	return &ChatResult{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (r *OpenAICompatibleRuntime) ChatStream(
	ctx context.Context,
	payload ChatPayload,
	onChunk func(chunk string) error,
) (*ChatResult, error) {
	stream, err := r.client.CreateChatCompletionStream(ctx, r.buildRequest(payload, true))
	if err != nil {
		return nil, translateOpenAIError(r.provider, err)
	}
	defer stream.Close()

	result := &ChatResult{}
	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, translateOpenAIError(r.provider, err)
		}
		if resp.Usage != nil {
			result.Usage = Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		text := resp.Choices[0].Delta.Content
		if text == "" {
			continue
		}
		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return nil, err
		}
	}
	result.Content = full.String()
	return result, nil
}

func (r *OpenAICompatibleRuntime) Embeddings(ctx context.Context, payload EmbeddingsPayload) ([][]float32, error) {
	if len(payload.Input) == 0 {
		return nil, nil
	}
	resp, err := r.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: payload.Input,
		Model: openai.EmbeddingModel(payload.Model),
	})
	if err != nil {
		return nil, translateOpenAIError(r.provider, err)
	}
	if len(resp.Data) != len(payload.Input) {
		return nil, NewRuntimeError(ErrorTypeProviderBizError, r.provider, 0,
			fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(payload.Input)))
	}
	out := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = item.Embedding
	}
	return out, nil
}

func (r *OpenAICompatibleRuntime) Models(ctx context.Context) ([]ModelCard, error) {
	list, err := r.client.ListModels(ctx)
	if err != nil {
		return nil, translateOpenAIError(r.provider, err)
	}
	cards := make([]ModelCard, 0, len(list.Models))
	for _, m := range list.Models {
		if r.modelFilter != nil && !r.modelFilter(m.ID) {
			continue
		}
		cards = append(cards, ModelCard{ID: m.ID, Provider: r.provider})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func (r *OpenAICompatibleRuntime) buildRequest(payload ChatPayload, stream bool) openai.ChatCompletionRequest {
	if r.handlePayload != nil {
		payload = r.handlePayload(payload)
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	req := openai.ChatCompletionRequest{
		Model:    payload.Model,
		Messages: messages,
		Stream:   stream,
	}
	if stream {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	if payload.Temperature != nil {
		req.Temperature = *payload.Temperature
		// A zero temperature would be dropped by omitempty.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if payload.TopP != nil {
		req.TopP = *payload.TopP
	}
	if payload.MaxTokens != nil {
		req.MaxTokens = *payload.MaxTokens
	}
	if payload.PresencePenalty != nil {
		req.PresencePenalty = *payload.PresencePenalty
	}
	if payload.FrequencyPenalty != nil {
		req.FrequencyPenalty = *payload.FrequencyPenalty
	}
	return req
}

func translateOpenAIError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		errType := typeForStatus(apiErr.HTTPStatusCode)
		switch {
		case code == "insufficient_quota":
			errType = ErrorTypeInsufficientQuota
		case code == "context_length_exceeded":
			errType = ErrorTypeExceededContextWindow
		case code == "model_not_found":
			errType = ErrorTypeModelNotFound
		case code == "invalid_api_key":
			errType = ErrorTypeInvalidProviderAPIKey
		case code == "unsupported_country_region_territory":
			errType = ErrorTypeLocationNotSupport
		}
		return NewRuntimeError(errType, provider, apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewRuntimeError(typeForStatus(reqErr.HTTPStatusCode), provider, reqErr.HTTPStatusCode, err)
	}
	return NewRuntimeError(ErrorTypeProviderBizError, provider, 0, err)
}
