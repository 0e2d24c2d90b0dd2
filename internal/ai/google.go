package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const googleProvider = "google"

// GoogleRuntime talks to Gemini through generative-ai-go. A client is opened
// per call because the API key can differ between requests.
type GoogleRuntime struct {
	apiKey  string
	baseURL string
}

func NewGoogleRuntime(apiKey, baseURL string) (*GoogleRuntime, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, NewRuntimeError(ErrorTypeInvalidProviderAPIKey, googleProvider, 0, errors.New("api key is empty"))
	}
	return &GoogleRuntime{apiKey: strings.TrimSpace(apiKey), baseURL: baseURL}, nil
}

func (g *GoogleRuntime) newClient(ctx context.Context) (*genai.Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(g.apiKey)}
	if g.baseURL != "" {
		opts = append(opts, option.WithEndpoint(g.baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, NewRuntimeError(ErrorTypeAgentRuntime, googleProvider, 0, fmt.Errorf("create genai client failed: %w", err))
	}
	return client, nil
}

func (g *GoogleRuntime) Chat(ctx context.Context, payload ChatPayload) (*ChatResult, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	cs, last := g.startChat(client, payload)
	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		return nil, translateGoogleError(err)
	}
	result := &ChatResult{Content: responseText(resp)}
	result.Usage = usageOf(resp)
	return result, nil
}

func (g *GoogleRuntime) ChatStream(ctx context.Context, payload ChatPayload, onChunk func(chunk string) error) (*ChatResult, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	cs, last := g.startChat(client, payload)
	iter := cs.SendMessageStream(ctx, last...)

	result := &ChatResult{}
	var full strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translateGoogleError(err)
		}
		if resp.UsageMetadata != nil {
			result.Usage = usageOf(resp)
		}
		text := responseText(resp)
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

func (g *GoogleRuntime) Embeddings(ctx context.Context, payload EmbeddingsPayload) ([][]float32, error) {
	if len(payload.Input) == 0 {
		return nil, nil
	}
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	em := client.EmbeddingModel(payload.Model)
	batch := em.NewBatch()
	for _, text := range payload.Input {
		batch.AddContent(genai.Text(text))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, translateGoogleError(err)
	}
	out := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		out = append(out, emb.Values)
	}
	return out, nil
}

func (g *GoogleRuntime) Models(ctx context.Context) ([]ModelCard, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var cards []ModelCard
	it := client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translateGoogleError(err)
		}
		if !supportsGenerate(info.SupportedGenerationMethods) {
			continue
		}
		cards = append(cards, ModelCard{
			ID:                  strings.TrimPrefix(info.Name, "models/"),
			DisplayName:         info.DisplayName,
			Provider:            googleProvider,
			ContextWindowTokens: int(info.InputTokenLimit),
		})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

// startChat loads every message except the last user turn into the chat
// history and returns the parts of that last turn.
func (g *GoogleRuntime) startChat(client *genai.Client, payload ChatPayload) (*genai.ChatSession, []genai.Part) {
	model := client.GenerativeModel(payload.Model)
	if payload.Temperature != nil {
		model.SetTemperature(*payload.Temperature)
	}
	if payload.TopP != nil {
		model.SetTopP(*payload.TopP)
	}
	if payload.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*payload.MaxTokens))
	}

	var system []string
	var history []*genai.Content
	for _, m := range payload.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	var last []genai.Part
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		last = history[n-1].Parts
		history = history[:n-1]
	} else {
		last = []genai.Part{genai.Text("")}
	}
	cs := model.StartChat()
	cs.History = history
	return cs, last
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}

func usageOf(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

func supportsGenerate(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

func translateGoogleError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key not valid"):
		return NewRuntimeError(ErrorTypeInvalidProviderAPIKey, googleProvider, http.StatusBadRequest, err)
	case strings.Contains(msg, "location is not supported"):
		return NewRuntimeError(ErrorTypeLocationNotSupport, googleProvider, http.StatusBadRequest, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return NewRuntimeError(typeForStatus(gerr.Code), googleProvider, gerr.Code, err)
	}
	return NewRuntimeError(ErrorTypeProviderBizError, googleProvider, 0, err)
}
