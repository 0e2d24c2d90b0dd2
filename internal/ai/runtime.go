package ai

import "context"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatPayload is the vendor-neutral chat request. Nil sampling fields are not
// sent to the provider.
type ChatPayload struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      *float32      `json:"temperature,omitempty"`
	TopP             *float32      `json:"top_p,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	PresencePenalty  *float32      `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float32      `json:"frequency_penalty,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResult struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type EmbeddingsPayload struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ModelCard struct {
	ID                  string `json:"id"`
	DisplayName         string `json:"display_name,omitempty"`
	Provider            string `json:"provider"`
	ContextWindowTokens int    `json:"context_window_tokens,omitempty"`
}

// Runtime is implemented by every vendor adapter.
type Runtime interface {
	Chat(ctx context.Context, payload ChatPayload) (*ChatResult, error)
	// ChatStream calls onChunk for every text delta and returns the full result.
	ChatStream(ctx context.Context, payload ChatPayload, onChunk func(chunk string) error) (*ChatResult, error)
	Embeddings(ctx context.Context, payload EmbeddingsPayload) ([][]float32, error)
	Models(ctx context.Context) ([]ModelCard, error)
}
