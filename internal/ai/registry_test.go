package ai

import (
	"errors"
	"testing"

	"lobechat-go/internal/config"
)

func testConfig() *config.Config {
	off := false
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider:  "openai",
			DefaultModel:     "gpt-4o-mini",
			APIKeySelectMode: KeySelectTurn,
			MaxRetries:       1,
		},
		Providers: map[string]config.ProviderConfig{
			"openai":  {APIKey: "sk-1"},
			"groq":    {APIKey: "gsk", Enabled: &off},
			"ollama":  {BaseURL: "http://127.0.0.1:11434"},
			"unknown": {APIKey: "x"},
		},
	}
}

func TestRegistry_Runtime(t *testing.T) {
	reg := NewRegistry(testConfig())

	if _, err := reg.Runtime("openai", KeyOverride{}); err != nil {
		t.Errorf("Runtime(openai) failed: %v", err)
	}
	if _, err := reg.Runtime("ollama", KeyOverride{}); err != nil {
		t.Errorf("Runtime(ollama) failed: %v", err)
	}
	if _, err := reg.Runtime("groq", KeyOverride{}); !errors.Is(err, ErrProviderDisabled) {
		t.Errorf("Runtime(groq) err = %v, want ErrProviderDisabled", err)
	}
	if _, err := reg.Runtime("unknown", KeyOverride{}); !errors.Is(err, ErrProviderDisabled) {
		t.Errorf("Runtime(unknown) err = %v, want ErrProviderDisabled", err)
	}
	if _, err := reg.Runtime("deepseek", KeyOverride{}); !errors.Is(err, ErrProviderDisabled) {
		t.Errorf("Runtime(deepseek) err = %v, want ErrProviderDisabled", err)
	}
}

func TestRegistry_UserKeyEnablesProvider(t *testing.T) {
	reg := NewRegistry(testConfig())
	if _, err := reg.Runtime("groq", KeyOverride{APIKey: "user-key"}); err != nil {
		t.Errorf("Runtime(groq, user key) failed: %v", err)
	}
	if _, err := reg.Runtime("google", KeyOverride{APIKey: "user-key"}); err != nil {
		t.Errorf("Runtime(google, user key) failed: %v", err)
	}
}

func TestRegistry_Providers(t *testing.T) {
	reg := NewRegistry(testConfig())
	status := map[string]bool{}
	for _, p := range reg.Providers() {
		status[p.ID] = p.Enabled
	}
	if len(status) != len(config.KnownProviders) {
		t.Errorf("Providers() returned %d rows, want %d", len(status), len(config.KnownProviders))
	}
	if !status["openai"] || !status["ollama"] || status["groq"] || status["deepseek"] {
		t.Errorf("Providers() = %v", status)
	}
	if p, m := reg.Defaults(); p != "openai" || m != "gpt-4o-mini" {
		t.Errorf("Defaults() = %s, %s", p, m)
	}
}
