package ai

import (
	"fmt"
	"net/http"
	"time"

	"lobechat-go/internal/config"
)

// KeyOverride carries credentials the user supplied with a request. A user key
// enables a provider even when the server has none configured.
type KeyOverride struct {
	APIKey  string
	BaseURL string
}

// ProviderStatus is one row of the provider list shown to clients.
type ProviderStatus struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// Registry resolves a provider id to a ready Runtime.
type Registry struct {
	cfg        *config.Config
	keys       *APIKeyManager
	retry      RetryOptions
	httpClient *http.Client
}

func NewRegistry(cfg *config.Config) *Registry {
	timeout := time.Duration(cfg.LLM.RequestTimeoutSeconds) * time.Second
	return &Registry{
		cfg:  cfg,
		keys: NewAPIKeyManager(cfg.LLM.APIKeySelectMode),
		retry: RetryOptions{
			MaxRetries: cfg.LLM.MaxRetries,
			BaseDelay:  time.Duration(cfg.LLM.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:   time.Duration(cfg.LLM.RetryMaxDelayMS) * time.Millisecond,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Supported reports whether a runtime exists for provider.
func Supported(provider string) bool {
	return IsCompatibleProvider(provider) || provider == googleProvider || provider == ollamaProvider
}

func (r *Registry) Runtime(provider string, override KeyOverride) (Runtime, error) {
	if !Supported(provider) {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
	}
	pc, enabled := r.cfg.Provider(provider)

	baseURL := override.BaseURL
	if baseURL == "" {
		baseURL = pc.BaseURL
	}

	var (
		rt  Runtime
		err error
	)
	switch {
	case provider == ollamaProvider:
		if !enabled && override.BaseURL == "" {
			return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
		}
		rt, err = NewOllamaRuntime(baseURL, r.httpClient)
	default:
		apiKey := override.APIKey
		if apiKey == "" {
			if !enabled {
				return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
			}
			apiKey = r.keys.Pick(pc.APIKey)
		}
		if provider == googleProvider {
			rt, err = NewGoogleRuntime(apiKey, baseURL)
			break
		}
		vendor := compatibleVendors[provider]
		if baseURL == "" {
			baseURL = vendor.baseURL
		}
		rt, err = NewOpenAICompatibleRuntime(CompatibleOptions{
			Provider:      provider,
			BaseURL:       baseURL,
			APIKey:        apiKey,
			HTTPClient:    r.httpClient,
			HandlePayload: vendor.handlePayload,
			ModelFilter:   vendor.modelFilter,
		})
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(rt, r.retry), nil
}

// Providers lists every known provider with its server-side status.
func (r *Registry) Providers() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(config.KnownProviders))
	for _, id := range config.KnownProviders {
		_, enabled := r.cfg.Provider(id)
		out = append(out, ProviderStatus{ID: id, Enabled: enabled})
	}
	return out
}

// Defaults returns the provider and model used when an agent names neither.
func (r *Registry) Defaults() (provider, model string) {
	return r.cfg.LLM.DefaultProvider, r.cfg.LLM.DefaultModel
}
