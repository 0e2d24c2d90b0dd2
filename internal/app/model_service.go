package app

import (
	"context"

	"lobechat-go/internal/ai"
)

// ProviderLister is the part of the runtime registry that lists providers.
type ProviderLister interface {
	RuntimeProvider
	Providers() []ai.ProviderStatus
}

type ModelService struct {
	registry ProviderLister
}

func NewModelService(registry ProviderLister) *ModelService {
	return &ModelService{registry: registry}
}

func (s *ModelService) Providers() []ai.ProviderStatus {
	return s.registry.Providers()
}

// Models lists what the provider serves, using the caller's key when given.
func (s *ModelService) Models(ctx context.Context, provider string, override ai.KeyOverride) ([]ai.ModelCard, error) {
	if provider == "" {
		return nil, ErrInvalidInput
	}
	rt, err := s.registry.Runtime(provider, override)
	if err != nil {
		return nil, mapRuntimeLookupErr(err)
	}
	return rt.Models(ctx)
}
