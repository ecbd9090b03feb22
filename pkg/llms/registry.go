package llms

import (
	"fmt"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/registry"
)

type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// NewProviderFromConfig builds a provider from its config by type.
func NewProviderFromConfig(cfg *config.LLMProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}
	switch cfg.Type {
	case "openai":
		return NewOpenAIProviderFromConfig(cfg)
	case "ollama":
		return NewOllamaProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Type)
	}
}

// NewRegistryFromConfig instantiates every configured provider.
func NewRegistryFromConfig(cfgs map[string]*config.LLMProviderConfig) (*Registry, error) {
	r := NewRegistry()
	for name, cfg := range cfgs {
		provider, err := NewProviderFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("llm '%s': %w", name, err)
		}
		if err := r.Register(name, provider); err != nil {
			return nil, err
		}
	}
	return r, nil
}
