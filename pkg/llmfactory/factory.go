package llmfactory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/toolloop/gateway/anthropic"
	"github.com/effective-security/toolloop/gateway/googleai"
	"github.com/effective-security/toolloop/gateway/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "llmfactory")

// NewProvider is a wrapper for CreateProvider to allow for overriding the default implementation.
var NewProvider = CreateProvider

// Factory is the interface for creating model providers.
type Factory interface {
	// DefaultProvider returns the provider of the default configuration.
	DefaultProvider(ctx context.Context) (gateway.Provider, error)
	// ProviderByType returns a provider by its type, e.g.
	// GOOGLEAI, OPENAI, ANTHROPIC
	ProviderByType(ctx context.Context, providerType string) (gateway.Provider, error)
	// ProviderByModel returns a provider serving one of the models,
	// if none is found, it will return the default provider.
	ProviderByModel(ctx context.Context, preferredModels ...string) (gateway.Provider, error)
}

// Load returns the factory for the configuration file
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	byType          map[string]gateway.Provider
	byName          map[string]gateway.Provider
	lock            sync.Mutex
}

// New creates a new provider factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:    cfg,
		byType: make(map[string]gateway.Provider),
		byName: make(map[string]gateway.Provider),
	}

	if cfg.DefaultProvider != "" {
		f.defaultProvider = cfg.Find(cfg.DefaultProvider)
	}
	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

// CreateProvider returns the provider for the configuration, using the first
// of preferredModels it serves, or its default model.
func CreateProvider(ctx context.Context, cfg *ProviderConfig, preferredModels ...string) (gateway.Provider, error) {
	provType := strings.ToUpper(cfg.APIType)
	switch provType {
	case "GOOGLEAI", "GEMINI":
		return newGoogleAI(ctx, cfg, preferredModels...)
	case "OPENAI", "OPEN_AI":
		return newOpenAI(cfg, preferredModels...)
	case "ANTHROPIC":
		return newAnthropic(cfg, preferredModels...)
	}
	return nil, errors.Errorf("unsupported provider type: %s", provType)
}

func newGoogleAI(ctx context.Context, cfg *ProviderConfig, preferredModels ...string) (gateway.Provider, error) {
	var opts []googleai.Option
	if model := cfg.FindModel(preferredModels...); model != "" {
		opts = append(opts, googleai.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, googleai.WithAPIKey(cfg.Token))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, googleai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Temperature > 0 {
		opts = append(opts, googleai.WithTemperature(cfg.Temperature))
	}
	return googleai.New(ctx, opts...)
}

func newOpenAI(cfg *ProviderConfig, preferredModels ...string) (gateway.Provider, error) {
	var opts []openai.Option
	if model := cfg.FindModel(preferredModels...); model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func newAnthropic(cfg *ProviderConfig, preferredModels ...string) (gateway.Provider, error) {
	var opts []anthropic.Option
	if model := cfg.FindModel(preferredModels...); model != "" {
		opts = append(opts, anthropic.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, anthropic.WithToken(cfg.Token))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.New(opts...)
}

func (f *factory) DefaultProvider(ctx context.Context) (gateway.Provider, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}

	return NewProvider(ctx, f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ProviderByType(ctx context.Context, providerType string) (gateway.Provider, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if p, ok := f.byType[providerType]; ok {
		return p, nil
	}

	for _, cfg := range f.cfg.Providers {
		if strings.EqualFold(cfg.APIType, providerType) {
			p, err := NewProvider(ctx, cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_provider",
				"type", cfg.APIType,
				"name", cfg.Name)

			f.byType[providerType] = p
			return p, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ProviderByModel(ctx context.Context, modelNames ...string) (gateway.Provider, error) {
	f.lock.Lock()
	for _, modelName := range modelNames {
		if p, ok := f.byName[modelName]; ok {
			f.lock.Unlock()
			return p, nil
		}

		for _, cfg := range f.cfg.Providers {
			if slices.Contains(cfg.AvailableModels, modelName) {
				p, err := NewProvider(ctx, cfg, modelNames...)
				if err != nil {
					logger.KV(xlog.ERROR,
						"reason", "NewProvider",
						"type", cfg.APIType,
						"models", modelNames,
						"err", err.Error(),
					)
					continue
				}

				logger.KV(xlog.DEBUG,
					"status", "created_provider",
					"type", cfg.APIType,
					"name", cfg.Name,
					"model", modelName)

				f.byName[modelName] = p
				f.lock.Unlock()
				return p, nil
			}
		}
	}
	f.lock.Unlock()
	return f.DefaultProvider(ctx)
}
