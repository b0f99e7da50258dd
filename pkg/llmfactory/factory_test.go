package llmfactory_test

import (
	"context"
	"testing"

	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/toolloop/pkg/llmfactory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	provider string
	model    string
}

func (p *fakeProvider) Name() string {
	return p.model
}

func (p *fakeProvider) Generate(context.Context, string) (string, error) {
	return "FINAL_ANSWER: fake", nil
}

func setKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "fakekey")
	t.Setenv("OPENAI_API_KEY", "fakekey")
	t.Setenv("ANTHROPIC_API_KEY", "fakekey")
}

func Test_Factory(t *testing.T) {
	setKeys(t)
	ctx := context.Background()

	cfg, err := llmfactory.LoadConfig("testdata/llm.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, "fakekey", cfg.Providers[0].Token)
	assert.NotNil(t, cfg.Find("openai"))
	assert.Nil(t, cfg.Find("missing"))

	llmfactory.NewProvider = func(_ context.Context, cfg *llmfactory.ProviderConfig, preferredModels ...string) (gateway.Provider, error) {
		return &fakeProvider{provider: cfg.Name, model: cfg.FindModel(preferredModels...)}, nil
	}
	defer func() {
		llmfactory.NewProvider = llmfactory.CreateProvider
	}()

	f := llmfactory.New(cfg)
	p, err := f.DefaultProvider(ctx)
	require.NoError(t, err)
	fp := p.(*fakeProvider)
	assert.Equal(t, "gemini-2.0-flash", fp.model)
	assert.Equal(t, "gemini", fp.provider)

	p, err = f.ProviderByModel(ctx, "gpt-unknown", "gpt-4.1")
	require.NoError(t, err)
	fp = p.(*fakeProvider)
	assert.Equal(t, "gpt-4.1", fp.model)
	assert.Equal(t, "openai", fp.provider)

	// cached
	p2, err := f.ProviderByModel(ctx, "gpt-4.1")
	require.NoError(t, err)
	assert.Same(t, p, p2)

	// fallback to default
	p, err = f.ProviderByModel(ctx, "non-existent-model")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.(*fakeProvider).provider)

	p, err = f.ProviderByType(ctx, "ANTHROPIC")
	require.NoError(t, err)
	fp = p.(*fakeProvider)
	assert.Equal(t, "claude-sonnet-4-5", fp.model)
	assert.Equal(t, "anthropic", fp.provider)

	_, err = f.ProviderByType(ctx, "UNSUPPORTED")
	assert.EqualError(t, err, "provider not found for type: UNSUPPORTED")

	_, err = llmfactory.New(&llmfactory.Config{}).DefaultProvider(ctx)
	assert.EqualError(t, err, "no providers configured")

	invalid := llmfactory.New(&llmfactory.Config{
		DefaultProvider: "non-existent",
		Providers:       cfg.Providers,
	})
	p, err = invalid.DefaultProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.(*fakeProvider).provider)
}

func Test_Load(t *testing.T) {
	setKeys(t)

	f, err := llmfactory.Load("testdata/llm.yaml")
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = llmfactory.Load("testdata/non-existent.yaml")
	require.Error(t, err)

	cfg, err := llmfactory.LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers)
}

func Test_CreateProvider(t *testing.T) {
	setKeys(t)
	ctx := context.Background()

	tcases := []struct {
		cfg   llmfactory.ProviderConfig
		model string
	}{
		{cfg: llmfactory.ProviderConfig{APIType: "GOOGLEAI", DefaultModel: "gemini-2.5-pro"}, model: "gemini-2.5-pro"},
		{cfg: llmfactory.ProviderConfig{APIType: "googleai"}, model: "gemini-2.0-flash"},
		{cfg: llmfactory.ProviderConfig{APIType: "OPEN_AI", Token: "tok", DefaultModel: "gpt-4.1"}, model: "gpt-4.1"},
		{cfg: llmfactory.ProviderConfig{APIType: "OPENAI"}, model: "gpt-5-mini"},
		{cfg: llmfactory.ProviderConfig{APIType: "ANTHROPIC", BaseURL: "http://localhost:1"}, model: "claude-sonnet-4-5"},
	}
	for _, tc := range tcases {
		t.Run(tc.cfg.APIType, func(t *testing.T) {
			p, err := llmfactory.CreateProvider(ctx, &tc.cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.model, p.Name())
		})
	}

	_, err := llmfactory.CreateProvider(ctx, &llmfactory.ProviderConfig{APIType: "BEDROCK"})
	assert.EqualError(t, err, "unsupported provider type: BEDROCK")
}
