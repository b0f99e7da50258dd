// Package openai implements gateway.Provider with the OpenAI Responses API.
package openai

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/x/values"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-5-mini"

// TokenEnvVarName is read when no token is configured.
const TokenEnvVarName = "OPENAI_API_KEY" //nolint:gosec

// ErrNoContentInResponse is returned when the response has no text.
var ErrNoContentInResponse = errors.New("no content in generation response")

// Options for the OpenAI client.
type Options struct {
	Token   string
	Model   string
	BaseURL string
}

// Option sets an Options field.
type Option func(*Options)

// WithToken sets the API token.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL sets an OpenAI compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// Provider generates text with OpenAI models.
type Provider struct {
	client openai.Client
	opts   Options
}

var _ gateway.Provider = (*Provider)(nil)

// New creates an OpenAI provider.
func New(opts ...Option) (*Provider, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	o.Token = values.StringsCoalesce(o.Token, os.Getenv(TokenEnvVarName))
	o.Model = values.StringsCoalesce(o.Model, DefaultModel)

	if o.Token == "" {
		return nil, errors.New("openai: API token is not set")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.Token),
		option.WithMaxRetries(0),
	}
	if o.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.BaseURL))
	}

	return &Provider{
		client: openai.NewClient(sdkOpts...),
		opts:   o,
	}, nil
}

// Name returns the model name.
func (p *Provider) Name() string {
	return p.opts.Model
}

// Generate sends the prompt as the request input.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: p.opts.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "openai: failed to create response")
	}

	text := resp.OutputText()
	if text == "" {
		return "", ErrNoContentInResponse
	}
	return text, nil
}
