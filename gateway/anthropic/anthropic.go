// Package anthropic implements gateway.Provider with the Anthropic Messages API.
package anthropic

import (
	"context"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/x/values"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5"
	// DefaultMaxTokens bounds the response length.
	DefaultMaxTokens = int64(1024)
	// TokenEnvVarName is read when no token is configured.
	TokenEnvVarName = "ANTHROPIC_API_KEY" //nolint:gosec
)

// ErrNoContentInResponse is returned when the response has no text.
var ErrNoContentInResponse = errors.New("no content in generation response")

// Options for the Anthropic client.
type Options struct {
	Token     string
	Model     string
	BaseURL   string
	MaxTokens int64
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

// WithBaseURL sets the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int64) Option {
	return func(opts *Options) {
		opts.MaxTokens = n
	}
}

// Provider generates text with Claude models.
type Provider struct {
	client anthropic.Client
	opts   Options
}

var _ gateway.Provider = (*Provider)(nil)

// New creates an Anthropic provider.
func New(opts ...Option) (*Provider, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	o.Token = values.StringsCoalesce(o.Token, os.Getenv(TokenEnvVarName))
	o.Model = values.StringsCoalesce(o.Model, DefaultModel)
	o.MaxTokens = values.NumbersCoalesce(o.MaxTokens, DefaultMaxTokens)

	if o.Token == "" {
		return nil, errors.New("anthropic: API token is not set")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.Token),
		option.WithMaxRetries(0),
	}
	if o.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.BaseURL))
	}

	return &Provider{
		client: anthropic.NewClient(sdkOpts...),
		opts:   o,
	}, nil
}

// Name returns the model name.
func (p *Provider) Name() string {
	return p.opts.Model
}

// Generate sends the prompt as a single user message.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.opts.Model),
		MaxTokens: p.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "anthropic: failed to create message")
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrNoContentInResponse
	}
	return sb.String(), nil
}
