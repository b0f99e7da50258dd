// Package googleai implements gateway.Provider with the Gemini API.
package googleai

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/gateway"
	"github.com/effective-security/x/values"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrNoContentInResponse is returned when the response has no text.
var ErrNoContentInResponse = errors.New("no content in generation response")

// Options for the Gemini client.
type Options struct {
	APIKey      string
	Model       string
	Temperature float32
	BaseURL     string
	HTTPClient  *http.Client
}

// Option sets an Options field.
type Option func(*Options)

// WithAPIKey sets the API key. GEMINI_API_KEY, then GOOGLE_API_KEY are
// used when not set.
func WithAPIKey(apiKey string) Option {
	return func(opts *Options) {
		opts.APIKey = apiKey
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(opts *Options) {
		opts.Temperature = t
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// Provider generates text with Gemini.
type Provider struct {
	client *genai.Client
	opts   Options
}

var _ gateway.Provider = (*Provider)(nil)

// New creates a Gemini provider.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	o.APIKey = values.StringsCoalesce(o.APIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	o.Model = values.StringsCoalesce(o.Model, DefaultModel)

	if o.APIKey == "" {
		return nil, errors.New("googleai: API key is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     o.APIKey,
		HTTPClient: o.HTTPClient,
		Backend:    genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: o.BaseURL,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to create client")
	}

	return &Provider{
		client: client,
		opts:   o,
	}, nil
}

// Name returns the model name.
func (p *Provider) Name() string {
	return p.opts.Model
}

// Generate sends the prompt as a single user turn.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if p.opts.Temperature > 0 {
		cfg = &genai.GenerateContentConfig{
			Temperature: genai.Ptr(p.opts.Temperature),
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.opts.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", errors.Wrap(err, "googleai: failed to generate content")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoContentInResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrNoContentInResponse
	}
	return sb.String(), nil
}
