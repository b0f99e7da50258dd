// Package gateway wraps a text-generation provider with the client-side
// rate-limit delay and a hard timeout on each call.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "gateway")

//go:generate mockgen -source=gateway.go -destination=../mocks/mockgateway/gateway_mock.gen.go -package mockgateway

const (
	// DefaultDelay is waited before every request to stay under the
	// provider's rate limit.
	DefaultDelay = 3 * time.Second
	// DefaultTimeout bounds the generation call.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrGateway is returned for any provider failure other than timeout.
	ErrGateway = errors.New("model gateway failed")
	// ErrTimeout is returned when the provider does not answer in time.
	ErrTimeout = errors.New("model call timed out")
)

// Provider generates text for a prompt.
type Provider interface {
	// Name returns the provider and model name, used as metrics tag
	Name() string
	// Generate returns the model response for the prompt
	Generate(ctx context.Context, prompt string) (string, error)
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithDelay sets the delay before each request.
func WithDelay(delay time.Duration) Option {
	return func(g *Gateway) {
		g.delay = delay
	}
}

// WithTimeout sets the generation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// Gateway issues one model call at a time.
type Gateway struct {
	provider Provider
	delay    time.Duration
	timeout  time.Duration
}

// New returns a Gateway over the provider.
func New(provider Provider, opts ...Option) *Gateway {
	g := &Gateway{
		provider: provider,
		delay:    DefaultDelay,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ModelName returns the provider name.
func (g *Gateway) ModelName() string {
	return g.provider.Name()
}

type generated struct {
	text string
	err  error
}

// Complete waits the configured delay, then runs the provider call in a
// separate goroutine and returns its text, or ErrTimeout once the timeout
// elapses. The delay does not count towards the timeout.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	name := g.provider.Name()

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var expired <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	// buffered so the goroutine never blocks after a timeout
	ch := make(chan generated, 1)
	started := time.Now()
	go func() {
		text, err := g.provider.Generate(callCtx, prompt)
		ch <- generated{text: text, err: err}
	}()

	metricskey.StatsLLMBytesSent.IncrCounter(float64(len(prompt)), name)

	select {
	case <-ctx.Done():
		metricskey.StatsLLMCallsFailed.IncrCounter(1, name)
		return "", ctx.Err()
	case <-expired:
		metricskey.StatsLLMCallsTimedOut.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "timeout",
			"model", name,
			"timeout", g.timeout.String(),
		)
		return "", errors.WithMessagef(ErrTimeout, "%s did not respond within %v", name, g.timeout)
	case res := <-ch:
		metricskey.PerfLLMCall.MeasureSince(started, name)
		if res.err != nil {
			metricskey.StatsLLMCallsFailed.IncrCounter(1, name)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", errors.Mark(errors.Wrapf(res.err, "%s", name), ErrGateway)
		}
		if strings.TrimSpace(res.text) == "" {
			metricskey.StatsLLMCallsFailed.IncrCounter(1, name)
			return "", errors.Mark(errors.Errorf("%s returned empty response", name), ErrGateway)
		}

		metricskey.StatsLLMCallsSucceeded.IncrCounter(1, name)
		metricskey.StatsLLMBytesReceived.IncrCounter(float64(len(res.text)), name)

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "completed",
			"model", name,
			"elapsed", time.Since(started).String(),
			"bytes", len(res.text),
		)
		return res.text, nil
	}
}
