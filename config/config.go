// Package config loads the agent configuration from a YAML file, the
// environment and an optional .env file.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/pkg/llmfactory"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "config")

// Defaults
const (
	DefaultMaxIterations  = 10
	DefaultRateLimitDelay = 3 * time.Second
	DefaultModelTimeout   = 10 * time.Second
	DefaultToolTimeout    = 60 * time.Second
	DefaultCommand        = "toolserver"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

// Config of the agent
type Config struct {
	Agent      Agent             `json:"agent" yaml:"agent"`
	ToolServer ToolServer        `json:"tool_server" yaml:"tool_server"`
	LLM        llmfactory.Config `json:"llm" yaml:"llm"`
}

// Agent loop settings. Durations are Go duration strings, empty means default.
type Agent struct {
	MaxIterations   int    `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" validate:"gte=0,lte=1000"`
	RateLimitDelay  string `json:"rate_limit_delay,omitempty" yaml:"rate_limit_delay,omitempty" validate:"omitempty,duration"`
	ModelTimeout    string `json:"model_timeout,omitempty" yaml:"model_timeout,omitempty" validate:"omitempty,duration"`
	ToolTimeout     string `json:"tool_timeout,omitempty" yaml:"tool_timeout,omitempty" validate:"omitempty,duration"`
	StrictArguments bool   `json:"strict_arguments,omitempty" yaml:"strict_arguments,omitempty"`
	// Task is used when no task is given on the command line
	Task string `json:"task,omitempty" yaml:"task,omitempty"`
}

// ToolServer is the subprocess serving tools over stdio, or the URL of an
// HTTP tool-server
type ToolServer struct {
	// URL of a streamable HTTP tool-server, used instead of Command
	URL     string   `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	Command string   `json:"command,omitempty" yaml:"command,omitempty" validate:"required_without=URL"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Env is appended to the environment of the current process
	Env []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Delay returns the pause before every model call.
func (a *Agent) Delay() time.Duration {
	return parseDuration(a.RateLimitDelay, DefaultRateLimitDelay)
}

// Timeout returns the model call timeout.
func (a *Agent) Timeout() time.Duration {
	return parseDuration(a.ModelTimeout, DefaultModelTimeout)
}

// ToolCallTimeout returns the tool call timeout, zero means none.
func (a *Agent) ToolCallTimeout() time.Duration {
	return parseDuration(a.ToolTimeout, DefaultToolTimeout)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// LoadDotEnv loads .env from the working directory, a missing file is ignored.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "unable to load .env")
	}
	return nil
}

// Load returns the configuration from file, or from the environment only
// when file is empty.
func Load(file string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "unable to load config %q", file)
		}
	}

	cfg.Agent.MaxIterations = values.NumbersCoalesce(cfg.Agent.MaxIterations, DefaultMaxIterations)
	if cfg.ToolServer.URL == "" {
		cfg.ToolServer.Command = values.StringsCoalesce(cfg.ToolServer.Command, DefaultCommand)
	}

	if len(cfg.LLM.Providers) == 0 {
		cfg.LLM.Providers = []*llmfactory.ProviderConfig{
			{
				Name:         "gemini",
				APIType:      "GOOGLEAI",
				Token:        values.StringsCoalesce(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
				DefaultModel: values.StringsCoalesce(os.Getenv("MODEL_NAME"), DefaultGeminiModel),
			},
		}
		cfg.LLM.DefaultProvider = "gemini"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.KV(xlog.DEBUG,
		"status", "loaded",
		"file", file,
		"command", cfg.ToolServer.Command,
		"max_iterations", cfg.Agent.MaxIterations,
		"providers", len(cfg.LLM.Providers),
	)
	return cfg, nil
}

// Validate checks the struct tags and the default provider.
func (c *Config) Validate() error {
	validate := validator.New()
	err := validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.LLM.DefaultProvider != "" && c.LLM.Find(c.LLM.DefaultProvider) == nil {
		return errors.Errorf("invalid configuration: default provider %q is not configured", c.LLM.DefaultProvider)
	}
	return nil
}
