package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/effective-security/toolloop/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TOOLLOOP_TEST_NUMBER", "132")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load("testdata/toolloop.yaml")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, time.Second, cfg.Agent.Delay())
	assert.Equal(t, 20*time.Second, cfg.Agent.Timeout())
	assert.Equal(t, time.Duration(0), cfg.Agent.ToolCallTimeout())
	assert.True(t, cfg.Agent.StrictArguments)
	assert.Equal(t, "Find the sum of the digits of 132", cfg.Agent.Task)

	assert.Equal(t, "./bin/toolserver", cfg.ToolServer.Command)
	assert.Equal(t, []string{"--log-level", "debug"}, cfg.ToolServer.Args)
	assert.Equal(t, []string{"SMTP_SERVER=smtp.example.com"}, cfg.ToolServer.Env)

	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	assert.Equal(t, "sk-test", cfg.LLM.Providers[0].Token)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("MODEL_NAME", "gemini-2.5-pro")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultMaxIterations, cfg.Agent.MaxIterations)
	assert.Equal(t, config.DefaultRateLimitDelay, cfg.Agent.Delay())
	assert.Equal(t, config.DefaultModelTimeout, cfg.Agent.Timeout())
	assert.Equal(t, config.DefaultToolTimeout, cfg.Agent.ToolCallTimeout())
	assert.False(t, cfg.Agent.StrictArguments)
	assert.Equal(t, config.DefaultCommand, cfg.ToolServer.Command)

	require.Len(t, cfg.LLM.Providers, 1)
	p := cfg.LLM.Providers[0]
	assert.Equal(t, "gemini", cfg.LLM.DefaultProvider)
	assert.Equal(t, "GOOGLEAI", p.APIType)
	assert.Equal(t, "gm-test", p.Token)
	assert.Equal(t, "gemini-2.5-pro", p.DefaultModel)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MODEL_NAME=from-dotenv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	// godotenv does not override variables that are already set
	t.Setenv("MODEL_NAME", "")
	require.NoError(t, os.Unsetenv("MODEL_NAME"))

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.Providers[0].DefaultModel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load("testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unable to load config "testdata/missing.yaml"`)

	_, err = config.Load("testdata/invalid_duration.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "ModelTimeout")

	_, err = config.Load("testdata/invalid_provider.yaml")
	assert.EqualError(t, err, `invalid configuration: default provider "missing" is not configured`)
}

func TestLoad_HTTPToolServer(t *testing.T) {
	cfg, err := config.Load("testdata/http_toolserver.yaml")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/mcp", cfg.ToolServer.URL)
	assert.Empty(t, cfg.ToolServer.Command)

	_, err = config.Load("testdata/invalid_url.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
