package toolserver_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolloop/toolserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigits(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 2}, toolserver.Digits(132))
	assert.Equal(t, []int64{7}, toolserver.Digits(7))
	assert.Equal(t, []int64{1, 0, 0}, toolserver.Digits(100))
	assert.Empty(t, toolserver.Digits(0))
	assert.Empty(t, toolserver.Digits(-5))
}

func TestSum(t *testing.T) {
	sum, err := toolserver.Sum([]int64{1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(6), sum)

	_, err = toolserver.Sum(nil)
	assert.True(t, errors.Is(err, toolserver.ErrEmptyList))
}

func TestComposeMessage(t *testing.T) {
	msg := string(toolserver.ComposeMessage("bot@example.com", "you@example.com", "Answer", "6"))
	assert.Contains(t, msg, "From: bot@example.com\r\n")
	assert.Contains(t, msg, "To: you@example.com\r\n")
	assert.Contains(t, msg, "Subject: Answer\r\n")
	assert.Contains(t, msg, "\r\n\r\nHere's the answer to your query:\r\n\r\n6\r\n")
}

func TestSMTPConfigFromEnv(t *testing.T) {
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("SENDER_EMAIL", "bot@example.com")
	t.Setenv("SENDER_PASSWORD", "secret")

	cfg := toolserver.SMTPConfigFromEnv()
	assert.Equal(t, "smtp.example.com", cfg.Server)
	assert.Equal(t, toolserver.DefaultSMTPPort, cfg.Port)
	assert.Equal(t, "bot@example.com", cfg.Sender)
	assert.Equal(t, "secret", cfg.Password)

	t.Setenv("SMTP_PORT", "2525")
	assert.Equal(t, "2525", toolserver.SMTPConfigFromEnv().Port)
}

func TestSMTPMailer_NotConfigured(t *testing.T) {
	m := toolserver.NewSMTPMailer(toolserver.SMTPConfig{})
	err := m.Send(t.Context(), "you@example.com", "Answer", "6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_SERVER and SENDER_EMAIL must be set")
}
