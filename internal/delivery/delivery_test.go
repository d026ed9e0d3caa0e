package delivery

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hellojin97/copilot-ci-automation/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SENDER_EMAIL", "EMAIL_PASSWORD", "RECIPIENT_EMAIL", "EMAIL_SUBJECT", "SMTP_HOST", "SMTP_PORT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestParseRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, ParseRecipients("a@x.com, , b@x.com"))
	assert.Nil(t, ParseRecipients(" , "))
	assert.Equal(t, []string{"solo@x.com"}, ParseRecipients("solo@x.com"))
}

func TestParsePort(t *testing.T) {
	assert.Equal(t, 465, ParsePort("465"))
	assert.Equal(t, 587, ParsePort(""))
	assert.Equal(t, 587, ParsePort("abc"))
	assert.Equal(t, 587, ParsePort("-1"))
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("EMAIL_PASSWORD", "secret")
	t.Setenv("RECIPIENT_EMAIL", "a@x.com, b@x.com")
	t.Setenv("SMTP_PORT", "2525")

	cfg, ok, err := FromEnv("", Defaults{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "reports@example.com", cfg.Sender)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, cfg.Recipients)
	assert.Equal(t, notify.DefaultHost, cfg.Host)
	assert.Equal(t, 2525, cfg.Port)
	assert.NotContains(t, cfg.String(), "secret")
	assert.NotContains(t, fmt.Sprint(*cfg), "secret")
}

func TestFromEnvIncomplete(t *testing.T) {
	clearEnv(t)
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("RECIPIENT_EMAIL", "a@x.com")

	cfg, ok, err := FromEnv(filepath.Join(t.TempDir(), "missing.env"), Defaults{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, cfg)
}

func TestFromEnvDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "SENDER_EMAIL=file@example.com\nEMAIL_PASSWORD=from-file\nRECIPIENT_EMAIL=r@example.com\nSMTP_HOST=mail.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, ok, err := FromEnv(path, Defaults{Port: 465})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "file@example.com", cfg.Sender)
	assert.Equal(t, "mail.example.com", cfg.Host)
	assert.Equal(t, 465, cfg.Port, "unset port falls back to the configured default")
}

func TestValidate(t *testing.T) {
	good := Config{Sender: "me@example.com", Password: "pw", Recipients: []string{"a@x.com"}, Host: "smtp.example.com", Port: 587}
	require.NoError(t, Validate(&good))

	bad := good
	bad.Sender = "me@"
	var se *notify.InvalidSenderError
	assert.True(t, errors.As(Validate(&bad), &se))

	bad = good
	bad.Recipients = []string{"a@x.com", "not an address"}
	var re *notify.InvalidRecipientError
	require.True(t, errors.As(Validate(&bad), &re))
	assert.Equal(t, "not an address", re.Address)

	bad = good
	bad.Recipients = nil
	assert.True(t, errors.As(Validate(&bad), &re))

	bad = good
	bad.Port = 70000
	assert.ErrorContains(t, Validate(&bad), "invalid smtp port")

	bad = good
	bad.Password = ""
	assert.ErrorContains(t, Validate(&bad), "password is required")
}

func TestPromptDeclined(t *testing.T) {
	for _, in := range []string{"n\n", "\n", ""} {
		var out bytes.Buffer
		cfg, ok, err := NewPrompter(strings.NewReader(in), &out, nil).Prompt("", Defaults{})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, cfg)
	}
}

func TestPromptFull(t *testing.T) {
	in := strings.NewReader("yes\nme@example.com\na@x.com, , b@x.com\n\n\nnot-a-port\n")
	var out bytes.Buffer
	secretCalls := 0
	p := NewPrompter(in, &out, func() (string, error) {
		secretCalls++
		return "app-pass\n", nil
	})

	cfg, ok, err := p.Prompt("Sales Data Analysis Report (2025-09-01 ~ 2025-09-30)", Defaults{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, secretCalls)
	assert.Equal(t, "me@example.com", cfg.Sender)
	assert.Equal(t, "app-pass", cfg.Password)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, cfg.Recipients)
	assert.Empty(t, cfg.Subject)
	assert.Equal(t, notify.DefaultHost, cfg.Host)
	assert.Equal(t, notify.DefaultPort, cfg.Port)
	assert.NotContains(t, out.String(), "app-pass")
	assert.Contains(t, out.String(), "2025-09-01 ~ 2025-09-30")
}

func TestPromptUsesConfiguredDefaults(t *testing.T) {
	in := strings.NewReader("y\nme@example.com\na@x.com\n\n\n\n")
	var out bytes.Buffer
	p := NewPrompter(in, &out, func() (string, error) { return "pw", nil })

	cfg, ok, err := p.Prompt("", Defaults{Host: "mail.example.com", Port: 2525})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mail.example.com", cfg.Host)
	assert.Equal(t, 2525, cfg.Port)
	assert.Contains(t, out.String(), "blank for mail.example.com")
}

func TestConfigRequest(t *testing.T) {
	cfg := Config{Sender: "me@example.com", Password: "pw", Recipients: []string{"a@x.com"}, Subject: "S", Host: "h", Port: 25}
	req := cfg.Request("/tmp/r.pdf")
	assert.Equal(t, "/tmp/r.pdf", req.DocumentPath)
	assert.Equal(t, "pw", req.Password)
	assert.Equal(t, 25, req.Port)
}
