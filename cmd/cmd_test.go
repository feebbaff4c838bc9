package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/jjudge-oj/palette/internal/client"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()

	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("info").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("WARN").Enabled(ctx, slog.LevelInfo))
	assert.True(t, newLogger("error").Enabled(ctx, slog.LevelError))
	assert.True(t, newLogger("bogus").Enabled(ctx, slog.LevelInfo))
}

func TestPromptCredentials_Piped(t *testing.T) {
	clientEmail = ""
	t.Cleanup(func() { clientEmail = "" })

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(" a@x.com \npw 1\n"))
	cmd.SetErr(&bytes.Buffer{})

	email, password, err := promptCredentials(cmd)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)
	assert.Equal(t, "pw 1", password)
}

func TestPromptCredentials_EmailFlag(t *testing.T) {
	clientEmail = "flag@x.com"
	t.Cleanup(func() { clientEmail = "" })

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("secret"))
	cmd.SetErr(&bytes.Buffer{})

	email, password, err := promptCredentials(cmd)
	require.NoError(t, err)
	assert.Equal(t, "flag@x.com", email)
	assert.Equal(t, "secret", password)
}

func TestExplainClientError(t *testing.T) {
	assert.Contains(t, explainClientError(client.ErrNotLoggedIn).Error(), "palette client login")
	assert.Contains(t, explainClientError(fmt.Errorf("wrap: %w", client.ErrUnauthorized)).Error(), "expired")

	other := errors.New("boom")
	assert.Equal(t, other, explainClientError(other))
}

func TestRootCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"server"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"events", "tail"},
		{"client", "register"},
		{"client", "login"},
		{"client", "logout"},
		{"client", "me"},
		{"client", "list"},
		{"client", "upload"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}
