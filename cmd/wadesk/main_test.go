package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/accounts"
)

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "force"},
		{"admin", "create"},
		{"admin", "reset-password"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, strings.Fields(cmd.Use)[0], path[len(path)-1])
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "wadesk")
	assert.Contains(t, out.String(), "go:")
}

func TestReadPasswordFromPipe(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret-pass\n"), &bytes.Buffer{}, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", pw)

	_, err = readPassword(strings.NewReader("short"), &bytes.Buffer{}, "Password: ")
	assert.ErrorIs(t, err, accounts.ErrWeakPassword)
}
