// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  Secrets
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, PublishTokenKey, "  tok_abc123  \n")
				writeFile(t, dir, "sink-user", "curator@example.com\n")
				return dir
			},
			want: Secrets{
				PublishTokenKey: "tok_abc123",
				"sink-user":     "curator@example.com",
			},
		},
		{
			name: "missing directory is empty",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty and whitespace files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, PublishTokenKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Secrets{PublishTokenKey: "valid-key"},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, PublishTokenKey, "tok_real")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o700))
				return dir
			},
			want: Secrets{PublishTokenKey: "tok_real"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDirIsAFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plain", "x")
	_, err := Load(filepath.Join(dir, "plain"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading secrets directory")
}

func TestLoadWarnsOnOpenPermissions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PublishTokenKey, "tok")
	require.NoError(t, os.Chmod(filepath.Join(dir, PublishTokenKey), 0o644))
	writeFile(t, dir, "private", "p")

	core, logs := observer.New(zapcore.WarnLevel)
	got, err := Load(dir, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, "tok", got[PublishTokenKey], "loose files still load")

	warned := logs.FilterMessage("secret file is readable by other users").All()
	require.Len(t, warned, 1)
	assert.Equal(t, filepath.Join(dir, PublishTokenKey), warned[0].ContextMap()["path"])
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o600) })

	got, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "value123", got["good-key"])
	assert.NotContains(t, got, "bad-key")
}

func TestPublishToken(t *testing.T) {
	s := Secrets{PublishTokenKey: "file"}
	assert.Equal(t, "flag", s.PublishToken("flag", "config"))
	assert.Equal(t, "config", s.PublishToken("", "config"))
	assert.Equal(t, "file", s.PublishToken("", ""))
	assert.Equal(t, "file", s.PublishToken())
	assert.Empty(t, Secrets{}.PublishToken(""))

	var none Secrets
	assert.Equal(t, "flag", none.PublishToken("flag"))
}

func TestFirst(t *testing.T) {
	assert.Equal(t, "flag", First("flag", "config", "file"))
	assert.Equal(t, "file", First("", "", "file"))
	assert.Empty(t, First())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}
