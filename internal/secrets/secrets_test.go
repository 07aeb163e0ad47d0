// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, DocIntelAPIKey, "  di_abc123  \n")
				writeFile(t, dir, "proxy-token", "tok\n")
				return dir
			},
			want: map[string]string{
				DocIntelAPIKey: "di_abc123",
				"proxy-token":  "tok",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, DocIntelAPIKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{DocIntelAPIKey: "valid-key"},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, DocIntelAPIKey, "di_real")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{DocIntelAPIKey: "di_real"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	var buf bytes.Buffer
	got, err := Load(dir, zerolog.New(&buf))
	require.NoError(t, err)

	assert.Equal(t, "value123", got["good-key"])
	assert.NotContains(t, got, "bad-key")
	assert.Contains(t, buf.String(), "could not read secret")
}

func TestResolve(t *testing.T) {
	loaded := map[string]string{DocIntelAPIKey: "from-file"}

	t.Setenv("MDCONVERT_TEST_KEY", "")
	assert.Equal(t, "from-file", Resolve(loaded, DocIntelAPIKey, "MDCONVERT_TEST_KEY"))

	t.Setenv("MDCONVERT_TEST_KEY", " from-env ")
	assert.Equal(t, "from-env", Resolve(loaded, DocIntelAPIKey, "MDCONVERT_TEST_KEY"))

	assert.Equal(t, "", Resolve(map[string]string{}, DocIntelAPIKey, "MDCONVERT_UNSET_KEY"))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
