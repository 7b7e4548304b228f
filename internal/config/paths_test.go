package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATIENTHERO_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, "data"), paths.Data)
}

func TestEnsureDirs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATIENTHERO_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Data, paths.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSQLitePath(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATIENTHERO_HOME", tmp)
	paths, err := ResolvePaths()
	require.NoError(t, err)

	cfg := Defaults()
	assert.Equal(t, filepath.Join(tmp, "data", "sessions.db"), paths.SQLitePath(&cfg))

	cfg.Storage.SQLitePath = "/custom/sessions.db"
	assert.Equal(t, "/custom/sessions.db", paths.SQLitePath(&cfg))
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"server.bind", []string{"server", "bind"}, false},
		{"llm.gemini.model", []string{"llm", "gemini", "model"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{"__proto__.x", nil, true},
		{"x.constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGetSetUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"bind": "127.0.0.1:8000",
		},
	}

	val, ok := GetValueAtPath(root, []string{"server", "bind"})
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1:8000", val)

	_, ok = GetValueAtPath(root, []string{"server", "missing"})
	assert.False(t, ok)

	SetValueAtPath(root, []string{"llm", "gemini", "model"}, "gemini-2.5-flash")
	val, ok = GetValueAtPath(root, []string{"llm", "gemini", "model"})
	assert.True(t, ok)
	assert.Equal(t, "gemini-2.5-flash", val)

	assert.True(t, UnsetValueAtPath(root, []string{"server", "bind"}))
	_, ok = GetValueAtPath(root, []string{"server", "bind"})
	assert.False(t, ok)
	assert.False(t, UnsetValueAtPath(root, []string{"server", "nonexistent"}))
}
