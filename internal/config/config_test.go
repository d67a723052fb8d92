package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasmstack/internal/config"
	"wasmstack/pkg/stack"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wasmstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
max_call_depth: 64
max_steps: 10000
invoke: fac
args: ["10"]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MaxCallDepth)
	assert.Equal(t, stack.DefaultMaxHeight, cfg.MaxStackHeight)
	assert.Equal(t, 10000, cfg.MaxSteps)
	assert.Equal(t, "fac", cfg.Invoke)
	assert.Equal(t, []string{"10"}, cfg.Args)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := config.Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		content  string
		expected string
	}{
		{"max_depth: 3\n", "field max_depth not found"},
		{"max_steps: -1\n", "max_steps must not be negative"},
		{"max_call_depth: [1]\n", "cannot unmarshal"},
	}

	for _, test := range tests {
		_, err := config.Load(writeFile(t, test.content))
		require.Error(t, err, test.content)
		assert.Contains(t, err.Error(), test.expected, test.content)
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
