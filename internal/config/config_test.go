package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_MissingFile_ShouldFallBackToDefaults(t *testing.T) {
	t.Setenv(configFileEnvKey, filepath.Join(t.TempDir(), "nope.yaml"))

	s, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5000, s.Server().Port())
	assert.Equal(t, 9090, s.Server().MetricsPort())
	assert.Equal(t, 5*time.Minute, s.Server().IdleTimeout())
	assert.Equal(t, "data", s.Storage().DataDir())
}

func Test_New_ShouldReadYamlSections(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 6000
  metrics-port: 9191
  idle-timeout-seconds: 30

storage:
  data-dir: /tmp/expenses
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	t.Setenv(configFileEnvKey, file)

	s, err := New()
	require.NoError(t, err)

	assert.Equal(t, 6000, s.Server().Port())
	assert.Equal(t, 9191, s.Server().MetricsPort())
	assert.Equal(t, 30*time.Second, s.Server().IdleTimeout())
	assert.Equal(t, "/tmp/expenses", s.Storage().DataDir())
}

func Test_New_BrokenYaml_ShouldFail(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server: [not a mapping"), 0o644))
	t.Setenv(configFileEnvKey, file)

	_, err := New()
	assert.Error(t, err)
}
