package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, "smoke.yaml", `
name: smoke
producers: 2
consumers: 5
items_per_producer: 30
capacity: 8
jitter: true
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	assert.Equal(t, 2, s.Producers)
	assert.Equal(t, 5, s.Consumers)
	assert.Equal(t, 30, s.ItemsPerProducer)
	assert.Equal(t, 8, s.Capacity)
	assert.True(t, s.Jitter)

	cfg := s.Config()
	assert.Equal(t, "smoke", cfg.Name)
	assert.Equal(t, 30, cfg.ItemsPerProducer)
	assert.True(t, cfg.Jitter)
}

func TestLoadScenario_NameDefaultsToFile(t *testing.T) {
	path := writeScenario(t, "tight-loop.yaml", `
producers: 1
consumers: 1
items_per_producer: 10
capacity: 1
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "tight-loop", s.Name)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, "typo.yaml", `
producers: 1
consumers: 1
items_pre_producer: 10
capacity: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err, "typos must fail, not silently default")
	assert.Contains(t, err.Error(), "typo.yaml")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadScenario_Malformed(t *testing.T) {
	path := writeScenario(t, "broken.yaml", "producers: [not a number")
	_, err := LoadScenario(path)
	assert.Error(t, err)
}
