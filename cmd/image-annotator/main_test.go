package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/menta2k/image-annotator/internal/config"
)

// clearEnv isolates a test from the caller's environment and home config.
func clearEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"VISION_BACKEND", "AZURE_VISION_ENDPOINT", "AZURE_VISION_KEY", "OUTPUT_DIR", "OUTPUT_BACKEND", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func runLoadConfig(t *testing.T, args ...string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	app := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			cfg, err = loadConfig(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"image-annotator"}, args...)))
	return cfg, err
}

func TestLoadConfigFlagsOverrideBeforeValidation(t *testing.T) {
	clearEnv(t)
	out := t.TempDir()

	cfg, err := runLoadConfig(t, "--backend", "ollama", "--out", out, "--log-level", "debug", "--sequential")
	require.NoError(t, err)
	assert.Equal(t, config.BackendOllama, cfg.Vision.Backend)
	assert.Equal(t, out, cfg.Output.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Output.Concurrent)

	cfg, err = runLoadConfig(t, "--backend", "google")
	require.NoError(t, err)
	assert.Equal(t, config.BackendGoogle, cfg.Vision.Backend)
}

func TestLoadConfigValidatesResult(t *testing.T) {
	clearEnv(t)

	_, err := runLoadConfig(t)
	assert.Error(t, err, "azure without credentials")

	_, err = runLoadConfig(t, "--backend", "rekognition")
	assert.Error(t, err)
}

func TestLoadConfigUsesHomeConfig(t *testing.T) {
	clearEnv(t)

	c := config.Default()
	c.Vision.Backend = config.BackendLlamaCpp
	require.NoError(t, c.SaveToFile(config.GetConfigPath()))

	cfg, err := runLoadConfig(t)
	require.NoError(t, err)
	assert.Equal(t, config.BackendLlamaCpp, cfg.Vision.Backend)
}

func TestInputFiles(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o644))

	files, err := inputFiles(img)
	require.NoError(t, err)
	assert.Equal(t, []string{img}, files)

	files, err = inputFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{img}, files)

	_, err = inputFiles(t.TempDir())
	assert.Error(t, err)

	_, err = inputFiles(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}
