package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
env: dev
s3:
  region: eu-west-1
  bucket_name: captures
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "eu-west-1", cfg.S3Settings.Region)
	assert.Equal(t, "captures", cfg.S3Settings.BucketName)
	assert.Equal(t, "screenshots", cfg.S3Settings.ScreenshotPrefix)
	assert.Equal(t, "downloads", cfg.S3Settings.DownloadPrefix)
	assert.Equal(t, time.Hour, cfg.S3Settings.PresignExpires)
	assert.Equal(t, int64(1000), cfg.BrowserSettings.ViewportWidth)
	assert.Equal(t, int64(600), cfg.BrowserSettings.ViewportHeight)
	require.NotNil(t, cfg.KafkaSettings)
	assert.False(t, cfg.KafkaSettings.Enabled)
	require.NotNil(t, cfg.DbSettings)
	require.NotNil(t, cfg.TelemetrySettings)
	require.NotNil(t, cfg.CacheSettings)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, `
s3:
  bucket_name: from-file
`)
	t.Setenv("S3_BUCKET_NAME", "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.S3Settings.BucketName)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
