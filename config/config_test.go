package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "sessionkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func newTestConfig(target any, dir string) *Config {
	v := viper.New()
	validate := validator.New()
	return New(target,
		WithViper(v),
		WithValidator(validate),
		WithLoader(NewFileLoader("sessionkit.yaml", []string{dir}, v, validate)),
	)
}

func TestLoadWithDefaults(t *testing.T) {
	dir := writeConfig(t, "session:\n  timeout_minutes: 60\n")

	var settings Settings
	require.NoError(t, newTestConfig(&settings, dir).Load())

	// Overridden value
	assert.Equal(t, 60, settings.Session.TimeoutMinutes)
	// Defaults for everything the file does not name
	assert.Equal(t, 5, settings.Session.WarningMinutes)
	assert.Equal(t, 30, settings.Session.BackgroundTimeoutMinutes)
	assert.Equal(t, 50, settings.Queue.Capacity)
	assert.Equal(t, 3, settings.Queue.MaxRetries)
	assert.Equal(t, "sqlite", settings.Store.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	var settings Settings
	assert.Error(t, newTestConfig(&settings, t.TempDir()).Load())
}

func TestValidationRejectsBadValues(t *testing.T) {
	dir := writeConfig(t, "session:\n  timeout_minutes: -5\n")

	var settings Settings
	assert.Error(t, newTestConfig(&settings, dir).Load())
}

func TestApplyDefaultsIdempotent(t *testing.T) {
	var s Settings
	s.ApplyDefaults()
	s.ApplyDefaults()

	assert.Equal(t, 120, s.Session.TimeoutMinutes)
	assert.Equal(t, 20, s.Queue.FailedListSize)
	assert.Equal(t, "cache:", s.Cache.Namespace)
}
