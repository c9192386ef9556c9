package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "/api", cfg.ServerBasePath)
	assert.Equal(t, "openai", cfg.AIClientType)
	assert.Equal(t, "gpt-4", cfg.AIModel)
	assert.Equal(t, 3, cfg.AIMaxRetries)
	assert.True(t, cfg.StrictChoiceMode)
	assert.False(t, cfg.PrefetchEnabled)
}

func TestLoad_RequiresAPIKeyForOpenAI(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("AI_CLIENT_TYPE", "openai")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_OllamaWithoutKey(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("AI_CLIENT_TYPE", "ollama")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AIClientType)
}

func TestLoad_RejectsZeroRetries(t *testing.T) {
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("AI_MAX_RETRIES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetMaskedDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.internal",
		DBPort:     "5432",
		DBUser:     "tinytales",
		DBPassword: "hunter2",
		DBName:     "tinytales",
		DBSSLMode:  "disable",
	}

	masked := cfg.GetMaskedDSN()
	assert.NotContains(t, masked, "hunter2")
	assert.Contains(t, masked, "tinytales:********@db.internal")
}
