package chatclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitormoschetta/chatrelay/internal/config"
)

func TestNew_SelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.UpstreamURL = "http://sidecar:8080"

	c, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Upstream{}, c)

	cfg.Backend = config.BackendGemini
	c, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, c)

	cfg.Backend = "browser"
	_, err = New(cfg)
	require.Error(t, err)
}
