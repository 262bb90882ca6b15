package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeBoth, cfg.ListenMode)
	assert.Equal(t, DefaultUDPPort, cfg.UDPPort)
	assert.Equal(t, DefaultTCPPort, cfg.TCPPort)
	assert.Equal(t, 5*time.Minute, cfg.TCPIdleTimeout)
	assert.True(t, cfg.HTTPEnabled)
	assert.False(t, cfg.RedisEnabled)
	assert.False(t, cfg.MQTTEnabled)
	assert.False(t, cfg.DatabaseEnabled)
	assert.Equal(t, "thermo/device/confirm", cfg.ConfirmTopic)
	assert.True(t, cfg.UDPEnabled())
	assert.True(t, cfg.TCPEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_MODE", "udp")
	t.Setenv("UDP_PORT", "9999")
	t.Setenv("TCP_IDLE_TIMEOUT", "30s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeUDP, cfg.ListenMode)
	assert.Equal(t, 9999, cfg.UDPPort)
	assert.Equal(t, 30*time.Second, cfg.TCPIdleTimeout)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.UDPEnabled())
	assert.False(t, cfg.TCPEnabled())
}

func TestLoad_InvalidListenMode(t *testing.T) {
	t.Setenv("LISTEN_MODE", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WebhookRequiresURL(t *testing.T) {
	t.Setenv("WEBHOOK_ENABLED", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_PortRange(t *testing.T) {
	cfg := &Config{ListenMode: ModeUDP, UDPPort: 70000}
	assert.Error(t, cfg.Validate())
}
