package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookNotifier_DeviceDiscovered(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, zap.NewNop())
	require.NoError(t, n.DeviceDiscovered(context.Background(), "RT001", "ht"))

	assert.Equal(t, "RT001", received["device_id"])
	assert.Equal(t, "ht", received["device_type"])
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, zap.NewNop())
	assert.Error(t, n.DeviceDiscovered(context.Background(), "RT001", "ht"))
}

func TestWebhookNotifier_MeasurementUpdatedIsNoop(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1", zap.NewNop())
	assert.NoError(t, n.MeasurementUpdated(context.Background(), "RT001", nil, time.Now(), time.Now()))
}
