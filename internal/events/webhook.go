package events

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier POSTs discovery events to the host registry so it can
// open a discovery flow for the new device. Measurement updates travel
// over the stream publisher, not the webhook.
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier creates a notifier for the given discovery URL
func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// DeviceDiscovered notifies the host registry about a new device
func (n *WebhookNotifier) DeviceDiscovered(ctx context.Context, deviceID, deviceType string) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"device_id":   deviceID,
			"device_type": deviceType,
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("discovery webhook failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("discovery webhook returned status %d", resp.StatusCode())
	}

	n.logger.Info("Notified host registry of new device",
		zap.String("device_id", deviceID),
		zap.String("url", n.url),
	)
	return nil
}

// MeasurementUpdated is a no-op for the webhook path
func (n *WebhookNotifier) MeasurementUpdated(ctx context.Context, deviceID string, values map[string]float64, measurementTS, lastSeen time.Time) error {
	return nil
}
