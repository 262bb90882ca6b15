package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqttcommon "thermo-bridge/common/mqtt"
	"thermo-bridge/internal/registry"
	"thermo-bridge/internal/store"
)

// ConfirmMessage is published by the host registry when the user accepts
// a discovered device.
type ConfirmMessage struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"name"`
	DeviceType  string `json:"device_type,omitempty"`
}

// ConfirmConsumer listens for device confirmations from the host registry
// and applies them: the registry flips to discovered, the store makes the
// entry survive restarts.
type ConfirmConsumer struct {
	topic       string
	qos         byte
	mqttClient  *mqttcommon.Client
	registry    *registry.Registry
	deviceStore store.DeviceStore
	logger      *zap.Logger
}

// NewConfirmConsumer creates the consumer. deviceStore may be nil when
// persistence is disabled.
func NewConfirmConsumer(topic string, qos byte, mqttClient *mqttcommon.Client, reg *registry.Registry, deviceStore store.DeviceStore, logger *zap.Logger) *ConfirmConsumer {
	return &ConfirmConsumer{
		topic:       topic,
		qos:         qos,
		mqttClient:  mqttClient,
		registry:    reg,
		deviceStore: deviceStore,
		logger:      logger,
	}
}

// Start subscribes to the confirmation topic
func (c *ConfirmConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to confirm topic: %w", err)
	}

	c.logger.Info("Confirmation consumer started",
		zap.String("topic", c.topic),
	)
	return nil
}

// Stop unsubscribes
func (c *ConfirmConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Confirmation consumer stopped")
	return nil
}

// handleMessage applies one confirmation
func (c *ConfirmConsumer) handleMessage(topic string, payload []byte) error {
	var msg ConfirmMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("Failed to unmarshal confirmation",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal confirmation: %w", err)
	}

	if msg.DeviceID == "" {
		return fmt.Errorf("confirmation without device_id")
	}

	if !c.registry.Confirm(msg.DeviceID, msg.DisplayName) {
		c.logger.Warn("Confirmation for unknown device",
			zap.String("device_id", msg.DeviceID),
		)
		return nil
	}

	c.logger.Info("Device confirmed",
		zap.String("device_id", msg.DeviceID),
		zap.String("display_name", msg.DisplayName),
	)

	if c.deviceStore != nil {
		deviceType := msg.DeviceType
		if deviceType == "" {
			if st, ok := c.registry.Get(msg.DeviceID); ok {
				deviceType = string(st.DeviceType)
			}
		}
		entry := store.DeviceEntry{
			DeviceID:    msg.DeviceID,
			DeviceType:  deviceType,
			DisplayName: msg.DisplayName,
			ConfirmedAt: time.Now().UTC(),
		}
		if err := c.deviceStore.Save(context.Background(), entry); err != nil {
			c.logger.Error("Failed to persist device entry",
				zap.String("device_id", msg.DeviceID),
				zap.Error(err),
			)
		}
	}

	return nil
}
