package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	rediscommon "thermo-bridge/common/redis"
)

// Default stream and key names
const (
	DefaultDiscoveryStream   = "thermo:discovery:stream"
	DefaultMeasurementStream = "thermo:measurement:stream"
	DefaultStateKeyPrefix    = "thermo:device:"
	stateKeySuffix           = ":state"
)

// DiscoveryEvent stream payload for a first-ever-seen device
type DiscoveryEvent struct {
	EventID    string `json:"event_id"`
	DeviceID   string `json:"device_id"`
	DeviceType string `json:"device_type"`
	SeenAt     int64  `json:"seen_at"`
}

// MeasurementEvent stream payload for an updated measurement
type MeasurementEvent struct {
	EventID       string             `json:"event_id"`
	DeviceID      string             `json:"device_id"`
	Values        map[string]float64 `json:"values"`
	MeasurementTS int64              `json:"measurement_ts"`
	LastSeen      int64              `json:"last_seen"`
}

// RedisPublisher publishes events to Redis Streams and mirrors the latest
// device state to a plain key for dashboard reads.
type RedisPublisher struct {
	client            *redis.Client
	discoveryStream   string
	measurementStream string
	stateKeyPrefix    string
	stateTTL          time.Duration
	logger            *zap.Logger
}

// NewRedisPublisher creates a publisher with the given stream names.
// Empty names fall back to the defaults. stateTTL zero keeps state keys
// until overwritten.
func NewRedisPublisher(client *redis.Client, discoveryStream, measurementStream, stateKeyPrefix string, stateTTL time.Duration, logger *zap.Logger) *RedisPublisher {
	if discoveryStream == "" {
		discoveryStream = DefaultDiscoveryStream
	}
	if measurementStream == "" {
		measurementStream = DefaultMeasurementStream
	}
	if stateKeyPrefix == "" {
		stateKeyPrefix = DefaultStateKeyPrefix
	}
	return &RedisPublisher{
		client:            client,
		discoveryStream:   discoveryStream,
		measurementStream: measurementStream,
		stateKeyPrefix:    stateKeyPrefix,
		stateTTL:          stateTTL,
		logger:            logger,
	}
}

// DeviceDiscovered publishes a discovery event
func (p *RedisPublisher) DeviceDiscovered(ctx context.Context, deviceID, deviceType string) error {
	event := DiscoveryEvent{
		EventID:    uuid.NewString(),
		DeviceID:   deviceID,
		DeviceType: deviceType,
		SeenAt:     time.Now().Unix(),
	}

	streamID, err := rediscommon.PublishJSONToStream(ctx, p.client, p.discoveryStream, event)
	if err != nil {
		return fmt.Errorf("failed to publish discovery event: %w", err)
	}

	p.logger.Info("Published discovery event",
		zap.String("device_id", deviceID),
		zap.String("stream", p.discoveryStream),
		zap.String("stream_id", streamID),
	)
	return nil
}

// MeasurementUpdated publishes a measurement event and refreshes the
// device's realtime state key
func (p *RedisPublisher) MeasurementUpdated(ctx context.Context, deviceID string, values map[string]float64, measurementTS, lastSeen time.Time) error {
	event := MeasurementEvent{
		EventID:       uuid.NewString(),
		DeviceID:      deviceID,
		Values:        values,
		MeasurementTS: measurementTS.Unix(),
		LastSeen:      lastSeen.Unix(),
	}

	if _, err := rediscommon.PublishJSONToStream(ctx, p.client, p.measurementStream, event); err != nil {
		return fmt.Errorf("failed to publish measurement event: %w", err)
	}

	// Last-value mirror; failures here must not fail the event.
	stateJSON, err := json.Marshal(event)
	if err == nil {
		key := p.stateKeyPrefix + deviceID + stateKeySuffix
		if err := p.client.Set(ctx, key, stateJSON, p.stateTTL).Err(); err != nil {
			p.logger.Warn("Failed to mirror device state",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}

	p.logger.Debug("Published measurement event",
		zap.String("device_id", deviceID),
		zap.Int("field_count", len(values)),
	)
	return nil
}
