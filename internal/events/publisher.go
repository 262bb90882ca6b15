package events

import (
	"context"
	"time"
)

// Publisher is the outbound port to the host application's registry.
// DeviceDiscovered fires once per first-ever-seen device; MeasurementUpdated
// fires on every valid measurement that carries at least one field.
type Publisher interface {
	DeviceDiscovered(ctx context.Context, deviceID, deviceType string) error
	MeasurementUpdated(ctx context.Context, deviceID string, values map[string]float64, measurementTS, lastSeen time.Time) error
}

// Nop discards all events. Used when no event sink is configured.
type Nop struct{}

func (Nop) DeviceDiscovered(ctx context.Context, deviceID, deviceType string) error {
	return nil
}

func (Nop) MeasurementUpdated(ctx context.Context, deviceID string, values map[string]float64, measurementTS, lastSeen time.Time) error {
	return nil
}

// Multi fans events out to several publishers. All sinks are attempted;
// the last error wins.
type Multi []Publisher

func (m Multi) DeviceDiscovered(ctx context.Context, deviceID, deviceType string) error {
	var lastErr error
	for _, p := range m {
		if err := p.DeviceDiscovered(ctx, deviceID, deviceType); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (m Multi) MeasurementUpdated(ctx context.Context, deviceID string, values map[string]float64, measurementTS, lastSeen time.Time) error {
	var lastErr error
	for _, p := range m {
		if err := p.MeasurementUpdated(ctx, deviceID, values, measurementTS, lastSeen); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
