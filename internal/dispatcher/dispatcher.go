package dispatcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"thermo-bridge/internal/codec"
	"thermo-bridge/internal/registry"
)

// Dispatcher runs one inbound unit of data through the pipeline:
// decode -> resolve timestamp -> registry upsert. Decode and Process are
// split so the UDP listener can acknowledge a valid record before any
// downstream work happens.
type Dispatcher struct {
	codec    codec.Codec
	registry *registry.Registry
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a dispatcher bound to one codec
func New(c codec.Codec, reg *registry.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		codec:    c,
		registry: reg,
		now:      time.Now,
		logger:   logger,
	}
}

// Decode parses one raw unit. Malformed and unsupported-type records are
// logged distinctly and returned as errors; the caller drops them (no ack
// in datagram mode, skip-to-next-line in stream mode).
func (d *Dispatcher) Decode(raw []byte) (*codec.Measurement, error) {
	m, err := d.codec.Decode(raw)
	if err != nil {
		switch {
		case codec.IsUnsupportedType(err):
			d.logger.Warn("Dropping record with unsupported type",
				zap.Error(err),
			)
		default:
			d.logger.Debug("Dropping malformed record",
				zap.Error(err),
				zap.ByteString("raw", raw),
			)
		}
		return nil, err
	}
	return m, nil
}

// Process resolves the measurement's timestamp against the current server
// clock and applies it to the registry. Duplicates are processed as
// independently valid records.
func (d *Dispatcher) Process(ctx context.Context, m *codec.Measurement) {
	resolved := codec.Resolve(m, d.now())
	if resolved.Clamped {
		d.logger.Warn("Clamped out-of-range relative timestamp",
			zap.String("device_id", m.DeviceID),
			zap.Int64p("raw_timestamp", m.RawTimestamp),
		)
	}

	_, isNew := d.registry.Upsert(ctx, resolved)

	d.logger.Debug("Processed measurement",
		zap.String("device_id", m.DeviceID),
		zap.Bool("new_device", isNew),
		zap.Int("field_count", len(m.Fields)),
		zap.Time("timestamp_utc", resolved.TimestampUTC),
	)
}
