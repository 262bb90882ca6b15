package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"thermo-bridge/internal/codec"
	"thermo-bridge/internal/events"
)

// DeviceState last-known state for one device. Values returned from the
// registry are snapshots; callers never share memory with the registry.
type DeviceState struct {
	DeviceID      string             `json:"device_id"`
	DeviceType    codec.RecordType   `json:"device_type"`
	DisplayName   string             `json:"display_name,omitempty"`
	LastValues    map[string]float64 `json:"last_values"`
	MeasurementTS time.Time          `json:"measurement_ts_utc"`
	LastSeen      time.Time          `json:"last_seen_utc"`
	Discovered    bool               `json:"discovered"`
}

// Registry in-memory device table. Devices are created on first contact
// and never deleted by the core; deletion is the host registry's call.
// Per-device read-modify-write is atomic under a short-held lock, and
// events are emitted after the lock is released so a slow sink cannot
// stall ingestion.
type Registry struct {
	mu        sync.Mutex
	devices   map[string]*DeviceState
	publisher events.Publisher
	logger    *zap.Logger
}

// New creates an empty registry publishing to the given sink
func New(publisher events.Publisher, logger *zap.Logger) *Registry {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Registry{
		devices:   make(map[string]*DeviceState),
		publisher: publisher,
		logger:    logger,
	}
}

// Upsert applies one resolved measurement. First contact creates the
// device undiscovered and reports isNew. Incoming fields overwrite stored
// values per-field; an absent field leaves the stored value untouched.
// LastSeen always takes the receive time, MeasurementTS the resolved time.
func (r *Registry) Upsert(ctx context.Context, rm codec.Resolved) (DeviceState, bool) {
	r.mu.Lock()

	st, ok := r.devices[rm.DeviceID]
	isNew := !ok
	if isNew {
		st = &DeviceState{
			DeviceID:   rm.DeviceID,
			DeviceType: rm.Type,
			LastValues: make(map[string]float64),
		}
		r.devices[rm.DeviceID] = st
	}

	for name, value := range rm.Fields {
		st.LastValues[name] = value
	}
	st.MeasurementTS = rm.TimestampUTC
	st.LastSeen = rm.ReceivedAtUTC

	snapshot := st.snapshot()
	r.mu.Unlock()

	if isNew {
		r.logger.Info("Discovered new device",
			zap.String("device_id", rm.DeviceID),
			zap.String("device_type", string(rm.Type)),
		)
		if err := r.publisher.DeviceDiscovered(ctx, rm.DeviceID, string(rm.Type)); err != nil {
			r.logger.Warn("Failed to publish discovery event",
				zap.String("device_id", rm.DeviceID),
				zap.Error(err),
			)
		}
	}

	// A heartbeat with no populated fields updates liveness only.
	if len(rm.Fields) > 0 {
		if err := r.publisher.MeasurementUpdated(ctx, rm.DeviceID, snapshot.LastValues, snapshot.MeasurementTS, snapshot.LastSeen); err != nil {
			r.logger.Warn("Failed to publish measurement event",
				zap.String("device_id", rm.DeviceID),
				zap.Error(err),
			)
		}
	}

	return snapshot, isNew
}

// Confirm marks a device as confirmed by the host registry. Later upserts
// never regress the flag. Returns false for unknown devices.
func (r *Registry) Confirm(deviceID, displayName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.devices[deviceID]
	if !ok {
		return false
	}
	st.Discovered = true
	if displayName != "" {
		st.DisplayName = displayName
	}
	return true
}

// Restore pre-seeds a confirmed device from the persistent store. No
// events are emitted; the host registry already knows these devices.
func (r *Registry) Restore(deviceID string, deviceType codec.RecordType, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[deviceID]; ok {
		return
	}
	r.devices[deviceID] = &DeviceState{
		DeviceID:    deviceID,
		DeviceType:  deviceType,
		DisplayName: displayName,
		LastValues:  make(map[string]float64),
		Discovered:  true,
	}
}

// Get returns a snapshot of one device
func (r *Registry) Get(deviceID string) (DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.devices[deviceID]
	if !ok {
		return DeviceState{}, false
	}
	return st.snapshot(), true
}

// List returns snapshots of all devices, ordered by device id
func (r *Registry) List() []DeviceState {
	r.mu.Lock()
	states := make([]DeviceState, 0, len(r.devices))
	for _, st := range r.devices {
		states = append(states, st.snapshot())
	}
	r.mu.Unlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].DeviceID < states[j].DeviceID
	})
	return states
}

func (s *DeviceState) snapshot() DeviceState {
	copied := *s
	copied.LastValues = make(map[string]float64, len(s.LastValues))
	for k, v := range s.LastValues {
		copied.LastValues[k] = v
	}
	return copied
}
