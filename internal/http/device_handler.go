package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"thermo-bridge/internal/registry"
	"thermo-bridge/internal/store"
)

const devicesPathPrefix = "/bridge/api/v1/devices"

// DeviceHandler read-only device state API plus the HTTP face of the
// host registry's confirm call.
type DeviceHandler struct {
	registry    *registry.Registry
	deviceStore store.DeviceStore
	logger      *zap.Logger
}

// NewDeviceHandler creates the handler. deviceStore may be nil when
// persistence is disabled.
func NewDeviceHandler(reg *registry.Registry, deviceStore store.DeviceStore, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		registry:    reg,
		deviceStore: deviceStore,
		logger:      logger,
	}
}

// ServeHTTP dispatches within the devices subtree
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == devicesPathPrefix && r.Method == http.MethodGet:
		h.ListDevices(w, r)
	case strings.HasPrefix(r.URL.Path, devicesPathPrefix+"/") && strings.HasSuffix(r.URL.Path, "/confirm") && r.Method == http.MethodPost:
		h.ConfirmDevice(w, r)
	case strings.HasPrefix(r.URL.Path, devicesPathPrefix+"/") && r.Method == http.MethodGet:
		h.GetDevice(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListDevices returns a snapshot of all known devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.registry.List()))
}

// GetDevice returns one device's snapshot
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimPrefix(r.URL.Path, devicesPathPrefix+"/")
	if deviceID == "" || strings.Contains(deviceID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	st, ok := h.registry.Get(deviceID)
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("device not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(st))
}

type confirmRequest struct {
	Name string `json:"name"`
}

// ConfirmDevice marks a discovered device as confirmed by the host
// registry and persists the entry.
func (h *DeviceHandler) ConfirmDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, devicesPathPrefix+"/"), "/confirm")
	if deviceID == "" || strings.Contains(deviceID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req confirmRequest
	if r.Body != nil {
		// Empty body is fine: confirmation without a display name.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if !h.registry.Confirm(deviceID, req.Name) {
		writeJSON(w, http.StatusNotFound, Fail("device not found"))
		return
	}

	if h.deviceStore != nil {
		st, _ := h.registry.Get(deviceID)
		entry := store.DeviceEntry{
			DeviceID:    deviceID,
			DeviceType:  string(st.DeviceType),
			DisplayName: req.Name,
			ConfirmedAt: time.Now().UTC(),
		}
		if err := h.deviceStore.Save(context.Background(), entry); err != nil {
			h.logger.Error("Failed to persist device entry",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}

	st, _ := h.registry.Get(deviceID)
	writeJSON(w, http.StatusOK, Ok(st))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
