package codec

import "time"

// RecordType canonical device-type tag
type RecordType string

// TypeHT temperature + humidity sensor
const TypeHT RecordType = "ht"

// Canonical field names
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
)

// wireRecordTypes maps on-wire type codes to canonical record types.
// Firmware variants send "11", "ht" or "HT" for the same device class.
var wireRecordTypes = map[string]RecordType{
	"11": TypeHT,
	"ht": TypeHT,
	"HT": TypeHT,
}

// recordFieldKeys is the per-type allow-list of NDJSON data keys.
// Keys not listed here are ignored, not errors.
var recordFieldKeys = map[RecordType]map[string]string{
	TypeHT: {
		"t": FieldTemperature,
		"h": FieldHumidity,
	},
}

// Measurement is one decoded record, before timestamp resolution.
// RawTimestamp nil means the device sent no timestamp. Fields holds only
// the values actually present on the wire; a record with no fields is a
// valid heartbeat.
type Measurement struct {
	DeviceID     string
	Type         RecordType
	RawTimestamp *int64
	Fields       map[string]float64
}

// Resolved is a Measurement with its timestamp normalized to UTC.
// TimestampUTC and ReceivedAtUTC are always populated.
type Resolved struct {
	Measurement
	TimestampUTC  time.Time
	ReceivedAtUTC time.Time
	// Clamped marks a relative timestamp that pointed before the epoch
	// floor and was pulled back to receive time.
	Clamped bool
	// Unsynced marks a record resolved without a trusted server clock.
	Unsynced bool
}

// Codec decodes one inbound unit (datagram or line) into a Measurement.
// A listener instance uses exactly one codec for its lifetime.
type Codec interface {
	Decode(raw []byte) (*Measurement, error)
}
