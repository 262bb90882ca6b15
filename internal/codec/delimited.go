package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Delimited wire layout for type "11"/"ht":
//
//	<ts>;<type>;<device_id>;<temp_x10>;<hum_x10>
//
// Empty string between delimiters means the field is absent. Trailing
// fields beyond the last recognized one are tolerated; a short record is
// an error.
const delimitedFieldCount = 5

// DelimitedCodec decodes the semicolon-separated datagram format.
type DelimitedCodec struct{}

// Decode parses one datagram body.
func (DelimitedCodec) Decode(raw []byte) (*Measurement, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, malformed("empty record")
	}

	parts := strings.Split(text, ";")
	// Structure before vocabulary: a short record is malformed even when
	// its type code is also unknown.
	if len(parts) < delimitedFieldCount {
		return nil, malformed("expected %d fields, got %d", delimitedFieldCount, len(parts))
	}

	typeCode := strings.TrimSpace(parts[1])
	recordType, ok := wireRecordTypes[typeCode]
	if !ok {
		return nil, &UnsupportedRecordTypeError{Code: typeCode}
	}

	deviceID := strings.TrimSpace(parts[2])
	if deviceID == "" {
		return nil, malformed("empty device id")
	}

	m := &Measurement{
		DeviceID: deviceID,
		Type:     recordType,
		Fields:   make(map[string]float64),
	}

	if rawTS := strings.TrimSpace(parts[0]); rawTS != "" {
		ts, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil {
			return nil, malformed("non-numeric timestamp %q", rawTS)
		}
		m.RawTimestamp = &ts
	}

	if err := parseScaledField(parts[3], FieldTemperature, m.Fields); err != nil {
		return nil, err
	}
	if err := parseScaledField(parts[4], FieldHumidity, m.Fields); err != nil {
		return nil, err
	}

	return m, nil
}

// parseScaledField parses a value-times-ten integer into a one-decimal value.
func parseScaledField(raw, name string, fields map[string]float64) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return malformed("non-numeric %s %q", name, s)
	}
	fields[name] = float64(v) / 10.0
	return nil
}

// EncodeAck builds the "<utc_ts>;1" acknowledgment. The timestamp is the
// server's current time at send, never the measurement's time.
func EncodeAck(now time.Time) []byte {
	return []byte(fmt.Sprintf("%d;1", now.UTC().Unix()))
}
