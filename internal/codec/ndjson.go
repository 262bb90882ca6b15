package codec

import "encoding/json"

// ndjsonRecord is the wire shape of one NDJSON line:
//
//	{"device":"<id>","type":"<type>","data":{"t":21.3,"h":45.6}}
type ndjsonRecord struct {
	Device string             `json:"device"`
	Type   string             `json:"type"`
	Data   map[string]float64 `json:"data"`
}

// NDJSONCodec decodes one newline-delimited JSON line. The stream format
// carries no timestamp, so every record resolves to receive time.
type NDJSONCodec struct{}

// Decode parses one complete line (newline already stripped).
func (NDJSONCodec) Decode(raw []byte) (*Measurement, error) {
	var rec ndjsonRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}

	if rec.Device == "" {
		return nil, malformed("missing device key")
	}
	if rec.Type == "" {
		return nil, malformed("missing type key")
	}

	recordType, ok := wireRecordTypes[rec.Type]
	if !ok {
		return nil, &UnsupportedRecordTypeError{Code: rec.Type}
	}

	m := &Measurement{
		DeviceID: rec.Device,
		Type:     recordType,
		Fields:   make(map[string]float64),
	}

	// Only allow-listed keys are taken; anything else is ignored.
	allowed := recordFieldKeys[recordType]
	for key, value := range rec.Data {
		if name, ok := allowed[key]; ok {
			m.Fields[name] = value
		}
	}

	return m, nil
}
