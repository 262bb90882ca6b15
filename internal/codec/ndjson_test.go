package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDJSONDecode_Valid(t *testing.T) {
	m, err := NDJSONCodec{}.Decode([]byte(`{"device":"ABC123","type":"ht","data":{"t":21.3,"h":45.6}}`))

	require.NoError(t, err)
	assert.Equal(t, "ABC123", m.DeviceID)
	assert.Equal(t, TypeHT, m.Type)
	assert.Nil(t, m.RawTimestamp)
	assert.Equal(t, 21.3, m.Fields[FieldTemperature])
	assert.Equal(t, 45.6, m.Fields[FieldHumidity])
}

func TestNDJSONDecode_UnknownDataKeysIgnored(t *testing.T) {
	m, err := NDJSONCodec{}.Decode([]byte(`{"device":"ABC123","type":"ht","data":{"t":21.3,"battery":87}}`))

	require.NoError(t, err)
	assert.Equal(t, 21.3, m.Fields[FieldTemperature])
	_, hasBattery := m.Fields["battery"]
	assert.False(t, hasBattery)
	_, hasHumidity := m.Fields[FieldHumidity]
	assert.False(t, hasHumidity)
}

func TestNDJSONDecode_MissingDataIsHeartbeat(t *testing.T) {
	m, err := NDJSONCodec{}.Decode([]byte(`{"device":"ABC123","type":"ht"}`))

	require.NoError(t, err)
	assert.Empty(t, m.Fields)
}

func TestNDJSONDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid JSON", `{"device":"ABC123"`},
		{"missing device", `{"type":"ht","data":{"t":21.3}}`},
		{"missing type", `{"device":"ABC123","data":{"t":21.3}}`},
		{"not an object", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NDJSONCodec{}.Decode([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, IsMalformed(err))
		})
	}
}

func TestNDJSONDecode_UnsupportedType(t *testing.T) {
	_, err := NDJSONCodec{}.Decode([]byte(`{"device":"ABC123","type":"co2","data":{"ppm":420}}`))

	require.Error(t, err)
	assert.True(t, IsUnsupportedType(err))
}
