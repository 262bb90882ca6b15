package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestResolve_Absent(t *testing.T) {
	now := time.Unix(1768503477, 0)
	resolved := Resolve(&Measurement{DeviceID: "RT001", Type: TypeHT}, now)

	assert.Equal(t, int64(1768503477), resolved.TimestampUTC.Unix())
	assert.Equal(t, int64(1768503477), resolved.ReceivedAtUTC.Unix())
	assert.False(t, resolved.Clamped)
	assert.False(t, resolved.Unsynced)
}

func TestResolve_Relative(t *testing.T) {
	now := time.Unix(1768503477, 0)
	m := &Measurement{DeviceID: "RT001", Type: TypeHT, RawTimestamp: int64Ptr(-40)}

	resolved := Resolve(m, now)

	assert.Equal(t, int64(1768503437), resolved.TimestampUTC.Unix())
	assert.Equal(t, int64(1768503477), resolved.ReceivedAtUTC.Unix())
	assert.False(t, resolved.Clamped)
}

func TestResolve_Absolute(t *testing.T) {
	m := &Measurement{DeviceID: "RT001", Type: TypeHT, RawTimestamp: int64Ptr(1700000000)}

	resolved := Resolve(m, time.Unix(1768503477, 0))

	assert.Equal(t, int64(1700000000), resolved.TimestampUTC.Unix())
}

func TestResolve_RelativeClampedToEpochFloor(t *testing.T) {
	now := time.Unix(1768503477, 0)
	// Points decades before 2000-01-01.
	m := &Measurement{DeviceID: "RT001", Type: TypeHT, RawTimestamp: int64Ptr(-2000000000)}

	resolved := Resolve(m, now)

	assert.Equal(t, int64(1768503477), resolved.TimestampUTC.Unix())
	assert.True(t, resolved.Clamped)
}

func TestResolve_ExtremeRelativeMagnitudeClamps(t *testing.T) {
	now := time.Unix(1768503477, 0)

	// Magnitudes far beyond any plausible device age, including ones
	// whose nanosecond conversion would wrap around int64.
	for _, raw := range []int64{-18446744073, -10000000000000, -9223372036854775808} {
		m := &Measurement{DeviceID: "RT001", Type: TypeHT, RawTimestamp: int64Ptr(raw)}

		resolved := Resolve(m, now)

		assert.Equal(t, int64(1768503477), resolved.TimestampUTC.Unix(), "raw %d", raw)
		assert.True(t, resolved.Clamped, "raw %d", raw)
	}
}

func TestResolve_ZeroNowFallsBackUnsynced(t *testing.T) {
	before := time.Now().Add(-time.Second)
	resolved := Resolve(&Measurement{DeviceID: "RT001", Type: TypeHT}, time.Time{})

	assert.True(t, resolved.Unsynced)
	assert.False(t, resolved.TimestampUTC.IsZero())
	assert.True(t, resolved.TimestampUTC.After(before.Add(-time.Second)))
	assert.Equal(t, time.UTC, resolved.TimestampUTC.Location())
}
