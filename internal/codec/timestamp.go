package codec

import "time"

// epochFloor is 2000-01-01T00:00:00Z. A relative timestamp resolving
// before this is treated as device clock garbage and clamped.
const epochFloor = 946684800

// Resolve normalizes a measurement's raw timestamp against the server
// clock. It never fails: a zero now means the server clock was not
// trusted, and the record is resolved best-effort and flagged.
//
// Rules, in order:
//  1. absent        -> receive time
//  2. negative (-d) -> receive time minus d seconds, clamped to receive
//     time when the result falls before the epoch floor
//  3. non-negative  -> absolute Unix UTC timestamp, verbatim
func Resolve(m *Measurement, now time.Time) Resolved {
	resolved := Resolved{Measurement: *m}

	if now.IsZero() {
		now = time.Now()
		resolved.Unsynced = true
	}
	now = now.UTC().Truncate(time.Second)
	resolved.ReceivedAtUTC = now

	switch {
	case m.RawTimestamp == nil:
		resolved.TimestampUTC = now
	case *m.RawTimestamp < 0:
		// Whole-second arithmetic: converting the offset to a Duration
		// would overflow int64 nanoseconds for large magnitudes.
		sec := now.Unix() + *m.RawTimestamp
		if sec < epochFloor {
			resolved.TimestampUTC = now
			resolved.Clamped = true
		} else {
			resolved.TimestampUTC = time.Unix(sec, 0).UTC()
		}
	default:
		resolved.TimestampUTC = time.Unix(*m.RawTimestamp, 0).UTC()
	}

	return resolved
}
