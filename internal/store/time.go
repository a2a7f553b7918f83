package store

import "time"

// appleEpoch is 2001-01-01T00:00:00Z in Unix seconds. Message dates are
// stored as nanoseconds since this epoch.
const appleEpoch int64 = 978307200

// AppleTime converts a store-native message date to wall-clock time.
func AppleTime(ns int64) time.Time {
	return time.Unix(appleEpoch+ns/1e9, ns%1e9).UTC()
}

// ToAppleNS converts wall-clock time to the store-native date representation.
func ToAppleNS(t time.Time) int64 {
	return (t.Unix()-appleEpoch)*1e9 + int64(t.Nanosecond())
}
