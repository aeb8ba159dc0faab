// Package engine implements the acquisition-and-buffering core: duplicate
// rejection, the dual session/trial buffer store, and the fixed-rate
// polling loop.
package engine

import "github.com/banshee-data/balance.report/internal/sample"

// Duplicate reports whether candidate repeats the sensor payload of the
// most recently stored sample. Only the COG and corner-sensor fields are
// compared; battery and timestamp are excluded, since a board polled faster
// than it refreshes yields identical payloads that differ only in read
// time. The guard is stateless: callers pass the last stored sample in
// explicitly.
func Duplicate(candidate, last sample.Sample) bool {
	return candidate.CogX == last.CogX &&
		candidate.CogY == last.CogY &&
		candidate.Sensor1 == last.Sensor1 &&
		candidate.Sensor2 == last.Sensor2 &&
		candidate.Sensor3 == last.Sensor3 &&
		candidate.Sensor4 == last.Sensor4
}
