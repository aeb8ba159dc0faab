// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/balance.report/internal/sample"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// DecodeJSON unmarshals a recorded response body into v, failing the test
// on malformed JSON.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// SwaySample builds a deterministic sample for test fixtures; consecutive
// indices produce distinct payloads so duplicate filtering stays out of
// the way.
func SwaySample(i int) sample.Sample {
	f := float64(i)
	return sample.Sample{
		CogX: f, CogY: -f,
		Sensor1: 17 + f, Sensor2: 18 + f, Sensor3: 16 + f, Sensor4: 17.5 + f,
		Battery: 0.85, Timestamp: f / 44,
	}
}
