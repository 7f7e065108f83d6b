// Package models holds the JSON request and response bodies of the haulplan
// HTTP API.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// HealthStatus is the coarse state reported by ops endpoints.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp serializes as an RFC 3339 string with second precision and
// keeps the offset it was given.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339))
}

// UnmarshalJSON accepts null (leaving t untouched) or a quoted RFC 3339
// string. Numbers and other bare values are rejected.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a quoted RFC 3339 string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time { return time.Time(t) }

// Message is a plain confirmation body.
type Message struct {
	Message string `json:"message"`
}
