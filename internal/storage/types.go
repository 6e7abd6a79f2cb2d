package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SubmissionEntry records the outcome of one group submission.
// Keep it compact and schema-stable.
type SubmissionEntry struct {
	RunID         string    `json:"run_id"`
	GroupID       string    `json:"group_id"`
	Field         string    `json:"field"`
	Status        string    `json:"status"`
	Response      string    `json:"response,omitempty"`
	RequestNumber string    `json:"request_number,omitempty"`
	Submit        time.Time `json:"submit"`
	Expire        time.Time `json:"expire"`
	SubRequests   int       `json:"sub_requests"`
	RecordedAt    time.Time `json:"recorded_at"`
}
