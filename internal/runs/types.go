// Package runs records one entry per bank pipeline run so failures can be
// inspected after the fact.
package runs

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// MaxErrorLen caps the stored error message.
const MaxErrorLen = 2000

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Run is one recorded bank run.
type Run struct {
	RunID      string
	Bank       string
	Sheet      string
	Status     Status
	StartedAt  time.Time
	FinishedAt *time.Time

	// Extracted is the number of records extracted.
	Extracted int
	Published bool
	// FailedState is the pipeline state the run failed in, if any.
	FailedState string
	Error       string
}

// Outcome is what a finished run reports.
type Outcome struct {
	Status      Status
	Extracted   int
	Published   bool
	FailedState string
	Err         error
}

// Filter narrows List results. Results are newest first.
type Filter struct {
	Bank   string
	Status Status
	Limit  int
}

// Store persists runs.
type Store interface {
	// Start records a RUNNING run and returns its ID.
	Start(ctx context.Context, bank, sheet string) (string, error)
	// Finish records the outcome of a started run.
	Finish(ctx context.Context, runID string, out Outcome) error
	List(ctx context.Context, filter Filter) ([]*Run, error)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ErrorMessage renders err for storage, truncated to at most MaxErrorLen
// bytes without splitting a UTF-8 sequence.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= MaxErrorLen {
		return msg
	}
	cut := MaxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
