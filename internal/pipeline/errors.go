package pipeline

import (
	"errors"
	"fmt"
)

// ErrSessionAcquire marks a failure to obtain a browser session. Nothing was
// started, so there is nothing to clean up, and RunAll stops.
var ErrSessionAcquire = errors.New("session acquisition failed")

// ErrPublishFailed wraps a spreadsheet IO failure during publish.
var ErrPublishFailed = errors.New("publish failed")

// StepError is a failed login, navigate, extract or publish step. The run
// for that bank is abandoned after cleanup.
type StepError struct {
	Bank string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed: %v", e.Bank, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
