package task

import (
	"errors"
	"fmt"
)

// Static errors for orchestrator operations.
var (
	// ErrAdmissionRejected is wrapped by every AdmissionError.
	ErrAdmissionRejected = errors.New("submission rejected")
	// ErrTaskNotFound is returned when no tracked task has the given ID.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotRetryable is returned when retrying a task that has not failed.
	ErrNotRetryable = errors.New("only failed tasks can be retried")
	// ErrTasksInFlight is returned by DismissAll while work is still running.
	ErrTasksInFlight = errors.New("tasks still in flight")
	// ErrTrimCancelled is returned when the user abandons trim selection.
	ErrTrimCancelled = errors.New("trim selection cancelled")
	// ErrClosed is returned once the orchestrator stopped accepting work.
	ErrClosed = errors.New("orchestrator closed")
)

// AdmissionReason identifies why a submission was rejected.
type AdmissionReason string

const (
	ReasonFileTooLarge     AdmissionReason = "file_too_large"
	ReasonConcurrencyLimit AdmissionReason = "concurrency_limit_reached"
	ReasonInvalidMediaType AdmissionReason = "invalid_media_type"
)

// AdmissionError is returned by Submit and Retry when a policy check fails.
// No task exists for a rejected submission.
type AdmissionError struct {
	Reason  AdmissionReason
	Message string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAdmissionRejected, e.Message)
}

func (e *AdmissionError) Unwrap() error {
	return ErrAdmissionRejected
}

// TrimRequiredError is returned by a TrimSelector that has no window for a
// clip longer than the untrimmed maximum. Callers show their trim UI and
// resubmit with a window.
type TrimRequiredError struct {
	DurationSeconds float64
	MaxSeconds      float64
}

func (e *TrimRequiredError) Error() string {
	return fmt.Sprintf("clip is %.1fs long, select at most %.0fs to keep", e.DurationSeconds, e.MaxSeconds)
}

// AdmissionReasonOf extracts the rejection reason from err, if any.
func AdmissionReasonOf(err error) (AdmissionReason, bool) {
	var ae *AdmissionError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return "", false
}
