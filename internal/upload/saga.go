package upload

import (
	"errors"
	"fmt"
	"time"

	"github.com/alkime/consults/internal/recording"
)

// Step is a commit point of the finalize saga.
type Step string

const (
	StepCreate Step = "create"
	StepUpload Step = "upload"
	StepPatch  Step = "patch"
	StepDone   Step = "done"
)

var (
	// ErrRecordCreationFailed means no backend record exists yet.
	ErrRecordCreationFailed = errors.New("record creation failed")
	// ErrUploadFailed means a processing record exists but its payload is not stored.
	ErrUploadFailed = errors.New("upload failed")
	// ErrPatchFailed means the payload is stored but the record was not completed.
	ErrPatchFailed = errors.New("patch failed")
	// ErrEmptyRecording is returned when a capture holds no audio.
	ErrEmptyRecording = errors.New("recording contains no audio")

	errFinalize = errors.New("finalize failed")
)

// Saga is the resume point of one finalize. Each committed step records what
// later steps need, so a retry continues at Step instead of starting over.
type Saga struct {
	ID              string         `json:"id"`
	Step            Step           `json:"step"`
	Title           string         `json:"title"`
	AppointmentID   string         `json:"appointmentId,omitempty"`
	DurationSeconds int            `json:"durationSeconds"`
	Filename        string         `json:"filename"`
	RecordID        string         `json:"recordId,omitempty"`
	Blob            recording.Blob `json:"blob"`
	LastError       string         `json:"lastError,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// NeedsPayload reports whether the audio payload is still required to finish.
func (s Saga) NeedsPayload() bool {
	return s.Step == StepCreate || s.Step == StepUpload
}

// FinalizeError reports which saga step failed. It unwraps to both the step
// sentinel and the cause.
type FinalizeError struct {
	Step Step
	Saga Saga
	Err  error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("%s: %v", stepSentinel(e.Step), e.Err)
}

func (e *FinalizeError) Unwrap() []error {
	return []error{stepSentinel(e.Step), e.Err}
}

func stepSentinel(step Step) error {
	switch step {
	case StepCreate:
		return ErrRecordCreationFailed
	case StepUpload:
		return ErrUploadFailed
	case StepPatch:
		return ErrPatchFailed
	case StepDone:
		return errFinalize
	default:
		return errFinalize
	}
}
