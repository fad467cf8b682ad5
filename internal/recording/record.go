// Package recording defines the consultation recording data model shared by
// the capture pipeline, the backend client, and the portal backend.
package recording

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("recording not found")
	// ErrAlreadyCompleted is returned when completing a record a second time.
	ErrAlreadyCompleted = errors.New("recording already completed")
)

// Status describes where a recording is in its backend lifecycle.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Record is the backend-owned recording record mirrored on the client.
type Record struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Status          Status    `json:"status"`
	AppointmentID   string    `json:"appointmentId,omitempty"`
	DurationSeconds int       `json:"durationSeconds"`
	FileSizeBytes   int64     `json:"fileSizeBytes"`
	FileURL         string    `json:"fileUrl,omitempty"`
	Transcript      string    `json:"transcript,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasAudio reports whether the record points at a playable stored file.
func (r Record) HasAudio() bool {
	return r.Status == StatusCompleted && r.FileURL != ""
}

// Validate checks the status/file invariants: a completed record carries a
// file URL and a positive size, a processing record carries no file URL.
func (r Record) Validate() error {
	switch r.Status {
	case StatusCompleted:
		if r.FileURL == "" {
			return errors.New("completed recording must have a file url")
		}
		if r.FileSizeBytes <= 0 {
			return errors.New("completed recording must have a positive file size")
		}
	case StatusProcessing:
		if r.FileURL != "" {
			return errors.New("processing recording must not have a file url")
		}
	default:
		return fmt.Errorf("unknown recording status %q", r.Status)
	}

	return nil
}

// CreateRequest is the payload for creating a processing record.
type CreateRequest struct {
	Title           string `json:"title" binding:"required"`
	AppointmentID   string `json:"appointmentId,omitempty"`
	DurationSeconds int    `json:"durationSeconds" binding:"gte=0"`
}

// Completion is the patch applied once the payload is in object storage.
type Completion struct {
	FileURL         string `json:"fileUrl" binding:"required,url"`
	FileSizeBytes   int64  `json:"fileSizeBytes" binding:"required,gt=0"`
	DurationSeconds int    `json:"durationSeconds" binding:"gte=0"`
	Status          Status `json:"status" binding:"required,eq=completed"`
}

// Blob is the result of storing a payload in object storage.
type Blob struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"sizeBytes"`
}
