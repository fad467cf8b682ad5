// Package upload turns a stopped recording session into a completed backend
// record: create the record, store the payload, then patch the record.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkime/consults/internal/audio"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/session"
	"github.com/alkime/consults/pkg/channels"
	"github.com/google/uuid"
)

// RecordingAPI is the backend surface the saga drives.
type RecordingAPI interface {
	CreateRecording(ctx context.Context, req recording.CreateRequest) (*recording.Record, error)
	PatchRecording(ctx context.Context, id string, c recording.Completion) (*recording.Record, error)
	GetRecording(ctx context.Context, id string) (*recording.Record, error)
}

// BlobStore stores a finalized payload and returns its durable locator.
type BlobStore interface {
	UploadBlob(ctx context.Context, payload []byte, filename string) (recording.Blob, error)
}

// Progress is published as a saga enters each step, and once more with
// StepDone when it completes.
type Progress struct {
	SagaID string
	Step   Step
}

type Coordinator struct {
	api     RecordingAPI
	store   BlobStore
	journal Journal
	format  audio.Format
	logger  *slog.Logger
	now     func() time.Time
	events  *channels.Broadcaster[Progress]
}

type Option func(*Coordinator)

// WithJournal spools failed sagas so RetryPending can resume them.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithFormat sets the payload format, used for the stored filename.
func WithFormat(f audio.Format) Option {
	return func(c *Coordinator) { c.format = f }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(api RecordingAPI, store BlobStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:    api,
		store:  store,
		format: audio.FormatMP3,
		logger: slog.Default(),
		now:    time.Now,
		events: channels.NewBroadcaster[Progress](),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers ch for step notifications. The returned func unsubscribes.
func (c *Coordinator) Subscribe(ch chan<- Progress) (func(), error) {
	return c.events.Subscribe(ch)
}

// Finalize runs the saga for a stopped session. The capture buffer is
// released on every path. On failure the returned error is a *FinalizeError
// naming the failed step; if a journal is configured the saga is spooled
// for RetryPending.
func (c *Coordinator) Finalize(
	ctx context.Context,
	capture *session.Capture,
	appt *recording.Appointment,
) (*recording.Record, error) {
	defer capture.Buffer.Release()

	payload, err := capture.Buffer.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to assemble payload: %w", err)
	}

	if len(payload) == 0 {
		return nil, ErrEmptyRecording
	}

	now := c.now()
	started := capture.StartedAt
	if started.IsZero() {
		started = now
	}

	saga := Saga{
		ID:              uuid.NewString(),
		Step:            StepCreate,
		Title:           recording.DeriveTitle(appt, started),
		AppointmentID:   capture.AppointmentID,
		DurationSeconds: capture.ElapsedSeconds,
		Filename:        fmt.Sprintf("consultation-%s.%s", started.UTC().Format("20060102-150405"), c.format.Extension()),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	c.logger.Info("finalizing recording",
		"saga", saga.ID,
		"title", saga.Title,
		"durationSeconds", saga.DurationSeconds,
		"bytes", len(payload))

	rec, err := c.run(ctx, &saga, payload)
	if err != nil {
		c.park(context.WithoutCancel(ctx), saga, payload)
		return nil, err
	}

	return rec, nil
}

// Resume continues saga from its recorded step. payload is only read when
// the saga has not reached StepPatch.
func (c *Coordinator) Resume(ctx context.Context, saga Saga, payload []byte) (*recording.Record, error) {
	if saga.Step == StepDone {
		return nil, errors.New("saga already completed")
	}

	if saga.NeedsPayload() && len(payload) == 0 {
		return nil, &FinalizeError{Step: saga.Step, Saga: saga, Err: ErrEmptyRecording}
	}

	return c.run(ctx, &saga, payload)
}

// RetryPending resumes every journaled saga. Completed sagas are removed from
// the journal; failed ones are saved back with their new resume point.
func (c *Coordinator) RetryPending(ctx context.Context) ([]*recording.Record, error) {
	if c.journal == nil {
		return nil, nil
	}

	sagas, err := c.journal.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending uploads: %w", err)
	}

	var (
		done []*recording.Record
		errs []error
	)

	for _, saga := range sagas {
		var payload []byte
		if saga.NeedsPayload() {
			if payload, err = c.journal.Payload(ctx, saga.ID); err != nil {
				errs = append(errs, fmt.Errorf("saga %s: %w", saga.ID, err))
				continue
			}
		}

		rec, err := c.run(ctx, &saga, payload)
		if err != nil {
			// Only save the saga; the spooled payload is already on disk.
			if jerr := c.journal.Save(ctx, saga, nil); jerr != nil {
				c.logger.Error("failed to update journal", "saga", saga.ID, "error", jerr)
			}
			errs = append(errs, fmt.Errorf("saga %s: %w", saga.ID, err))
			continue
		}

		if err := c.journal.Remove(ctx, saga.ID); err != nil {
			c.logger.Warn("failed to remove completed saga", "saga", saga.ID, "error", err)
		}
		done = append(done, rec)
	}

	return done, errors.Join(errs...)
}

// Pending lists journaled sagas.
func (c *Coordinator) Pending(ctx context.Context) ([]Saga, error) {
	if c.journal == nil {
		return nil, nil
	}

	return c.journal.List(ctx)
}

// run executes the saga strictly in order from saga.Step, advancing the
// resume point after each committed step.
func (c *Coordinator) run(ctx context.Context, saga *Saga, payload []byte) (*recording.Record, error) {
	fail := func(err error) error {
		saga.LastError = err.Error()
		saga.UpdatedAt = c.now()
		c.logger.Warn("finalize step failed", "saga", saga.ID, "step", saga.Step, "recordId", saga.RecordID, "error", err)

		return &FinalizeError{Step: saga.Step, Saga: *saga, Err: err}
	}

	if saga.Step == StepCreate {
		c.publish(saga)
		rec, err := c.api.CreateRecording(ctx, recording.CreateRequest{
			Title:           saga.Title,
			AppointmentID:   saga.AppointmentID,
			DurationSeconds: saga.DurationSeconds,
		})
		if err != nil {
			return nil, fail(err)
		}

		saga.RecordID = rec.ID
		saga.Step = StepUpload
		c.logger.Debug("record created", "saga", saga.ID, "recordId", rec.ID)
	}

	if saga.Step == StepUpload {
		c.publish(saga)
		blob, err := c.store.UploadBlob(ctx, payload, saga.Filename)
		if err != nil {
			return nil, fail(err)
		}

		saga.Blob = blob
		saga.Step = StepPatch
		c.logger.Debug("payload stored", "saga", saga.ID, "url", blob.URL, "bytes", blob.SizeBytes)
	}

	if saga.Step != StepPatch {
		return nil, fail(fmt.Errorf("unexpected step %q", saga.Step))
	}

	c.publish(saga)
	rec, err := c.api.PatchRecording(ctx, saga.RecordID, recording.Completion{
		FileURL:         saga.Blob.URL,
		FileSizeBytes:   saga.Blob.SizeBytes,
		DurationSeconds: saga.DurationSeconds,
		Status:          recording.StatusCompleted,
	})
	if errors.Is(err, recording.ErrAlreadyCompleted) {
		// An earlier attempt's patch landed but its response was lost.
		rec, err = c.api.GetRecording(ctx, saga.RecordID)
	}
	if err != nil {
		return nil, fail(err)
	}

	if err := rec.Validate(); err != nil {
		return nil, fail(fmt.Errorf("backend returned invalid record: %w", err))
	}

	if rec.Status != recording.StatusCompleted {
		return nil, fail(fmt.Errorf("backend left record %s %s", rec.ID, rec.Status))
	}

	saga.Step = StepDone
	saga.LastError = ""
	saga.UpdatedAt = c.now()
	c.publish(saga)

	c.logger.Info("recording finalized", "saga", saga.ID, "recordId", rec.ID, "url", rec.FileURL)

	return rec, nil
}

func (c *Coordinator) publish(saga *Saga) {
	c.events.Publish(Progress{SagaID: saga.ID, Step: saga.Step})
}

func (c *Coordinator) park(ctx context.Context, saga Saga, payload []byte) {
	if c.journal == nil {
		return
	}

	if !saga.NeedsPayload() {
		payload = nil
	}

	if err := c.journal.Save(ctx, saga, payload); err != nil {
		c.logger.Error("failed to journal saga", "saga", saga.ID, "error", err)
	}
}
