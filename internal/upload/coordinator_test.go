package upload_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alkime/consults/internal/audio"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/session"
	"github.com/alkime/consults/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetworkDown = errors.New("network down")

type fakeAPI struct {
	mu        sync.Mutex
	records   map[string]*recording.Record
	creates   int
	createErr error
	patchErr  error
	lostPatch bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{records: make(map[string]*recording.Record)}
}

func (a *fakeAPI) CreateRecording(_ context.Context, req recording.CreateRequest) (*recording.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.createErr != nil {
		return nil, a.createErr
	}

	a.creates++
	rec := &recording.Record{
		ID:              fmt.Sprintf("rec-%d", a.creates),
		Title:           req.Title,
		Status:          recording.StatusProcessing,
		AppointmentID:   req.AppointmentID,
		DurationSeconds: req.DurationSeconds,
	}
	a.records[rec.ID] = rec
	cp := *rec

	return &cp, nil
}

func (a *fakeAPI) PatchRecording(_ context.Context, id string, c recording.Completion) (*recording.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.patchErr != nil {
		return nil, a.patchErr
	}

	rec, ok := a.records[id]
	if !ok {
		return nil, recording.ErrNotFound
	}
	if rec.Status == recording.StatusCompleted {
		return nil, recording.ErrAlreadyCompleted
	}

	rec.Status = c.Status
	rec.FileURL = c.FileURL
	rec.FileSizeBytes = c.FileSizeBytes
	rec.DurationSeconds = c.DurationSeconds

	if a.lostPatch {
		a.lostPatch = false
		return nil, errNetworkDown
	}

	cp := *rec

	return &cp, nil
}

func (a *fakeAPI) GetRecording(_ context.Context, id string) (*recording.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[id]
	if !ok {
		return nil, recording.ErrNotFound
	}
	cp := *rec

	return &cp, nil
}

func (a *fakeAPI) byStatus(s recording.Status) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, r := range a.records {
		if r.Status == s {
			n++
		}
	}

	return n
}

type fakeStore struct {
	mu       sync.Mutex
	err      error
	uploads  int
	payloads map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{payloads: make(map[string][]byte)}
}

func (s *fakeStore) UploadBlob(_ context.Context, payload []byte, filename string) (recording.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return recording.Blob{}, s.err
	}

	s.uploads++
	s.payloads[filename] = append([]byte(nil), payload...)

	return recording.Blob{
		URL:       "https://blobs.example.test/recordings/" + filename,
		SizeBytes: int64(len(payload)),
	}, nil
}

func newCapture(t *testing.T, elapsed int, chunks ...string) *session.Capture {
	t.Helper()

	buf := audio.NewChunkBuffer()
	for _, c := range chunks {
		require.NoError(t, buf.Append([]byte(c)))
	}
	buf.Freeze()

	return &session.Capture{
		Buffer:         buf,
		ElapsedSeconds: elapsed,
		AppointmentID:  "appt-1",
		StartedAt:      time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

var appt = &recording.Appointment{ID: "appt-1", DoctorName: "Dr. Okafor", Specialty: "Cardiology"}

func TestFinalize_Success(t *testing.T) {
	t.Parallel()

	api, store := newFakeAPI(), newFakeStore()
	c := upload.NewCoordinator(api, store)
	capture := newCapture(t, 5, "aa", "bb", "cc")

	rec, err := c.Finalize(context.Background(), capture, appt)
	require.NoError(t, err)

	assert.Equal(t, recording.StatusCompleted, rec.Status)
	assert.Equal(t, 5, rec.DurationSeconds)
	assert.Equal(t, int64(6), rec.FileSizeBytes)
	assert.Equal(t, "Consultation with Dr. Okafor (Cardiology)", rec.Title)
	assert.Equal(t, "appt-1", rec.AppointmentID)
	require.NoError(t, rec.Validate())

	require.Len(t, store.payloads, 1)
	for name, payload := range store.payloads {
		assert.Equal(t, "consultation-20250301-093000.mp3", name)
		assert.Equal(t, []byte("aabbcc"), payload)
	}

	assert.True(t, capture.Buffer.Released())
}

func TestFinalize_PublishesSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		storeErr error
		want     []upload.Step
	}{
		{name: "success", want: []upload.Step{upload.StepCreate, upload.StepUpload, upload.StepPatch, upload.StepDone}},
		{name: "upload fails", storeErr: errNetworkDown, want: []upload.Step{upload.StepCreate, upload.StepUpload}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			store.err = tt.storeErr
			c := upload.NewCoordinator(newFakeAPI(), store)

			ch := make(chan upload.Progress, 8)
			unsubscribe, err := c.Subscribe(ch)
			require.NoError(t, err)
			defer unsubscribe()

			_, _ = c.Finalize(context.Background(), newCapture(t, 2, "ab"), nil)

			var got []upload.Step
			sagaIDs := map[string]bool{}
			for len(ch) > 0 {
				p := <-ch
				got = append(got, p.Step)
				sagaIDs[p.SagaID] = true
			}

			assert.Equal(t, tt.want, got)
			assert.Len(t, sagaIDs, 1)
		})
	}
}

func TestFinalize_CreateFails(t *testing.T) {
	t.Parallel()

	api, store := newFakeAPI(), newFakeStore()
	api.createErr = errNetworkDown
	journal := upload.NewFileJournal(t.TempDir())
	c := upload.NewCoordinator(api, store, upload.WithJournal(journal))
	capture := newCapture(t, 3, "xyz")

	rec, err := c.Finalize(context.Background(), capture, nil)
	require.Nil(t, rec)
	require.ErrorIs(t, err, upload.ErrRecordCreationFailed)
	require.ErrorIs(t, err, errNetworkDown)
	require.NotErrorIs(t, err, upload.ErrUploadFailed)

	assert.Zero(t, api.byStatus(recording.StatusProcessing))
	assert.Zero(t, store.uploads)
	assert.True(t, capture.Buffer.Released())

	pending, err := journal.List(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, upload.StepCreate, pending[0].Step)

	payload, err := journal.Payload(context.Background(), pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), payload)
}

func TestFinalize_UploadFailsThenRetryReusesRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api, store := newFakeAPI(), newFakeStore()
	store.err = errNetworkDown
	journal := upload.NewFileJournal(t.TempDir())
	c := upload.NewCoordinator(api, store, upload.WithJournal(journal))

	_, err := c.Finalize(ctx, newCapture(t, 7, "one", "two"), appt)
	require.ErrorIs(t, err, upload.ErrUploadFailed)
	require.NotErrorIs(t, err, upload.ErrRecordCreationFailed)

	var ferr *upload.FinalizeError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, upload.StepUpload, ferr.Step)
	assert.Equal(t, "rec-1", ferr.Saga.RecordID)

	assert.Equal(t, 1, api.byStatus(recording.StatusProcessing))
	assert.Zero(t, api.byStatus(recording.StatusCompleted))

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	done, err := c.RetryPending(ctx)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "rec-1", done[0].ID)
	assert.Equal(t, 1, api.creates)
	assert.Equal(t, 1, api.byStatus(recording.StatusCompleted))
	assert.Zero(t, api.byStatus(recording.StatusProcessing))

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFinalize_PatchFailsResumesWithoutReupload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api, store := newFakeAPI(), newFakeStore()
	api.patchErr = errNetworkDown
	c := upload.NewCoordinator(api, store)

	_, err := c.Finalize(ctx, newCapture(t, 2, "pp"), nil)
	require.ErrorIs(t, err, upload.ErrPatchFailed)

	var ferr *upload.FinalizeError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, upload.StepPatch, ferr.Saga.Step)
	assert.False(t, ferr.Saga.NeedsPayload())

	api.mu.Lock()
	api.patchErr = nil
	api.mu.Unlock()

	rec, err := c.Resume(ctx, ferr.Saga, nil)
	require.NoError(t, err)
	assert.Equal(t, recording.StatusCompleted, rec.Status)
	assert.Equal(t, 1, store.uploads)
	assert.Equal(t, 1, api.creates)
}

func TestFinalize_LostPatchResponse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api, store := newFakeAPI(), newFakeStore()
	api.lostPatch = true
	c := upload.NewCoordinator(api, store)

	_, err := c.Finalize(ctx, newCapture(t, 4, "qq"), nil)
	var ferr *upload.FinalizeError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, upload.StepPatch, ferr.Step)

	rec, err := c.Resume(ctx, ferr.Saga, nil)
	require.NoError(t, err)
	assert.Equal(t, ferr.Saga.RecordID, rec.ID)
	assert.Equal(t, recording.StatusCompleted, rec.Status)
}

func TestFinalize_EmptyCapture(t *testing.T) {
	t.Parallel()

	api, store := newFakeAPI(), newFakeStore()
	c := upload.NewCoordinator(api, store)
	capture := newCapture(t, 0)

	_, err := c.Finalize(context.Background(), capture, nil)
	require.ErrorIs(t, err, upload.ErrEmptyRecording)
	assert.Zero(t, api.creates)
	assert.True(t, capture.Buffer.Released())
}

func TestFinalize_TitleFromTimestamp(t *testing.T) {
	t.Parallel()

	api, store := newFakeAPI(), newFakeStore()
	c := upload.NewCoordinator(api, store, upload.WithFormat(audio.FormatPCM))

	rec, err := c.Finalize(context.Background(), newCapture(t, 1, "a"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Consultation recording 2025-03-01 09:30", rec.Title)
	assert.Contains(t, rec.FileURL, ".pcm")
}

func TestResume_RequiresPayload(t *testing.T) {
	t.Parallel()

	c := upload.NewCoordinator(newFakeAPI(), newFakeStore())

	_, err := c.Resume(context.Background(), upload.Saga{ID: "s", Step: upload.StepUpload, RecordID: "rec-1"}, nil)
	require.ErrorIs(t, err, upload.ErrEmptyRecording)

	_, err = c.Resume(context.Background(), upload.Saga{ID: "s", Step: upload.StepDone}, nil)
	require.Error(t, err)
}
