package upload_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alkime/consults/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileJournal_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "pending")
	j := upload.NewFileJournal(dir)

	list, err := j.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := upload.Saga{ID: "b", Step: upload.StepUpload, RecordID: "rec-2", CreatedAt: base.Add(time.Minute)}
	earlier := upload.Saga{ID: "a", Step: upload.StepCreate, CreatedAt: base}

	require.NoError(t, j.Save(ctx, later, []byte("later")))
	require.NoError(t, j.Save(ctx, earlier, []byte("earlier")))

	list, err = j.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "rec-2", list[1].RecordID)

	payload, err := j.Payload(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("later"), payload)

	// Saving without a payload keeps the spooled one.
	later.LastError = "still down"
	require.NoError(t, j.Save(ctx, later, nil))
	payload, err = j.Payload(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("later"), payload)

	require.NoError(t, j.Remove(ctx, "a"))
	require.NoError(t, j.Remove(ctx, "a"))

	list, err = j.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "still down", list[0].LastError)
}

func TestFileJournal_DropsPayloadPastUpload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	j := upload.NewFileJournal(dir)

	saga := upload.Saga{ID: "s1", Step: upload.StepUpload}
	require.NoError(t, j.Save(ctx, saga, []byte("payload")))

	saga.Step = upload.StepPatch
	require.NoError(t, j.Save(ctx, saga, nil))

	_, err := j.Payload(ctx, "s1")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
