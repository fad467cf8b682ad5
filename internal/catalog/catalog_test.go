package catalog_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records []recording.Record
	err     error
	calls   atomic.Int32
}

func (s *fakeSource) ListRecordings(context.Context) ([]recording.Record, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}

	return append([]recording.Record(nil), s.records...), nil
}

func completed(id string) recording.Record {
	return recording.Record{
		ID:            id,
		Title:         "Consultation " + id,
		Status:        recording.StatusCompleted,
		FileURL:       "https://blobs.example.test/" + id + ".mp3",
		FileSizeBytes: 1024,
	}
}

func ids(records []recording.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}

	return out
}

func TestCatalog_LoadFetchesOnce(t *testing.T) {
	t.Parallel()

	src := &fakeSource{records: []recording.Record{completed("a"), completed("b")}}
	c := catalog.New(src, nil)

	got, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))

	_, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, c.Loaded())
}

func TestCatalog_LoadError(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("offline")}
	c := catalog.New(src, nil)

	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.False(t, c.Loaded())
	assert.Empty(t, c.Entries())
}

func TestCatalog_InsertPrependsOrReplaces(t *testing.T) {
	t.Parallel()

	src := &fakeSource{records: []recording.Record{completed("a")}}
	c := catalog.New(src, nil)
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	updates := make(chan catalog.Update, 4)
	_, err = c.Subscribe(updates)
	require.NoError(t, err)

	require.NoError(t, c.Insert(completed("b")))
	assert.Equal(t, []string{"b", "a"}, ids(c.Entries()))

	u := <-updates
	require.NotNil(t, u.Inserted)
	assert.Equal(t, "b", u.Inserted.ID)
	assert.Equal(t, []string{"b", "a"}, ids(u.Entries))

	replacement := completed("a")
	replacement.Transcript = "Patient reports improvement."
	require.NoError(t, c.Insert(replacement))
	assert.Equal(t, []string{"b", "a"}, ids(c.Entries()))

	found, ok := c.Find("a")
	require.True(t, ok)
	assert.Equal(t, "Patient reports improvement.", found.Transcript)

	_, ok = c.Find("zzz")
	assert.False(t, ok)
}

func TestCatalog_InsertRejectsInvalid(t *testing.T) {
	t.Parallel()

	c := catalog.New(&fakeSource{}, nil)

	bad := completed("x")
	bad.FileURL = ""
	require.Error(t, c.Insert(bad))
	assert.Empty(t, c.Entries())
}

func TestCatalog_ReloadKeepsLocalInserts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{records: []recording.Record{completed("a")}}
	c := catalog.New(src, nil)
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Insert(completed("new")))

	src.records = []recording.Record{completed("b"), completed("a")}
	got, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "b", "a"}, ids(got))

	src.records = []recording.Record{completed("new"), completed("b"), completed("a")}
	got, err = c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "b", "a"}, ids(got))
}

func TestCatalog_EntriesAreCopies(t *testing.T) {
	t.Parallel()

	c := catalog.New(&fakeSource{records: []recording.Record{completed("a")}}, nil)
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	entries := c.Entries()
	entries[0].Title = "mutated"

	found, _ := c.Find("a")
	assert.Equal(t, "Consultation a", found.Title)
}
