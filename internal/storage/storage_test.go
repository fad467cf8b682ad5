package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alkime/consults/internal/config"
	"github.com/alkime/consults/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	key := storage.ObjectKey(at, "abc", "consultation-20250309-233000.mp3")

	assert.Equal(t, "recordings/2025/03/abc-consultation-20250309-233000.mp3", key)
	assert.Equal(t, "recordings/2025/03/abc-x.mp3", storage.ObjectKey(at, "abc", "../../x.mp3"))
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		key  string
		want string
	}{
		{name: "plain", base: "https://cdn.example.test/consultations", key: "recordings/2025/03/a.mp3", want: "https://cdn.example.test/consultations/recordings/2025/03/a.mp3"},
		{name: "trailing slash", base: "https://cdn.example.test/", key: "a.mp3", want: "https://cdn.example.test/a.mp3"},
		{name: "escapes segments", base: "https://cdn.example.test", key: "recordings/a b.mp3", want: "https://cdn.example.test/recordings/a%20b.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, storage.PublicURL(tt.base, tt.key))
		})
	}
}

func TestNewRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := storage.New(config.StorageConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)

	_, err = storage.New(config.StorageConfig{Endpoint: "localhost:9000", Bucket: "consultations", Region: "us-east-1"})
	require.NoError(t, err)
}

func TestFetcher(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, "ID3-bytes")
	}))
	t.Cleanup(ts.Close)

	f := storage.NewFetcher(5 * time.Second)

	body, err := f.Fetch(t.Context(), ts.URL+"/a.mp3")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "ID3-bytes", string(data))

	_, err = f.Fetch(t.Context(), ts.URL+"/missing.mp3")
	require.ErrorIs(t, err, storage.ErrFetchFailed)
	assert.True(t, strings.Contains(err.Error(), "404"))
}

func TestFetcherDownload(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "0123456789")
	}))
	t.Cleanup(ts.Close)

	dest := filepath.Join(t.TempDir(), "downloads", "a.mp3")
	n, err := storage.NewFetcher(5*time.Second).Download(t.Context(), ts.URL+"/a.mp3", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err))
}

func newTestStore(t *testing.T, publicBase string) *storage.Store {
	t.Helper()

	s, err := storage.New(config.StorageConfig{
		Endpoint:      "localhost:9000",
		AccessKey:     "access",
		SecretKey:     "secret",
		Region:        "us-east-1",
		Bucket:        "consultations",
		PublicBaseURL: publicBase,
		PresignTTL:    time.Hour,
	})
	require.NoError(t, err)

	return s
}

func TestStoreLocatorFor(t *testing.T) {
	t.Parallel()

	got := newTestStore(t, "").LocatorFor("recordings/2025/03/a.mp3")
	assert.Equal(t, "s3://consultations/recordings/2025/03/a.mp3", got)
	assert.NotContains(t, got, "X-Amz")

	got = newTestStore(t, "https://cdn.example.test").LocatorFor("recordings/2025/03/a.mp3")
	assert.Equal(t, "https://cdn.example.test/recordings/2025/03/a.mp3", got)
}

func TestParseLocator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw        string
		wantBucket string
		wantKey    string
		wantOK     bool
	}{
		{raw: "s3://consultations/recordings/a.mp3", wantBucket: "consultations", wantKey: "recordings/a.mp3", wantOK: true},
		{raw: storage.Locator("b", "/k.mp3"), wantBucket: "b", wantKey: "k.mp3", wantOK: true},
		{raw: "s3://consultations", wantOK: false},
		{raw: "s3:///a.mp3", wantOK: false},
		{raw: "https://cdn.example.test/a.mp3", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			bucket, key, ok := storage.ParseLocator(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestStoreResolveURL(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, "")

	got, err := s.ResolveURL(t.Context(), "s3://consultations/recordings/2025/03/a.mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "http://localhost:9000/consultations/recordings/2025/03/a.mp3?"), got)
	assert.Contains(t, got, "X-Amz-Expires=3600")

	got, err = s.ResolveURL(t.Context(), "https://cdn.example.test/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/a.mp3", got)

	_, err = s.ResolveURL(t.Context(), "s3://elsewhere/a.mp3")
	require.Error(t, err)
}

type stubResolver struct {
	base string
}

func (r stubResolver) ResolveURL(_ context.Context, raw string) (string, error) {
	_, key, ok := storage.ParseLocator(raw)
	if !ok {
		return raw, nil
	}

	return r.base + "/" + key, nil
}

func TestFetcherResolvesLocator(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	t.Cleanup(ts.Close)

	f := storage.NewFetcher(5*time.Second, storage.WithResolver(stubResolver{base: ts.URL}))

	body, err := f.Fetch(t.Context(), "s3://consultations/recordings/a.mp3")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "/recordings/a.mp3", string(data))

	_, err = storage.NewFetcher(5*time.Second).Fetch(t.Context(), "s3://consultations/recordings/a.mp3")
	require.ErrorIs(t, err, storage.ErrFetchFailed)
}
