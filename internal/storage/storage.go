// Package storage puts finalized consultation payloads into S3-compatible
// object storage and fetches them back for playback and download.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/alkime/consults/internal/audio"
	"github.com/alkime/consults/internal/config"
	"github.com/alkime/consults/internal/recording"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// LocatorScheme prefixes durable bucket locators.
const LocatorScheme = "s3"

// Store wraps a MinIO client bound to a single bucket.
type Store struct {
	client        *minio.Client
	bucket        string
	region        string
	publicBaseURL string
	presignTTL    time.Duration
	now           func() time.Time
}

// New creates a MinIO client from the storage config. It does not contact
// the server.
func New(cfg config.StorageConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignTTL:    cfg.PresignTTL,
		now:           time.Now,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}

	return nil
}

// UploadBlob stores payload under a fresh key derived from filename and
// returns its durable locator: the public URL when the bucket is served
// publicly, otherwise an s3:// locator that ResolveURL presigns on demand.
func (s *Store) UploadBlob(ctx context.Context, payload []byte, filename string) (recording.Blob, error) {
	key := ObjectKey(s.now(), uuid.NewString(), filename)
	opts := minio.PutObjectOptions{ContentType: contentTypeFor(filename)}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), opts)
	if err != nil {
		return recording.Blob{}, fmt.Errorf("upload object: %w", err)
	}

	size := info.Size
	if size <= 0 {
		size = int64(len(payload))
	}

	return recording.Blob{URL: s.LocatorFor(key), SizeBytes: size}, nil
}

// LocatorFor returns the value stored as a record's fileUrl for key. It
// never expires.
func (s *Store) LocatorFor(key string) string {
	if s.publicBaseURL != "" {
		return PublicURL(s.publicBaseURL, key)
	}

	return Locator(s.bucket, key)
}

// ResolveURL turns a stored fileUrl into one that can be fetched. Locators
// in this store's bucket are presigned for the configured TTL; any other
// URL is returned unchanged.
func (s *Store) ResolveURL(ctx context.Context, raw string) (string, error) {
	bucket, key, ok := ParseLocator(raw)
	if !ok {
		return raw, nil
	}

	if bucket != s.bucket {
		return "", fmt.Errorf("locator %s is not in bucket %s", raw, s.bucket)
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}

	return u.String(), nil
}

// Locator formats the durable s3://bucket/key reference of an object.
func Locator(bucket, key string) string {
	return LocatorScheme + "://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseLocator splits an s3:// locator. ok is false for any other URL.
func ParseLocator(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, LocatorScheme+"://")
	if !found {
		return "", "", false
	}

	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}

	return bucket, key, true
}

// ObjectKey lays recordings out by upload month: recordings/2006/01/<id>-<name>.
func ObjectKey(at time.Time, id, filename string) string {
	return path.Join("recordings", at.UTC().Format("2006/01"), id+"-"+path.Base(filename))
}

// PublicURL joins a public bucket URL and an object key, escaping each segment.
func PublicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

func contentTypeFor(filename string) string {
	switch strings.TrimPrefix(path.Ext(filename), ".") {
	case audio.FormatMP3.Extension():
		return audio.FormatMP3.ContentType()
	case audio.FormatPCM.Extension():
		return audio.FormatPCM.ContentType()
	}

	return "application/octet-stream"
}
