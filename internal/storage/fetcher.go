package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrFetchFailed is returned when a stored object cannot be retrieved.
var ErrFetchFailed = errors.New("fetch stored recording")

// Resolver turns a stored fileUrl into a fetchable URL.
type Resolver interface {
	ResolveURL(ctx context.Context, raw string) (string, error)
}

// Fetcher downloads stored recordings by URL.
type Fetcher struct {
	http     *resty.Client
	resolver Resolver
}

type FetcherOption func(*Fetcher)

// WithResolver lets the fetcher follow s3:// locators.
func WithResolver(r Resolver) FetcherOption {
	return func(f *Fetcher) { f.resolver = r }
}

func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{http: resty.New().SetTimeout(timeout)}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch streams the object at url, resolving locators first. The caller
// closes the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	url, err := f.resolve(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := f.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	body := resp.RawBody()
	if resp.IsError() {
		body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetchFailed, url, resp.Status())
	}

	return body, nil
}

func (f *Fetcher) resolve(ctx context.Context, raw string) (string, error) {
	if f.resolver != nil {
		resolved, err := f.resolver.ResolveURL(ctx, raw)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}

		return resolved, nil
	}

	if _, _, ok := ParseLocator(raw); ok {
		return "", fmt.Errorf("%w: no resolver for %s", ErrFetchFailed, raw)
	}

	return raw, nil
}

// Download saves the object at url to dest, creating parent directories.
// Returns the number of bytes written.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (int64, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create download file: %w", err)
	}

	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write download: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return 0, fmt.Errorf("finalize download: %w", err)
	}

	return n, nil
}
