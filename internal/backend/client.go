// Package backend is the HTTP client for the portal backend's recording API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alkime/consults/internal/recording"
	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized is returned when the backend rejects the configured token.
var ErrUnauthorized = errors.New("backend rejected credentials")

// Client talks to the /api/v1 routes of the portal backend.
type Client struct {
	http *resty.Client
}

type apiError struct {
	Error string `json:"error"`
}

// NewClient creates a client for the backend at baseURL. An empty token
// sends no Authorization header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetError(&apiError{})

	if token != "" {
		c.SetAuthToken(token)
	}

	return &Client{http: c}
}

func (c *Client) CreateRecording(ctx context.Context, req recording.CreateRequest) (*recording.Record, error) {
	var rec recording.Record

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&rec).
		Post("/api/v1/recordings")
	if err := check(resp, err, "create recording"); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (c *Client) PatchRecording(ctx context.Context, id string, completion recording.Completion) (*recording.Record, error) {
	var rec recording.Record

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(completion).
		SetResult(&rec).
		Patch("/api/v1/recordings/{id}")
	if err := check(resp, err, "patch recording"); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (c *Client) GetRecording(ctx context.Context, id string) (*recording.Record, error) {
	var rec recording.Record

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&rec).
		Get("/api/v1/recordings/{id}")
	if err := check(resp, err, "get recording"); err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListRecordings returns the catalog, newest first.
func (c *Client) ListRecordings(ctx context.Context) ([]recording.Record, error) {
	var recs []recording.Record

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&recs).
		Get("/api/v1/recordings")
	if err := check(resp, err, "list recordings"); err != nil {
		return nil, err
	}

	return recs, nil
}

// UpcomingAppointments returns the appointments that have not started yet.
func (c *Client) UpcomingAppointments(ctx context.Context) ([]recording.Appointment, error) {
	var appts []recording.Appointment

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&appts).
		Get("/api/v1/appointments/upcoming")
	if err := check(resp, err, "list appointments"); err != nil {
		return nil, err
	}

	return appts, nil
}

// check maps transport failures and error statuses onto the recording
// sentinels so callers can branch with errors.Is.
func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		msg = e.Error
	}

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, recording.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, recording.ErrAlreadyCompleted)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	return fmt.Errorf("%s: backend returned %d: %s", op, resp.StatusCode(), msg)
}
