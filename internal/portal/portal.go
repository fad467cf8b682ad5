// Package portal is the surface the UI drives: it wires the recording
// session, the upload saga, the catalog, and playback together.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/playback"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/session"
	"github.com/alkime/consults/internal/upload"
)

// ErrNothingToDownload is returned for records with neither audio nor a transcript.
var ErrNothingToDownload = errors.New("recording has no audio or transcript to download")

// FileFetcher saves a remote file locally.
type FileFetcher interface {
	Download(ctx context.Context, url, dest string) (int64, error)
}

// URLResolver turns a stored file locator into a URL that can be fetched now.
type URLResolver interface {
	ResolveURL(ctx context.Context, raw string) (string, error)
}

// Appointments lists the appointments a recording can be linked to.
type Appointments interface {
	UpcomingAppointments(ctx context.Context) ([]recording.Appointment, error)
}

// Download is what DownloadRecording hands back: either a URL to fetch the
// stored audio from, or the transcript as text.
type Download struct {
	URL      string
	Text     []byte
	Filename string
}

// IsText reports whether the download is a transcript rather than audio.
func (d Download) IsText() bool {
	return d.URL == ""
}

type Portal struct {
	session  *session.Controller
	uploads  *upload.Coordinator
	catalog  *catalog.Catalog
	playback *playback.Controller
	appts    Appointments
	fetcher  FileFetcher
	resolver URLResolver
	logger   *slog.Logger

	// finalizing counts StopAndSaveRecording calls still running.
	finalizing sync.WaitGroup

	mu     sync.Mutex
	linked *recording.Appointment
	known  []recording.Appointment
}

type Option func(*Portal)

func WithAppointments(a Appointments) Option {
	return func(p *Portal) { p.appts = a }
}

// WithFetcher enables SaveRecording for records with audio.
func WithFetcher(f FileFetcher) Option {
	return func(p *Portal) { p.fetcher = f }
}

// WithResolver makes DownloadRecording hand out fetchable URLs for stored
// locators.
func WithResolver(r URLResolver) Option {
	return func(p *Portal) { p.resolver = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Portal) { p.logger = logger }
}

func New(
	sess *session.Controller,
	uploads *upload.Coordinator,
	cat *catalog.Catalog,
	player *playback.Controller,
	opts ...Option,
) *Portal {
	p := &Portal{
		session:  sess,
		uploads:  uploads,
		catalog:  cat,
		playback: player,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Portal) Session() *session.Controller   { return p.session }
func (p *Portal) Catalog() *catalog.Catalog      { return p.catalog }
func (p *Portal) Playback() *playback.Controller { return p.playback }
func (p *Portal) Uploads() *upload.Coordinator   { return p.uploads }

// Snapshot is the current recording session state.
func (p *Portal) Snapshot() session.Snapshot { return p.session.Snapshot() }

// PlaybackState is the current playback state.
func (p *Portal) PlaybackState() playback.State { return p.playback.State() }

// UpcomingAppointments fetches the appointments a recording can be linked
// to and remembers them for title derivation.
func (p *Portal) UpcomingAppointments(ctx context.Context) ([]recording.Appointment, error) {
	if p.appts == nil {
		return nil, nil
	}

	appts, err := p.appts.UpcomingAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	p.mu.Lock()
	p.known = appts
	p.mu.Unlock()

	return appts, nil
}

// StartRecording starts a session, optionally linked to an appointment.
// An appointment id that cannot be resolved is still linked; the title then
// falls back to the start time.
func (p *Portal) StartRecording(ctx context.Context, appointmentID string) error {
	appt := p.resolveAppointment(ctx, appointmentID)

	if err := p.session.Start(ctx, appointmentID); err != nil {
		return err
	}

	p.mu.Lock()
	p.linked = appt
	p.mu.Unlock()

	return nil
}

func (p *Portal) resolveAppointment(ctx context.Context, id string) *recording.Appointment {
	if id == "" {
		return nil
	}

	p.mu.Lock()
	appt := recording.FindAppointment(p.known, id)
	p.mu.Unlock()
	if appt != nil {
		return appt
	}

	appts, err := p.UpcomingAppointments(ctx)
	if err != nil {
		p.logger.Warn("could not resolve appointment", "appointmentId", id, "error", err)
		return nil
	}

	return recording.FindAppointment(appts, id)
}

func (p *Portal) PauseOrResumeRecording(ctx context.Context) (session.State, error) {
	return p.session.PauseOrResume(ctx)
}

// StopAndSaveRecording stops the active session and runs the upload saga.
// On success the record is merged into the catalog. Calling it again after
// a finalize fails with session.ErrNoActiveSession and creates nothing.
func (p *Portal) StopAndSaveRecording(ctx context.Context) (*recording.Record, error) {
	p.finalizing.Add(1)
	defer p.finalizing.Done()

	capture, err := p.session.Stop(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	appt := p.linked
	p.linked = nil
	p.mu.Unlock()

	rec, err := p.uploads.Finalize(ctx, capture, appt)
	if cerr := p.session.Complete(err); cerr != nil {
		p.logger.Error("failed to settle session", "error", cerr)
	}
	if err != nil {
		return nil, err
	}

	if err := p.catalog.Insert(*rec); err != nil {
		return rec, err
	}

	return rec, nil
}

// SubscribeSaveProgress reports the upload step each finalize enters.
func (p *Portal) SubscribeSaveProgress(ch chan<- upload.Progress) (func(), error) {
	return p.uploads.Subscribe(ch)
}

// ListCatalog returns the recordings, fetching them on first use.
func (p *Portal) ListCatalog(ctx context.Context) ([]recording.Record, error) {
	return p.catalog.Load(ctx)
}

// TogglePlay starts, pauses, or resumes playback of rec.
func (p *Portal) TogglePlay(ctx context.Context, rec recording.Record) (playback.State, error) {
	return p.playback.TogglePlay(ctx, rec)
}

// DownloadRecording returns a URL the audio can be fetched from, or the
// transcript as text when the record has no playable audio.
func (p *Portal) DownloadRecording(ctx context.Context, rec recording.Record) (Download, error) {
	if rec.HasAudio() {
		u := rec.FileURL
		if p.resolver != nil {
			resolved, err := p.resolver.ResolveURL(ctx, u)
			if err != nil {
				return Download{}, fmt.Errorf("failed to resolve %s: %w", rec.ID, err)
			}
			u = resolved
		}

		return Download{URL: u, Filename: filenameFromURL(u, rec.ID)}, nil
	}

	if strings.TrimSpace(rec.Transcript) != "" {
		return Download{Text: []byte(rec.Transcript), Filename: slugify(rec.Title, rec.ID) + ".txt"}, nil
	}

	return Download{}, fmt.Errorf("%w: %s", ErrNothingToDownload, rec.ID)
}

// SaveRecording writes the download for rec into dir and returns the path.
func (p *Portal) SaveRecording(ctx context.Context, rec recording.Record, dir string) (string, error) {
	d, err := p.DownloadRecording(ctx, rec)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(dir, d.Filename)

	if d.IsText() {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create download directory: %w", err)
		}
		if err := os.WriteFile(dest, d.Text, 0o600); err != nil {
			return "", fmt.Errorf("failed to write transcript: %w", err)
		}

		return dest, nil
	}

	if p.fetcher == nil {
		return "", errors.New("no fetcher configured for audio downloads")
	}

	n, err := p.fetcher.Download(ctx, d.URL, dest)
	if err != nil {
		return "", err
	}
	p.logger.Info("recording downloaded", "id", rec.ID, "path", dest, "bytes", n)

	return dest, nil
}

// RetryPending resumes journaled uploads and merges the ones that complete.
func (p *Portal) RetryPending(ctx context.Context) ([]*recording.Record, error) {
	recs, err := p.uploads.RetryPending(ctx)

	for _, rec := range recs {
		if ierr := p.catalog.Insert(*rec); ierr != nil {
			err = errors.Join(err, ierr)
		}
	}

	return recs, err
}

// Close waits for a running finalize to settle, so a cancelled upload is
// journaled before returning, then aborts any active session and stops
// playback.
func (p *Portal) Close(ctx context.Context) {
	p.finalizing.Wait()
	p.session.Close(ctx)
	p.playback.Close()
}

func filenameFromURL(raw, fallback string) string {
	u, err := url.Parse(raw)
	if err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}

	return fallback
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title, fallback string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		return fallback
	}

	return slug
}
