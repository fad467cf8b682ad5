package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/alkime/consults/internal/audio"
	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/playback"
	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/internal/tui"
	"github.com/alkime/consults/internal/tui/workflow"
	tea "github.com/charmbracelet/bubbletea"
)

// CLI defines the consult command structure.
type CLI struct {
	// Default command (runs when no subcommand given)
	Record RecordCmd `cmd:"" default:"withargs" help:"Record a consultation and upload it"`

	Library  LibraryCmd  `cmd:"" help:"Browse, play and download recordings"`
	List     ListCmd     `cmd:"" help:"List recordings"`
	Play     PlayCmd     `cmd:"" help:"Play a recording in the terminal"`
	Download DownloadCmd `cmd:"" help:"Download a recording or its transcript"`
	Retry    RetryCmd    `cmd:"" help:"Retry uploads that did not complete"`
	Devices  DevicesCmd  `cmd:"" help:"List available audio devices"`
	Config   ConfigCmd   `cmd:"" help:"Manage configuration"`
}

// RecordCmd is the default command: pick an appointment, record, save.
type RecordCmd struct {
	Appointment string `flag:"" optional:"" help:"Appointment ID to link (skips the picker)"`
}

func (c *RecordCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, appOptions{logToFile: true, needBucket: true})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	sel := &workflow.Selection{AppointmentID: c.Appointment, Label: c.Appointment}
	flow := workflow.NewRecordingFlow(ctx, a.portal, sel, a.levels)

	if _, err := tea.NewProgram(tui.New(tui.Config{Title: "Consultation", Cancel: cancel}, flow)).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	fmt.Println("finished. bye!")

	return nil
}

// LibraryCmd opens the recordings browser.
type LibraryCmd struct {
	Dir string `flag:"" optional:"" help:"Download directory (default: work dir downloads)"`
}

func (c *LibraryCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, appOptions{logToFile: true})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	dir := c.Dir
	if dir == "" {
		dir = a.dir.Downloads()
	}

	screen := workflow.NewLibrary(ctx, a.portal, dir)
	if _, err := tea.NewProgram(tui.New(tui.Config{Title: "Recordings", Cancel: cancel}, screen)).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}

// ListCmd prints the catalog.
type ListCmd struct{}

func (c *ListCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	records, err := a.portal.ListCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to list recordings: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No recordings yet.")
		return nil
	}

	fmt.Println(renderCatalog(catalog.PresentAll(records)))

	return nil
}

// PlayCmd plays one recording until it ends or is interrupted.
type PlayCmd struct {
	ID string `arg:"" help:"Recording ID"`
}

func (c *PlayCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	rec, err := findRecording(ctx, a, c.ID)
	if err != nil {
		return err
	}

	states := make(chan playback.State, 8)
	unsubscribe, err := a.portal.Playback().Subscribe(states)
	if err != nil {
		return fmt.Errorf("failed to watch playback: %w", err)
	}
	defer unsubscribe()

	if _, err := a.portal.TogglePlay(ctx, rec); err != nil {
		return err
	}

	fmt.Printf("Playing %s (%s)\n", rec.Title, catalog.FormatDuration(rec.DurationSeconds))

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case st := <-states:
			fmt.Printf("\r%3.0f%%", st.Progress*100)
			if st.Err != nil {
				fmt.Println()
				return st.Err
			}
			if !st.IsPlaying && st.Progress >= 1 {
				fmt.Println()
				return nil
			}
		}
	}
}

// DownloadCmd saves a recording's audio, or its transcript when there is no audio.
type DownloadCmd struct {
	ID  string `arg:"" help:"Recording ID"`
	Dir string `arg:"" optional:"" help:"Destination directory (default: work dir downloads)"`
}

func (c *DownloadCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	rec, err := findRecording(ctx, a, c.ID)
	if err != nil {
		return err
	}

	dir := c.Dir
	if dir == "" {
		dir = a.dir.Downloads()
	}

	dest, err := a.portal.SaveRecording(ctx, rec, dir)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", rec.ID, err)
	}

	if abs, err := filepath.Abs(dest); err == nil {
		dest = abs
	}
	fmt.Printf("Saved to %s\n", dest)

	return nil
}

// RetryCmd resumes journaled uploads.
type RetryCmd struct{}

func (c *RetryCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, appOptions{needBucket: true})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	pending, err := a.portal.Uploads().Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending uploads: %w", err)
	}

	if len(pending) == 0 {
		fmt.Println("Nothing to retry.")
		return nil
	}

	recs, err := a.portal.RetryPending(ctx)
	for _, rec := range recs {
		fmt.Printf("%s: %s\n", rec.ID, rec.Status)
	}

	if err != nil {
		fmt.Printf("%d of %d uploads still pending\n", len(pending)-len(recs), len(pending))
		return err
	}

	return nil
}

// DevicesCmd lists capture devices.
type DevicesCmd struct{}

func (c *DevicesCmd) Run() error {
	devices, err := audio.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	slog.Info("Found audio devices", "count", len(devices))

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
		)
	}

	return nil
}

func findRecording(ctx context.Context, a *app, id string) (recording.Record, error) {
	if _, err := a.portal.ListCatalog(ctx); err != nil {
		return recording.Record{}, fmt.Errorf("failed to list recordings: %w", err)
	}

	rec, ok := a.portal.Catalog().Find(id)
	if !ok {
		return recording.Record{}, fmt.Errorf("%w: %s", recording.ErrNotFound, id)
	}

	return rec, nil
}

func main() {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("consult"),
		kong.Description("Record telemedicine consultations and manage their recordings."),
	)
	err := ctx.Run()
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
