// Package catalog is the client-side cache of recording records.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/alkime/consults/internal/recording"
	"github.com/alkime/consults/pkg/channels"
	"github.com/alkime/consults/pkg/collections"
)

// Source lists the recordings known to the backend.
type Source interface {
	ListRecordings(ctx context.Context) ([]recording.Record, error)
}

// Update is published whenever the catalog contents change.
type Update struct {
	Entries []recording.Record
	// Inserted is set when the change came from Insert.
	Inserted *recording.Record
}

// Catalog holds the display list. It is fetched once and afterwards only
// grows through Insert; it never polls.
type Catalog struct {
	source Source
	logger *slog.Logger
	events *channels.Broadcaster[Update]

	mu      sync.RWMutex
	entries []recording.Record
	loaded  bool
}

func New(source Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}

	return &Catalog{
		source: source,
		logger: logger,
		events: channels.NewBroadcaster[Update](),
	}
}

func (c *Catalog) Subscribe(ch chan<- Update) (func(), error) {
	return c.events.Subscribe(ch)
}

// Load fetches the list on first use and returns the cached list afterwards.
func (c *Catalog) Load(ctx context.Context) ([]recording.Record, error) {
	c.mu.RLock()
	if c.loaded {
		defer c.mu.RUnlock()
		return slices.Clone(c.entries), nil
	}
	c.mu.RUnlock()

	return c.Reload(ctx)
}

// Reload replaces the cache with a fresh fetch. Records inserted locally
// that the backend does not list yet are kept at the front.
func (c *Catalog) Reload(ctx context.Context) ([]recording.Record, error) {
	fetched, err := c.source.ListRecordings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	seen := collections.Index(fetched, func(r recording.Record) string { return r.ID })

	c.mu.Lock()
	local := collections.Filter(c.entries, func(r recording.Record) bool {
		_, ok := seen[r.ID]
		return !ok
	})

	c.entries = append(local, fetched...)
	c.loaded = true
	out := slices.Clone(c.entries)
	c.events.Publish(Update{Entries: slices.Clone(out)})
	c.mu.Unlock()

	c.logger.Debug("catalog loaded", "count", len(out))

	return out, nil
}

// Insert merges a finalized record: an existing entry with the same id is
// replaced in place, otherwise the record is prepended.
func (c *Catalog) Insert(rec recording.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing invalid record %s: %w", rec.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := slices.IndexFunc(c.entries, func(r recording.Record) bool { return r.ID == rec.ID }); i >= 0 {
		c.entries[i] = rec
	} else {
		c.entries = slices.Insert(c.entries, 0, rec)
	}

	c.events.Publish(Update{Entries: slices.Clone(c.entries), Inserted: &rec})

	return nil
}

// Entries returns a copy of the cached list without fetching.
func (c *Catalog) Entries() []recording.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.entries)
}

func (c *Catalog) Find(id string) (recording.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.entries {
		if r.ID == id {
			return r, true
		}
	}

	return recording.Record{}, false
}

func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.loaded
}
