// Package stats holds per-frame detection metrics and persists them as a
// statsfile, so repeated detection passes over the same video can skip the
// expensive per-frame scoring entirely.
package stats

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kikiluvv/scenecut/pkg/timecode"
)

var (
	// ErrMetricConflict is returned when a metric name already claimed by
	// one detector is registered by another.
	ErrMetricConflict = errors.New("metric name conflict")

	// ErrCorruptCache is returned when a statsfile cannot be parsed.
	ErrCorruptCache = errors.New("corrupt statsfile")
)

// Cache maps frame numbers to named float metrics. Metric names are claimed
// by an owner at registration time; each detector writes only its own names,
// which is what lets detectors share one cache without locking. A cache only
// ever grows during a run.
type Cache struct {
	rate    float64
	owners  map[string]string
	columns []string
	rows    map[int]map[string]float64
}

// New returns an empty cache bound to the active video's framerate.
func New(rate float64) (*Cache, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: framerate %v must be positive", timecode.ErrInvalidTimecode, rate)
	}
	return &Cache{
		rate:   rate,
		owners: make(map[string]string),
		rows:   make(map[int]map[string]float64),
	}, nil
}

// Framerate returns the rate the cached metrics were computed against.
func (c *Cache) Framerate() float64 { return c.rate }

// Register claims metric names for an owner. Registering a name the same
// owner already holds is a no-op; claiming a name held by a different owner
// fails with ErrMetricConflict.
func (c *Cache) Register(owner string, names ...string) error {
	for _, name := range names {
		current, known := c.owners[name]
		switch {
		case !known:
			c.owners[name] = owner
			c.columns = append(c.columns, name)
		case current == "" && owner != "":
			// column came in unowned from a loaded statsfile
			c.owners[name] = owner
		case current != owner:
			return fmt.Errorf("%w: %q already registered by %q", ErrMetricConflict, name, current)
		}
	}
	return nil
}

// Get returns the stored value for a frame's metric. The second return
// distinguishes "never computed" from a computed zero.
func (c *Cache) Get(frame int, name string) (float64, bool) {
	row, ok := c.rows[frame]
	if !ok {
		return 0, false
	}
	v, ok := row[name]
	return v, ok
}

// Set stores a metric value for a frame, overwriting any previous value.
// Unregistered names are added as unowned columns so they survive a save.
func (c *Cache) Set(frame int, name string, value float64) {
	if _, known := c.owners[name]; !known {
		c.owners[name] = ""
		c.columns = append(c.columns, name)
	}
	row, ok := c.rows[frame]
	if !ok {
		row = make(map[string]float64, len(c.columns))
		c.rows[frame] = row
	}
	row[name] = value
}

// HasAll reports whether every named metric is present for the frame.
// Detectors call this before recomputing a frame's scores.
func (c *Cache) HasAll(frame int, names ...string) bool {
	row, ok := c.rows[frame]
	if !ok {
		return false
	}
	for _, name := range names {
		if _, ok := row[name]; !ok {
			return false
		}
	}
	return true
}

// Metrics returns all known metric names in registration order.
func (c *Cache) Metrics() []string {
	out := make([]string, len(c.columns))
	copy(out, c.columns)
	return out
}

// Frames returns all frame numbers with at least one metric, ascending.
func (c *Cache) Frames() []int {
	out := make([]int, 0, len(c.rows))
	for f := range c.rows {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of frames with cached metrics.
func (c *Cache) Len() int { return len(c.rows) }
