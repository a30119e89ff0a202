package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// statsfile layout:
//
//	frame_rate,29.970000
//	frame_number,content_val,delta_hue,...
//	0,0.000,0.000,...
//
// The framerate header is what makes a stale statsfile detectable: metrics
// computed at one rate are meaningless at another.

const rateHeader = "frame_rate"
const frameHeader = "frame_number"

// Load reads a statsfile into the cache. The file's framerate must match the
// cache's within timecode.MaxRateDelta or the whole file is rejected with
// ErrFramerateMismatch. Any malformed row fails with ErrCorruptCache and
// nothing is committed; a load either lands completely or not at all.
func (c *Cache) Load(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil || len(header) != 2 || header[0] != rateHeader {
		return fmt.Errorf("%w: missing framerate header", ErrCorruptCache)
	}
	rate, err := strconv.ParseFloat(header[1], 64)
	if err != nil || rate <= 0 {
		return fmt.Errorf("%w: bad framerate %q", ErrCorruptCache, header[1])
	}
	if math.Abs(rate-c.rate) > timecode.MaxRateDelta {
		return fmt.Errorf("%w: statsfile %v vs video %v", timecode.ErrFramerateMismatch, rate, c.rate)
	}

	columns, err := cr.Read()
	if err != nil || len(columns) < 1 || columns[0] != frameHeader {
		return fmt.Errorf("%w: missing column header", ErrCorruptCache)
	}
	columns = columns[1:]

	rows := make(map[int]map[string]float64)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptCache, err)
		}
		if len(record) != len(columns)+1 {
			return fmt.Errorf("%w: row has %d fields, want %d", ErrCorruptCache, len(record), len(columns)+1)
		}
		frame, err := strconv.Atoi(record[0])
		if err != nil || frame < 0 {
			return fmt.Errorf("%w: bad frame number %q", ErrCorruptCache, record[0])
		}
		row := make(map[string]float64, len(columns))
		for i, name := range columns {
			field := record[i+1]
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return fmt.Errorf("%w: bad value %q for %s@%d", ErrCorruptCache, field, name, frame)
			}
			row[name] = v
		}
		rows[frame] = row
	}

	// commit only after the whole file parsed cleanly
	for _, name := range columns {
		if _, known := c.owners[name]; !known {
			c.owners[name] = ""
			c.columns = append(c.columns, name)
		}
	}
	for frame, row := range rows {
		dst, ok := c.rows[frame]
		if !ok {
			dst = make(map[string]float64, len(row))
			c.rows[frame] = dst
		}
		for name, v := range row {
			dst[name] = v
		}
	}
	return nil
}

// Save writes the full table, one row per frame in ascending order. Columns
// that were loaded but never re-registered are written back untouched, so a
// statsfile survives round-trips through detector versions that don't know
// all of its metrics.
func (c *Cache) Save(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{rateHeader, strconv.FormatFloat(c.rate, 'f', 6, 64)}); err != nil {
		return fmt.Errorf("write statsfile header: %w", err)
	}
	header := append([]string{frameHeader}, c.columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write statsfile columns: %w", err)
	}

	record := make([]string, len(header))
	for _, frame := range c.Frames() {
		record[0] = strconv.Itoa(frame)
		row := c.rows[frame]
		for i, name := range c.columns {
			if v, ok := row[name]; ok {
				record[i+1] = strconv.FormatFloat(v, 'f', 3, 64)
			} else {
				record[i+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write statsfile row %d: %w", frame, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush statsfile: %w", err)
	}
	return nil
}

// LoadFile loads a statsfile from disk. A missing file is not an error; the
// cache just stays empty.
func (c *Cache) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return c.Load(f)
}

// SaveFile writes the statsfile to disk.
func (c *Cache) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
