// Package timecode provides frame-accurate positions within a video.
//
// A Timecode pins a frame number to a fixed framerate, so converting between
// frames, seconds and "HH:MM:SS.mmm" strings never drifts the way float
// second arithmetic does against rational rates like 30000/1001.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidTimecode is returned for malformed timecode strings,
	// negative frame counts, or non-positive framerates.
	ErrInvalidTimecode = errors.New("invalid timecode")

	// ErrFramerateMismatch is returned when two timecodes with different
	// framerates are combined.
	ErrFramerateMismatch = errors.New("framerate mismatch")
)

// MaxRateDelta is the tolerance used when comparing framerates. Container
// formats store rates as rationals (30000/1001), so two descriptions of the
// same rate rarely compare exactly equal once printed and re-parsed.
const MaxRateDelta = 1.0 / 100000

// Timecode is an immutable frame position bound to a framerate.
// The zero value is frame 0 at rate 0 and is only useful for IsZero checks;
// construct real values with New, FromSeconds or Parse.
type Timecode struct {
	frame int
	rate  float64
}

// New returns the timecode for an absolute frame number at the given rate.
func New(frame int, rate float64) (Timecode, error) {
	if frame < 0 {
		return Timecode{}, fmt.Errorf("%w: negative frame %d", ErrInvalidTimecode, frame)
	}
	if rate <= 0 {
		return Timecode{}, fmt.Errorf("%w: framerate %v must be positive", ErrInvalidTimecode, rate)
	}
	return Timecode{frame: frame, rate: rate}, nil
}

// FromSeconds returns the timecode for a position in seconds, rounded to the
// nearest frame.
func FromSeconds(seconds, rate float64) (Timecode, error) {
	if seconds < 0 {
		return Timecode{}, fmt.Errorf("%w: negative seconds %v", ErrInvalidTimecode, seconds)
	}
	if rate <= 0 {
		return Timecode{}, fmt.Errorf("%w: framerate %v must be positive", ErrInvalidTimecode, rate)
	}
	return Timecode{frame: int(math.Round(seconds * rate)), rate: rate}, nil
}

// Parse converts a timestamp string to a timecode. Accepted forms are
// "HH:MM:SS.mmm", "MM:SS" and plain seconds ("45.5"), matching what ffmpeg
// tooling prints.
func Parse(s string, rate float64) (Timecode, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")

	var hours, minutes, seconds float64
	var err error

	switch len(parts) {
	case 1:
		seconds, err = strconv.ParseFloat(parts[0], 64)
	case 2:
		minutes, err = parseClockField(parts[0])
		if err == nil {
			seconds, err = strconv.ParseFloat(parts[1], 64)
		}
	case 3:
		hours, err = parseClockField(parts[0])
		if err == nil {
			minutes, err = parseClockField(parts[1])
		}
		if err == nil {
			seconds, err = strconv.ParseFloat(parts[2], 64)
		}
	default:
		err = fmt.Errorf("too many fields")
	}
	if err != nil || seconds < 0 || minutes < 0 || hours < 0 || (len(parts) > 1 && seconds >= 60) {
		return Timecode{}, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	return FromSeconds(hours*3600+minutes*60+seconds, rate)
}

func parseClockField(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return v, nil
}

// Frame returns the absolute frame number.
func (t Timecode) Frame() int { return t.frame }

// Rate returns the framerate the position is bound to.
func (t Timecode) Rate() float64 { return t.rate }

// Seconds returns the position in seconds.
func (t Timecode) Seconds() float64 {
	if t.rate == 0 {
		return 0
	}
	return float64(t.frame) / t.rate
}

// String formats the position as "HH:MM:SS.mmm".
func (t Timecode) String() string {
	secs := t.Seconds()
	hours := int(secs / 3600)
	minutes := int((secs - float64(hours*3600)) / 60)
	rem := secs - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, rem)
}

// IsZero reports whether the position is frame 0.
func (t Timecode) IsZero() bool { return t.frame == 0 }

// SameRate reports whether o's framerate matches t's within MaxRateDelta.
func (t Timecode) SameRate(o Timecode) bool {
	return math.Abs(t.rate-o.rate) <= MaxRateDelta
}

// AddFrames returns the position n frames later. Negative n moves backwards
// and clamps at frame 0.
func (t Timecode) AddFrames(n int) Timecode {
	f := t.frame + n
	if f < 0 {
		f = 0
	}
	return Timecode{frame: f, rate: t.rate}
}

// AddSeconds returns the position s seconds later, rounded to the nearest
// frame. Negative s moves backwards and clamps at frame 0.
func (t Timecode) AddSeconds(s float64) Timecode {
	return t.AddFrames(int(math.Round(s * t.rate)))
}

// AddString parses a timestamp string and adds it as an offset.
func (t Timecode) AddString(s string) (Timecode, error) {
	o, err := Parse(s, t.rate)
	if err != nil {
		return Timecode{}, err
	}
	return t.AddFrames(o.frame), nil
}

// SubString parses a timestamp string and subtracts it as an offset,
// clamping at frame 0 like Sub.
func (t Timecode) SubString(s string) (Timecode, error) {
	o, err := Parse(s, t.rate)
	if err != nil {
		return Timecode{}, err
	}
	return t.AddFrames(-o.frame), nil
}

// Add returns t advanced by o's frame count. The framerates must match
// within MaxRateDelta.
func (t Timecode) Add(o Timecode) (Timecode, error) {
	if !t.SameRate(o) {
		return Timecode{}, fmt.Errorf("%w: %v vs %v", ErrFramerateMismatch, t.rate, o.rate)
	}
	return t.AddFrames(o.frame), nil
}

// Sub returns t moved back by o's frame count. A result before frame 0
// clamps to frame 0 rather than failing; callers that need the signed
// distance should use DistanceFrames. This asymmetry with Add is
// longstanding documented behaviour that downstream callers rely on.
func (t Timecode) Sub(o Timecode) (Timecode, error) {
	if !t.SameRate(o) {
		return Timecode{}, fmt.Errorf("%w: %v vs %v", ErrFramerateMismatch, t.rate, o.rate)
	}
	return t.AddFrames(-o.frame), nil
}

// DistanceFrames returns the signed frame distance t - o.
func (t Timecode) DistanceFrames(o Timecode) int {
	return t.frame - o.frame
}

// Cmp compares two positions by frame number: -1 if t < o, 0 if equal,
// +1 if t > o.
func (t Timecode) Cmp(o Timecode) int {
	switch {
	case t.frame < o.frame:
		return -1
	case t.frame > o.frame:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly earlier than o.
func (t Timecode) Before(o Timecode) bool { return t.frame < o.frame }

// After reports whether t is strictly later than o.
func (t Timecode) After(o Timecode) bool { return t.frame > o.frame }

// Equal reports whether t and o name the same frame.
func (t Timecode) Equal(o Timecode) bool { return t.frame == o.frame }
