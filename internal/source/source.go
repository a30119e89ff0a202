// Package source abstracts video decoding behind a frame source contract.
// The pipeline is written against Source only and never special-cases a
// backend; the ffmpeg rawvideo pipe in this package is the production
// implementation, and tests substitute synthetic sources.
package source

import (
	"image"

	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// Source yields decoded frames in presentation order.
//
// Read returns io.EOF at end of stream and must support forward sequential
// reads. Seek is best-effort; Framerate and FrameSize are exact and constant
// for the life of the source.
type Source interface {
	// Read decodes and returns the next frame, or io.EOF.
	Read() (*image.RGBA, error)

	// Seek repositions the stream so the next Read returns the frame at
	// pos.
	Seek(pos timecode.Timecode) error

	// Duration is the total length of the stream.
	Duration() timecode.Timecode

	// Framerate is the stream's constant frames-per-second.
	Framerate() float64

	// FrameSize returns the decoded frame dimensions.
	FrameSize() (width, height int)

	// Close releases the decoder.
	Close() error
}
