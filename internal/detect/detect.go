// Package detect implements shot boundary detectors.
//
// A detector consumes frames in order and emits cut positions. Three
// detectors ship here: content (frame-to-frame HSL/edge difference),
// adaptive (content score against a rolling local average) and threshold
// (fade to/from a brightness floor). Perceptual-hash and histogram
// detectors follow the same shape as the content detector — score a frame
// against the previous one, cut on threshold — and would slot in as
// further Detector implementations.
package detect

import (
	"errors"
	"image"

	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// ErrInvalidFrame is returned for frames a detector cannot score: nil,
// empty, or a different size than earlier frames in the run. It is fatal
// for the run — a corrupt frame breaks temporal adjacency for everything
// after it.
var ErrInvalidFrame = errors.New("invalid frame")

// Detector consumes frames in strictly increasing order and reports cuts.
type Detector interface {
	// ProcessFrame scores one frame and returns any cuts decided by it.
	// A cut may refer to an earlier frame when the detector needs
	// look-ahead before committing.
	ProcessFrame(pos timecode.Timecode, frame *image.RGBA) ([]timecode.Timecode, error)

	// Finish flushes decisions still pending at end of stream.
	Finish() ([]timecode.Timecode, error)

	// Metrics lists the statsfile metric names this detector owns.
	Metrics() []string
}
