package detect

import (
	"image"
	"math"

	"github.com/kikiluvv/scenecut/internal/stats"
	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// MetricBrightness is the statsfile metric owned by the threshold detector.
const MetricBrightness = "brightness"

// ThresholdConfig configures a ThresholdDetector.
type ThresholdConfig struct {
	// Threshold is the mean pixel intensity (0-255) below which a frame
	// counts as faded out. Zero is a sentinel for the default; a fade
	// through true black still registers with any small positive value.
	Threshold float64
	// FadeBias places the cut within the fade span: -1 at the fade-out
	// frame, 0 at the midpoint, +1 at the fade-in frame.
	FadeBias float64
	// AddLastScene synthesizes a final cut at the last fade-out position
	// when the stream ends still below the threshold.
	AddLastScene bool
}

// DefaultThresholdConfig returns the stock fade detector tuning.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{Threshold: 12, AddLastScene: true}
}

// ThresholdDetector cuts on fades through a brightness floor. It is a
// two-state machine: in the normal state a drop below the threshold records
// a pending fade-out; in the faded state a rise back above it places one cut
// between the fade-out and fade-in frames (weighted by FadeBias) and returns
// to normal. Edge-triggered, unlike the score detectors — a long black span
// produces one cut, not one per dark frame.
type ThresholdDetector struct {
	cfg   ThresholdConfig
	cache *stats.Cache

	started bool
	below   bool
	fadeOut timecode.Timecode
}

// NewThresholdDetector builds a fade detector writing into cache.
func NewThresholdDetector(cfg ThresholdConfig, cache *stats.Cache) (*ThresholdDetector, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThresholdConfig().Threshold
	}
	d := &ThresholdDetector{cfg: cfg, cache: cache}
	if cache != nil {
		if err := cache.Register("threshold", MetricBrightness); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Metrics implements Detector.
func (d *ThresholdDetector) Metrics() []string {
	return []string{MetricBrightness}
}

// ProcessFrame implements Detector.
func (d *ThresholdDetector) ProcessFrame(pos timecode.Timecode, frame *image.RGBA) ([]timecode.Timecode, error) {
	var brightness float64
	if d.cache != nil && d.cache.HasAll(pos.Frame(), MetricBrightness) {
		brightness, _ = d.cache.Get(pos.Frame(), MetricBrightness)
	} else {
		var err error
		brightness, err = meanBrightness(frame)
		if err != nil {
			return nil, err
		}
		if d.cache != nil {
			d.cache.Set(pos.Frame(), MetricBrightness, brightness)
		}
	}

	dark := brightness < d.cfg.Threshold
	if !d.started {
		d.started = true
		d.below = dark
		if dark {
			d.fadeOut = pos
		}
		return nil, nil
	}

	var cuts []timecode.Timecode
	switch {
	case !d.below && dark:
		d.fadeOut = pos
		d.below = true
	case d.below && !dark:
		cuts = append(cuts, d.placeCut(pos))
		d.below = false
	}
	return cuts, nil
}

// Finish implements Detector.
func (d *ThresholdDetector) Finish() ([]timecode.Timecode, error) {
	if d.started && d.below && d.cfg.AddLastScene && d.fadeOut.Frame() > 0 {
		return []timecode.Timecode{d.fadeOut}, nil
	}
	return nil, nil
}

// placeCut positions the cut within [fadeOut, fadeIn] according to FadeBias.
func (d *ThresholdDetector) placeCut(fadeIn timecode.Timecode) timecode.Timecode {
	span := fadeIn.DistanceFrames(d.fadeOut)
	offset := int(math.Round(float64(span) * (d.cfg.FadeBias + 1) / 2))
	return d.fadeOut.AddFrames(offset)
}
