package detect

import (
	"image"

	"gonum.org/v1/gonum/stat"

	"github.com/kikiluvv/scenecut/internal/stats"
	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// MetricAdaptiveRatio is the statsfile metric owned by the adaptive detector.
const MetricAdaptiveRatio = "adaptive_ratio"

// AdaptiveConfig configures an AdaptiveDetector.
type AdaptiveConfig struct {
	// AdaptiveThreshold is the minimum ratio of a frame's content score to
	// the rolling average of its neighbours for a cut. Zero is a sentinel
	// for the default.
	AdaptiveThreshold float64
	// MinContentVal is an absolute floor the content score must also clear,
	// so near-static footage with a tiny rolling average can't cut on noise.
	MinContentVal float64
	// FrameWindow is the number of frames on each side of the candidate
	// included in the rolling average.
	FrameWindow int
	// Content tunes the wrapped content detector. Its threshold is unused
	// here; only its scores are.
	Content ContentConfig
}

// DefaultAdaptiveConfig returns the stock adaptive detector tuning.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		AdaptiveThreshold: 3.0,
		MinContentVal:     15.0,
		FrameWindow:       2,
		Content:           DefaultContentConfig(),
	}
}

type scoredFrame struct {
	pos   timecode.Timecode
	score float64
}

// AdaptiveDetector cuts where the content score spikes relative to a rolling
// average of the surrounding frames. Gradual lighting or motion changes lift
// the average along with the score, holding the ratio near 1; a hard cut
// spikes far above it. The average needs future frames, so a decision for
// frame N is only made once frame N+W has been seen, and the final W frames
// are decided in Finish.
//
// It composes a ContentDetector for scoring rather than extending one; the
// look-ahead bookkeeping stays local and the content detector's own cut
// logic is simply never consulted.
type AdaptiveDetector struct {
	cfg     AdaptiveConfig
	cache   *stats.Cache
	content *ContentDetector

	window []scoredFrame
	next   int // index into window of the next undecided frame
	above  bool
}

// NewAdaptiveDetector builds an adaptive detector writing into cache.
func NewAdaptiveDetector(cfg AdaptiveConfig, cache *stats.Cache) (*AdaptiveDetector, error) {
	if cfg.FrameWindow <= 0 {
		cfg.FrameWindow = DefaultAdaptiveConfig().FrameWindow
	}
	if cfg.AdaptiveThreshold == 0 {
		cfg.AdaptiveThreshold = DefaultAdaptiveConfig().AdaptiveThreshold
	}
	content, err := NewContentDetector(cfg.Content, cache)
	if err != nil {
		return nil, err
	}
	d := &AdaptiveDetector{cfg: cfg, cache: cache, content: content}
	if cache != nil {
		if err := cache.Register("adaptive", MetricAdaptiveRatio); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Metrics implements Detector. The wrapped content detector's metrics are
// registered under its own namespace, not reported here.
func (d *AdaptiveDetector) Metrics() []string {
	return []string{MetricAdaptiveRatio}
}

// ProcessFrame implements Detector.
func (d *AdaptiveDetector) ProcessFrame(pos timecode.Timecode, frame *image.RGBA) ([]timecode.Timecode, error) {
	score, err := d.content.score(pos, frame)
	if err != nil {
		return nil, err
	}
	d.window = append(d.window, scoredFrame{pos: pos, score: score})

	var cuts []timecode.Timecode
	// decide every frame that now has its full future half-window
	for d.next < len(d.window)-d.cfg.FrameWindow {
		if cut, ok := d.decide(d.next); ok {
			cuts = append(cuts, cut)
		}
		d.next++
	}
	d.trim()
	return cuts, nil
}

// Finish implements Detector. Frames still waiting on future context are
// decided against whatever trailing window exists; a pending spike at the
// very end of the stream is never dropped.
func (d *AdaptiveDetector) Finish() ([]timecode.Timecode, error) {
	var cuts []timecode.Timecode
	for ; d.next < len(d.window); d.next++ {
		if cut, ok := d.decide(d.next); ok {
			cuts = append(cuts, cut)
		}
	}
	return cuts, nil
}

// decide evaluates one frame against the rolling average of its neighbours.
func (d *AdaptiveDetector) decide(i int) (timecode.Timecode, bool) {
	f := d.window[i]

	lo := i - d.cfg.FrameWindow
	if lo < 0 {
		lo = 0
	}
	hi := i + 1 + d.cfg.FrameWindow
	if hi > len(d.window) {
		hi = len(d.window)
	}
	neighbours := make([]float64, 0, hi-lo-1)
	for j := lo; j < hi; j++ {
		if j != i {
			neighbours = append(neighbours, d.window[j].score)
		}
	}

	ratio := 255.0
	if len(neighbours) > 0 {
		if avg := stat.Mean(neighbours, nil); avg > 1e-5 {
			ratio = f.score / avg
		}
	}
	if d.cache != nil {
		d.cache.Set(f.pos.Frame(), MetricAdaptiveRatio, ratio)
	}

	hit := ratio >= d.cfg.AdaptiveThreshold && f.score >= d.cfg.MinContentVal
	cut := hit && !d.above && f.pos.Frame() > 0
	d.above = hit
	return f.pos, cut
}

// trim drops decided frames that have left every future window.
func (d *AdaptiveDetector) trim() {
	drop := d.next - d.cfg.FrameWindow
	if drop > 0 {
		d.window = append(d.window[:0], d.window[drop:]...)
		d.next -= drop
	}
}
