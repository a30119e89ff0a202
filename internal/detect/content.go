package detect

import (
	"fmt"
	"image"

	"github.com/kikiluvv/scenecut/internal/stats"
	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// Metric names owned by the content detector. All components are recorded,
// not just the combined score, so thresholds can be re-tuned from the
// statsfile without decoding the video again.
const (
	MetricContentVal = "content_val"
	MetricDeltaHue   = "delta_hue"
	MetricDeltaSat   = "delta_sat"
	MetricDeltaLum   = "delta_lum"
	MetricDeltaEdges = "delta_edges"
)

// ContentWeights blends the per-channel deltas into the content score.
type ContentWeights struct {
	Hue   float64
	Sat   float64
	Lum   float64
	Edges float64
}

// DefaultContentWeights weighs hue, saturation and luma equally and leaves
// edges off. Edge maps are the most expensive component to compute and the
// least reliable across content types, so they are opt-in.
func DefaultContentWeights() ContentWeights {
	return ContentWeights{Hue: 1, Sat: 1, Lum: 1}
}

func (w ContentWeights) sum() float64 { return w.Hue + w.Sat + w.Lum + w.Edges }

// ContentConfig configures a ContentDetector.
type ContentConfig struct {
	// Threshold is the content score (0-255) at or above which a cut is
	// reported. Zero is a sentinel for the default; a run that should cut
	// on every scored frame uses a small positive value instead.
	// Out-of-range values are not rejected; a bad threshold yields a bad
	// scene list, which is the intended tuning workflow.
	Threshold float64
	Weights   ContentWeights
}

// DefaultContentConfig returns the stock content detector tuning.
func DefaultContentConfig() ContentConfig {
	return ContentConfig{Threshold: 27, Weights: DefaultContentWeights()}
}

// ContentDetector cuts where consecutive frames differ sharply in colour.
// Each frame is converted to hue/saturation/value planes (plus a Sobel edge
// map when edges are weighted); the average per-pixel change in each channel
// is blended by the weight vector into a 0-255 score, and the first frame of
// each contiguous above-threshold run is a cut.
type ContentDetector struct {
	cfg   ContentConfig
	cache *stats.Cache

	last  *planes
	above bool
}

// NewContentDetector builds a content detector writing into cache. A nil
// cache disables metric reuse but not detection.
func NewContentDetector(cfg ContentConfig, cache *stats.Cache) (*ContentDetector, error) {
	if cfg.Weights == (ContentWeights{}) {
		cfg.Weights = DefaultContentWeights()
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultContentConfig().Threshold
	}
	d := &ContentDetector{cfg: cfg, cache: cache}
	if cache != nil {
		if err := cache.Register("content", d.Metrics()...); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Metrics implements Detector.
func (d *ContentDetector) Metrics() []string {
	return []string{MetricContentVal, MetricDeltaHue, MetricDeltaSat, MetricDeltaLum, MetricDeltaEdges}
}

// score computes (or reads back) the content score for one frame.
func (d *ContentDetector) score(pos timecode.Timecode, frame *image.RGBA) (float64, error) {
	if d.cache != nil && d.cache.HasAll(pos.Frame(), d.Metrics()...) {
		v, _ := d.cache.Get(pos.Frame(), MetricContentVal)
		return v, nil
	}

	withEdges := d.cfg.Weights.Edges != 0
	cur, err := analyze(frame, withEdges)
	if err != nil {
		return 0, err
	}

	var dh, ds, dl, de float64
	if d.last != nil {
		if d.last.w != cur.w || d.last.h != cur.h {
			return 0, fmt.Errorf("%w: frame size changed from %dx%d to %dx%d",
				ErrInvalidFrame, d.last.w, d.last.h, cur.w, cur.h)
		}
		dh = meanAbsDiff(d.last.hue, cur.hue)
		ds = meanAbsDiff(d.last.sat, cur.sat)
		dl = meanAbsDiff(d.last.lum, cur.lum)
		if withEdges {
			de = meanAbsDiff(d.last.edges, cur.edges)
		}
	}
	d.last = cur

	var score float64
	if sum := d.cfg.Weights.sum(); sum != 0 {
		score = (d.cfg.Weights.Hue*dh + d.cfg.Weights.Sat*ds +
			d.cfg.Weights.Lum*dl + d.cfg.Weights.Edges*de) / sum
	}

	if d.cache != nil {
		d.cache.Set(pos.Frame(), MetricDeltaHue, dh)
		d.cache.Set(pos.Frame(), MetricDeltaSat, ds)
		d.cache.Set(pos.Frame(), MetricDeltaLum, dl)
		d.cache.Set(pos.Frame(), MetricDeltaEdges, de)
		d.cache.Set(pos.Frame(), MetricContentVal, score)
	}
	return score, nil
}

// ProcessFrame implements Detector.
func (d *ContentDetector) ProcessFrame(pos timecode.Timecode, frame *image.RGBA) ([]timecode.Timecode, error) {
	score, err := d.score(pos, frame)
	if err != nil {
		return nil, err
	}

	var cuts []timecode.Timecode
	hit := score >= d.cfg.Threshold
	if hit && !d.above && pos.Frame() > 0 {
		cuts = append(cuts, pos)
	}
	d.above = hit
	return cuts, nil
}

// Finish implements Detector. The content detector holds no look-ahead
// state, so there is nothing to flush.
func (d *ContentDetector) Finish() ([]timecode.Timecode, error) {
	return nil, nil
}
