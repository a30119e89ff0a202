package detect

import (
	"image"
	"testing"

	"github.com/kikiluvv/scenecut/internal/stats"
	"github.com/kikiluvv/scenecut/pkg/timecode"
)

const testRate = 10.0

func solidFrame(v uint8) *image.RGBA {
	return colorFrame(v, v, v)
}

func colorFrame(r, g, b uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = 255
	}
	return img
}

func pos(t *testing.T, frame int) timecode.Timecode {
	t.Helper()
	tc, err := timecode.New(frame, testRate)
	if err != nil {
		t.Fatalf("timecode for frame %d: %v", frame, err)
	}
	return tc
}

// runDetector feeds frames in order and collects all cut frame numbers.
func runDetector(t *testing.T, d Detector, frames []*image.RGBA) []int {
	t.Helper()
	var cuts []int
	for i, frame := range frames {
		got, err := d.ProcessFrame(pos(t, i), frame)
		if err != nil {
			t.Fatalf("ProcessFrame(%d): %v", i, err)
		}
		for _, c := range got {
			cuts = append(cuts, c.Frame())
		}
	}
	got, err := d.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	for _, c := range got {
		cuts = append(cuts, c.Frame())
	}
	return cuts
}

func TestContentDetectorGrayToWhiteCut(t *testing.T) {
	frames := make([]*image.RGBA, 100)
	for i := range frames {
		if i < 50 {
			frames[i] = solidFrame(80)
		} else {
			frames[i] = solidFrame(255)
		}
	}

	d, err := NewContentDetector(ContentConfig{
		Threshold: 25,
		Weights:   ContentWeights{Lum: 1},
	}, nil)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}

	cuts := runDetector(t, d, frames)
	if len(cuts) != 1 {
		t.Fatalf("expected exactly one cut, got %v", cuts)
	}
	if cuts[0] < 49 || cuts[0] > 51 {
		t.Errorf("cut at frame %d, want 50 +/- 1", cuts[0])
	}
}

func TestContentDetectorOneCutPerRun(t *testing.T) {
	// alternating frames keep the score above threshold continuously;
	// only the first crossing may cut
	frames := make([]*image.RGBA, 20)
	for i := range frames {
		if i%2 == 0 {
			frames[i] = solidFrame(40)
		} else {
			frames[i] = solidFrame(220)
		}
	}

	d, err := NewContentDetector(ContentConfig{Threshold: 25, Weights: ContentWeights{Lum: 1}}, nil)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}

	cuts := runDetector(t, d, frames)
	if len(cuts) != 1 || cuts[0] != 1 {
		t.Errorf("expected a single cut at frame 1, got %v", cuts)
	}
}

func TestContentDetectorNoCutOnFirstFrame(t *testing.T) {
	d, err := NewContentDetector(DefaultContentConfig(), nil)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}
	cuts := runDetector(t, d, []*image.RGBA{solidFrame(255)})
	if len(cuts) != 0 {
		t.Errorf("first frame must not cut, got %v", cuts)
	}
}

func TestContentDetectorZeroConfigDefaults(t *testing.T) {
	// the zero config is a sentinel for the stock tuning, not a
	// cut-everything threshold
	d, err := NewContentDetector(ContentConfig{}, nil)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}

	// gray 80 -> gray 100 scores ~6.7 with the default weights, under the
	// default threshold of 27; the jump to white scores well above it
	frames := []*image.RGBA{solidFrame(80), solidFrame(100), solidFrame(255)}
	cuts := runDetector(t, d, frames)
	if len(cuts) != 1 || cuts[0] != 2 {
		t.Errorf("expected a single cut at frame 2, got %v", cuts)
	}
}

func TestContentDetectorRecordsComponents(t *testing.T) {
	cache, err := stats.New(testRate)
	if err != nil {
		t.Fatalf("stats.New: %v", err)
	}
	d, err := NewContentDetector(DefaultContentConfig(), cache)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}

	runDetector(t, d, []*image.RGBA{colorFrame(200, 30, 30), colorFrame(30, 200, 30)})

	for _, name := range d.Metrics() {
		if _, ok := cache.Get(1, name); !ok {
			t.Errorf("metric %s not recorded for frame 1", name)
		}
	}
	hue, _ := cache.Get(1, MetricDeltaHue)
	if hue <= 0 {
		t.Errorf("red to green transition should move hue, got %v", hue)
	}
}

func TestContentDetectorCacheHitSkipsComputation(t *testing.T) {
	frames := make([]*image.RGBA, 60)
	for i := range frames {
		if i < 30 {
			frames[i] = solidFrame(80)
		} else {
			frames[i] = solidFrame(255)
		}
	}

	cache, err := stats.New(testRate)
	if err != nil {
		t.Fatalf("stats.New: %v", err)
	}
	first, err := NewContentDetector(DefaultContentConfig(), cache)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}
	want := runDetector(t, first, frames)

	// second pass over the same cache: every frame is a cache hit, so nil
	// frames prove no pixel data is ever touched
	second, err := NewContentDetector(DefaultContentConfig(), cache)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}
	nilFrames := make([]*image.RGBA, len(frames))
	got := runDetector(t, second, nilFrames)

	if len(got) != len(want) {
		t.Fatalf("cached pass cuts %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("cached pass cuts %v, want %v", got, want)
		}
	}
}

func TestContentDetectorInvalidFrames(t *testing.T) {
	d, err := NewContentDetector(DefaultContentConfig(), nil)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}

	if _, err := d.ProcessFrame(pos(t, 0), nil); err == nil {
		t.Error("nil frame must fail")
	}

	d2, err := NewContentDetector(DefaultContentConfig(), nil)
	if err != nil {
		t.Fatalf("NewContentDetector: %v", err)
	}
	if _, err := d2.ProcessFrame(pos(t, 0), solidFrame(100)); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	_, err = d2.ProcessFrame(pos(t, 1), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err == nil {
		t.Error("frame size change must fail")
	}
}
