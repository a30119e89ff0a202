// Package pipeline drives frames from a source through a detector set and
// turns the raw cut points into a scene list.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/internal/detect"
	"github.com/kikiluvv/scenecut/internal/logging"
	"github.com/kikiluvv/scenecut/internal/source"
	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// DefaultMinSceneLenSeconds is the minimum scene length applied when
// Options.MinSceneLen is unset.
const DefaultMinSceneLenSeconds = 0.6

// Options configures a detection run. The zero value means: whole stream,
// default minimum scene length, merge short scenes forward, auto workers
// and downscale.
type Options struct {
	// Start is the first frame to analyze. Unset (zero rate) means the
	// beginning of the stream.
	Start timecode.Timecode
	// End bounds the run exclusively. Unset means end of stream.
	End timecode.Timecode
	// Duration bounds the run relative to Start and is an alternative to
	// End; when both are set, End wins.
	Duration timecode.Timecode

	// MinSceneLen is the shortest scene the final list may contain.
	MinSceneLen timecode.Timecode
	// DropShortScenes discards short scenes instead of merging them into
	// the following scene.
	DropShortScenes bool
	// MergeLastScene folds a short final scene into the previous one
	// instead of leaving it in place.
	MergeLastScene bool

	// Workers is the downscale worker count; 0 picks from GOMAXPROCS.
	Workers int
	// QueueSize bounds the frames in flight between decode and dispatch;
	// 0 derives it from Workers. Producers block when it fills.
	QueueSize int
	// Downscale divides frame dimensions before scoring; 0 picks a factor
	// that brings the width under 256, 1 disables downscaling.
	Downscale int
}

// Manager orchestrates detection runs.
type Manager struct {
	logger zerolog.Logger
}

// New creates a pipeline manager.
func New(logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logging.WithComponent(logger, "pipeline"),
	}
}

type job struct {
	idx   int
	frame *image.RGBA
}

// Detect runs every detector over the source's frames and returns the scene
// list. Frames reach detectors in strictly increasing order regardless of
// how many downscale workers run. When the returned error is non-nil the
// scene list holds only what was finalized before the failure and must be
// treated as incomplete.
func (m *Manager) Detect(ctx context.Context, src source.Source, detectors []detect.Detector, opts Options) ([]Scene, error) {
	rate := src.Framerate()

	start := opts.Start
	if start.Rate() == 0 {
		var err error
		start, err = timecode.New(0, rate)
		if err != nil {
			return nil, err
		}
	}
	end := opts.End
	if end.Rate() == 0 {
		end = src.Duration()
		if opts.Duration.Rate() != 0 {
			end = start.AddFrames(opts.Duration.Frame())
		}
	}
	if end.Frame() > src.Duration().Frame() {
		end = src.Duration()
	}
	total := end.DistanceFrames(start)
	if total <= 0 {
		return nil, nil
	}

	if start.Frame() > 0 {
		if err := src.Seek(start); err != nil {
			return nil, fmt.Errorf("seek to %s: %w", start, err)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers > 4 {
			workers = 4
		}
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 2 * workers
	}
	factor := opts.Downscale
	if factor <= 0 {
		w, _ := src.FrameSize()
		factor = (w + 255) / 256
		if factor < 1 {
			factor = 1
		}
	}

	m.logger.Info().
		Str("start", start.String()).
		Str("end", end.String()).
		Int("frames", total).
		Int("detectors", len(detectors)).
		Int("workers", workers).
		Int("downscale", factor).
		Msg("starting detection")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, queue)
	scored := make(chan job, queue)
	ordered := make(chan job, queue)
	readErr := make(chan error, 1)

	// producer: decode is inherently sequential
	go func() {
		defer close(jobs)
		for idx := 0; idx < total; idx++ {
			frame, err := src.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				readErr <- fmt.Errorf("frame source: %w", err)
				return
			}
			select {
			case jobs <- job{idx: idx, frame: frame}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// downscale workers
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				j.frame = downscale(j.frame, factor)
				select {
				case scored <- j:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(scored)
	}()

	// restore decode order before dispatch; detectors depend on temporal
	// adjacency
	go func() {
		defer close(ordered)
		pending := make(map[int]*image.RGBA)
		next := 0
		for j := range scored {
			pending[j.idx] = j.frame
			for {
				frame, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case ordered <- job{idx: next, frame: frame}:
				case <-ctx.Done():
					return
				}
				next++
			}
		}
	}()

	cuts := newCutSet(start, end)
	processed := 0
	var runErr error

dispatch:
	for j := range ordered {
		pos := start.AddFrames(j.idx)
		for _, d := range detectors {
			found, err := d.ProcessFrame(pos, j.frame)
			if err != nil {
				runErr = fmt.Errorf("detector at frame %d: %w", pos.Frame(), err)
				break dispatch
			}
			cuts.add(m.logger, found)
		}
		processed++
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break dispatch
		default:
		}
	}

	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr == nil {
		select {
		case err := <-readErr:
			runErr = err
		default:
		}
	}
	if runErr != nil {
		// drain in-flight work so the goroutines exit, then report the
		// scenes that were final before the failure. Finish is not
		// called: cuts derived from a truncated look-ahead window are
		// not trustworthy.
		cancel()
		for range ordered {
		}
		scenes := m.assemble(cuts, start, start.AddFrames(processed), opts)
		m.logger.Error().Err(runErr).Int("frames", processed).Msg("detection aborted")
		return scenes, runErr
	}

	// drain look-ahead state
	for _, d := range detectors {
		found, err := d.Finish()
		if err != nil {
			return nil, fmt.Errorf("detector finish: %w", err)
		}
		cuts.add(m.logger, found)
	}

	realEnd := end
	if processed < total {
		// stream ended earlier than the container advertised
		realEnd = start.AddFrames(processed)
	}
	scenes := m.assemble(cuts, start, realEnd, opts)

	m.logger.Info().
		Int("frames", processed).
		Int("cuts", cuts.len()).
		Int("scenes", len(scenes)).
		Msg("detection complete")
	return scenes, nil
}

// downscale shrinks a frame by an integer factor. A nil frame passes through
// so the dispatch stage can reject it as invalid instead of a worker
// panicking on it.
func downscale(frame *image.RGBA, factor int) *image.RGBA {
	if frame == nil || factor <= 1 {
		return frame
	}
	b := frame.Bounds()
	w := uint(b.Dx() / factor)
	h := uint(b.Dy() / factor)
	if w == 0 || h == 0 {
		return frame
	}
	small := resize.Resize(w, h, frame, resize.Bilinear)
	if rgba, ok := small.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	sb := small.Bounds()
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(w); x++ {
			out.Set(x, y, small.At(sb.Min.X+x, sb.Min.Y+y))
		}
	}
	return out
}
