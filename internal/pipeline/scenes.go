package pipeline

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// Scene is the half-open interval [Start, End) between two cuts or stream
// boundaries. Downstream consumers (splitters, exporters) treat the list as
// an opaque ordered sequence of these pairs.
type Scene struct {
	Start timecode.Timecode
	End   timecode.Timecode
}

// LengthFrames returns the scene length in frames.
func (s Scene) LengthFrames() int {
	return s.End.DistanceFrames(s.Start)
}

// cutSet collects cut points from all detectors, deduplicated by frame
// number and clipped to the analyzed range.
type cutSet struct {
	lo, hi int
	byNum  map[int]timecode.Timecode
}

func newCutSet(start, end timecode.Timecode) *cutSet {
	return &cutSet{
		lo:    start.Frame(),
		hi:    end.Frame(),
		byNum: make(map[int]timecode.Timecode),
	}
}

func (c *cutSet) add(logger zerolog.Logger, cuts []timecode.Timecode) {
	for _, cut := range cuts {
		n := cut.Frame()
		if n <= c.lo || n >= c.hi {
			continue
		}
		if _, dup := c.byNum[n]; dup {
			continue
		}
		c.byNum[n] = cut
		logger.Debug().Int("frame", n).Str("time", cut.String()).Msg("cut point")
	}
}

func (c *cutSet) len() int { return len(c.byNum) }

func (c *cutSet) sorted() []timecode.Timecode {
	out := make([]timecode.Timecode, 0, len(c.byNum))
	for _, cut := range c.byNum {
		out = append(out, cut)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// assemble turns the cut set into contiguous scenes over [start, end) and
// applies the minimum-scene-length policy.
func (m *Manager) assemble(cuts *cutSet, start, end timecode.Timecode, opts Options) []Scene {
	if end.DistanceFrames(start) <= 0 {
		return nil
	}

	var scenes []Scene
	prev := start
	for _, cut := range cuts.sorted() {
		if cut.Frame() >= end.Frame() {
			break
		}
		scenes = append(scenes, Scene{Start: prev, End: cut})
		prev = cut
	}
	scenes = append(scenes, Scene{Start: prev, End: end})

	minLen := opts.MinSceneLen
	if minLen.Rate() == 0 {
		minLen, _ = timecode.FromSeconds(DefaultMinSceneLenSeconds, start.Rate())
	}
	return enforceMinSceneLen(scenes, minLen.Frame(), opts)
}

// enforceMinSceneLen sweeps left to right once. A short scene is either
// dropped (DropShortScenes) or merged into the following scene; because a
// merge can still leave the combined scene short, the merged scene is
// re-evaluated before the sweep advances. A short final scene folds into
// the previous scene only under MergeLastScene.
func enforceMinSceneLen(scenes []Scene, minFrames int, opts Options) []Scene {
	if minFrames <= 0 || len(scenes) == 0 {
		return scenes
	}

	if opts.DropShortScenes {
		kept := scenes[:0]
		for _, s := range scenes {
			if s.LengthFrames() >= minFrames {
				kept = append(kept, s)
			}
		}
		return kept
	}

	var out []Scene
	for i := 0; i < len(scenes); i++ {
		s := scenes[i]
		for s.LengthFrames() < minFrames && i+1 < len(scenes) {
			// merging deletes the intervening cut; nothing is copied
			i++
			s.End = scenes[i].End
		}
		out = append(out, s)
	}

	if n := len(out); n >= 2 && opts.MergeLastScene && out[n-1].LengthFrames() < minFrames {
		out[n-2].End = out[n-1].End
		out = out[:n-1]
	}
	return out
}
