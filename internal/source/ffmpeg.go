package source

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/kikiluvv/scenecut/pkg/timecode"
)

// FFmpeg decodes a video through an ffmpeg rawvideo pipe. Frames arrive as
// packed RGBA at the container's native size; seeking restarts the pipe with
// an input -ss, which is as accurate as the container's keyframe layout
// allows.
type FFmpeg struct {
	path     string
	width    int
	height   int
	rate     float64
	duration timecode.Timecode

	pipe    *io.PipeReader
	done    chan error
	started bool
}

// OpenFFmpeg probes the file and prepares a source positioned at frame 0.
func OpenFFmpeg(path string) (*FFmpeg, error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType    string `json:"codec_type"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			AvgFrameRate string `json:"avg_frame_rate"`
			RFrameRate   string `json:"r_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	s := &FFmpeg{path: path}
	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		s.width = stream.Width
		s.height = stream.Height
		s.rate = parseRate(stream.AvgFrameRate)
		if s.rate == 0 {
			s.rate = parseRate(stream.RFrameRate)
		}
		break
	}
	if s.width <= 0 || s.height <= 0 || s.rate <= 0 {
		return nil, fmt.Errorf("no usable video stream in %s", path)
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	s.duration, err = timecode.FromSeconds(seconds, s.rate)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// parseRate parses an ffprobe rational rate like "30000/1001".
func parseRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// start spawns the decode pipe beginning at the given offset in seconds.
func (s *FFmpeg) start(offsetSeconds float64) error {
	if err := s.stop(); err != nil {
		return err
	}

	inputArgs := ffmpeg.KwArgs{}
	if offsetSeconds > 0 {
		inputArgs["ss"] = strconv.FormatFloat(offsetSeconds, 'f', 6, 64)
	}

	pr, pw := io.Pipe()
	s.pipe = pr
	s.done = make(chan error, 1)
	s.started = true

	stream := ffmpeg.Input(s.path, inputArgs).
		Output("pipe:", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "rgba",
			"vsync":   "passthrough",
		}).
		WithOutput(pw).
		Silent(true)

	go func() {
		err := stream.Run()
		pw.CloseWithError(io.EOF)
		s.done <- err
	}()
	return nil
}

// Read implements Source.
func (s *FFmpeg) Read() (*image.RGBA, error) {
	if !s.started {
		if err := s.start(0); err != nil {
			return nil, err
		}
	}

	frame := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	if _, err := io.ReadFull(s.pipe, frame.Pix); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

// Seek implements Source. The pipe is restarted at the target position.
func (s *FFmpeg) Seek(pos timecode.Timecode) error {
	return s.start(pos.Seconds())
}

// Duration implements Source.
func (s *FFmpeg) Duration() timecode.Timecode { return s.duration }

// Framerate implements Source.
func (s *FFmpeg) Framerate() float64 { return s.rate }

// FrameSize implements Source.
func (s *FFmpeg) FrameSize() (int, int) { return s.width, s.height }

// Close implements Source.
func (s *FFmpeg) Close() error { return s.stop() }

func (s *FFmpeg) stop() error {
	if !s.started {
		return nil
	}
	s.started = false
	s.pipe.Close()
	// the closed pipe makes ffmpeg exit; a broken-pipe error here is the
	// expected result of abandoning the stream early
	<-s.done
	return nil
}

var _ Source = (*FFmpeg)(nil)
