package source

import (
	"io"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{in: "30/1", want: 30},
		{in: "30000/1001", want: 29.97002997002997},
		{in: "0/0", want: 0},
		{in: "nonsense", want: 0},
		{in: "25", want: 0},
	}
	for _, tc := range cases {
		if got := parseRate(tc.in); got != tc.want {
			t.Errorf("parseRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

// makeTestVideo renders a short testsrc clip into dir.
func makeTestVideo(t *testing.T, dir string) string {
	t.Helper()
	out := filepath.Join(dir, "test.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=160x120:rate=10",
		"-pix_fmt", "yuv420p", "-y", out)
	if err := cmd.Run(); err != nil {
		t.Skipf("could not generate test video: %v", err)
	}
	return out
}

func TestFFmpegSourceReadsStream(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := makeTestVideo(t, t.TempDir())

	src, err := OpenFFmpeg(path)
	if err != nil {
		t.Fatalf("OpenFFmpeg: %v", err)
	}
	defer src.Close()

	if w, h := src.FrameSize(); w != 160 || h != 120 {
		t.Errorf("frame size %dx%d, want 160x120", w, h)
	}
	if src.Framerate() != 10 {
		t.Errorf("framerate %v, want 10", src.Framerate())
	}
	if got := src.Duration().Frame(); got < 19 || got > 21 {
		t.Errorf("duration %d frames, want ~20", got)
	}

	frames := 0
	for {
		frame, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if frame.Bounds().Dx() != 160 {
			t.Fatalf("frame width %d, want 160", frame.Bounds().Dx())
		}
		frames++
		if frames > 100 {
			t.Fatal("stream never ended")
		}
	}
	if frames < 19 || frames > 21 {
		t.Errorf("decoded %d frames, want ~20", frames)
	}
}

func TestFFmpegSourceSeek(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := makeTestVideo(t, t.TempDir())

	src, err := OpenFFmpeg(path)
	if err != nil {
		t.Fatalf("OpenFFmpeg: %v", err)
	}
	defer src.Close()

	mid := src.Duration().AddFrames(-10)
	if err := src.Seek(mid); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	frames := 0
	for {
		_, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read after seek: %v", err)
		}
		frames++
		if frames > 100 {
			t.Fatal("stream never ended")
		}
	}
	if frames > 12 {
		t.Errorf("read %d frames after mid seek, want about half the stream", frames)
	}
}
