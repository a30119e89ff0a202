package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/scenecut/pkg/timecode"
)

func TestRegisterOwnership(t *testing.T) {
	c, err := New(24)
	require.NoError(t, err)

	require.NoError(t, c.Register("content", "content_val", "delta_hue"))
	// same owner re-registering is a no-op
	require.NoError(t, c.Register("content", "content_val"))
	// a different owner claiming the name is a conflict
	err = c.Register("adaptive", "content_val")
	require.ErrorIs(t, err, ErrMetricConflict)
	// disjoint names are fine
	require.NoError(t, c.Register("adaptive", "adaptive_ratio"))

	assert.Equal(t, []string{"content_val", "delta_hue", "adaptive_ratio"}, c.Metrics())
}

func TestGetSetDistinguishesAbsentFromZero(t *testing.T) {
	c, err := New(24)
	require.NoError(t, err)

	_, ok := c.Get(5, "content_val")
	assert.False(t, ok, "unset metric must read as absent")

	c.Set(5, "content_val", 0)
	v, ok := c.Get(5, "content_val")
	assert.True(t, ok, "a computed zero is present, not absent")
	assert.Zero(t, v)

	c.Set(5, "content_val", 12.5)
	v, _ = c.Get(5, "content_val")
	assert.Equal(t, 12.5, v, "last write wins")
}

func TestHasAll(t *testing.T) {
	c, err := New(24)
	require.NoError(t, err)

	c.Set(3, "delta_hue", 1)
	c.Set(3, "delta_sat", 2)

	assert.True(t, c.HasAll(3, "delta_hue", "delta_sat"))
	assert.False(t, c.HasAll(3, "delta_hue", "delta_lum"))
	assert.False(t, c.HasAll(4, "delta_hue"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c, err := New(29.97)
	require.NoError(t, err)
	require.NoError(t, c.Register("content", "content_val", "delta_lum"))
	for frame := 0; frame < 5; frame++ {
		c.Set(frame, "content_val", float64(frame)*1.5)
		c.Set(frame, "delta_lum", float64(frame))
	}
	// a sparse row with only one metric
	c.Set(9, "content_val", 42)

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	loaded, err := New(29.97)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(&buf))

	assert.Equal(t, c.Frames(), loaded.Frames())
	for frame := 0; frame < 5; frame++ {
		v, ok := loaded.Get(frame, "content_val")
		require.True(t, ok)
		assert.InDelta(t, float64(frame)*1.5, v, 0.001)
	}
	_, ok := loaded.Get(9, "delta_lum")
	assert.False(t, ok, "sparse fields stay absent across a round-trip")
}

func TestLoadRejectsFramerateMismatch(t *testing.T) {
	src, err := New(24)
	require.NoError(t, err)
	src.Set(0, "content_val", 1)
	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))

	dst, err := New(29.97)
	require.NoError(t, err)
	err = dst.Load(&buf)
	require.ErrorIs(t, err, timecode.ErrFramerateMismatch)
	assert.Zero(t, dst.Len(), "a rejected statsfile must leave the cache empty")
}

func TestLoadCorruptInputIsAllOrNothing(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "no header", body: "0,1,2\n"},
		{name: "bad rate", body: "frame_rate,potato\nframe_number,content_val\n"},
		{name: "missing column header", body: "frame_rate,24.000000\n0,1\n"},
		{name: "bad frame number", body: "frame_rate,24.000000\nframe_number,content_val\nx,1\n"},
		{name: "negative frame number", body: "frame_rate,24.000000\nframe_number,content_val\n-3,1\n"},
		{name: "bad value", body: "frame_rate,24.000000\nframe_number,content_val\n0,ok\n"},
		{
			name: "short row after good rows",
			body: "frame_rate,24.000000\nframe_number,content_val,delta_hue\n0,1,2\n1,3\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(24)
			require.NoError(t, err)
			err = c.Load(strings.NewReader(tc.body))
			require.ErrorIs(t, err, ErrCorruptCache)
			assert.Zero(t, c.Len(), "partial rows must be discarded")
		})
	}
}

func TestUnknownColumnsSurviveResave(t *testing.T) {
	body := "frame_rate,24.000000\nframe_number,content_val,mystery_metric\n0,1.000,7.000\n"

	c, err := New(24)
	require.NoError(t, err)
	require.NoError(t, c.Load(strings.NewReader(body)))

	// this run only knows content_val
	require.NoError(t, c.Register("content", "content_val"))
	c.Set(1, "content_val", 2)

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))
	out := buf.String()

	assert.Contains(t, out, "mystery_metric")
	assert.Contains(t, out, "7.000")
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	c, err := New(24)
	require.NoError(t, err)
	require.NoError(t, c.LoadFile(t.TempDir()+"/nope.csv"))
	assert.Zero(t, c.Len())
}
