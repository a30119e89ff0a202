package detect

import (
	"fmt"
	"image"
)

// planes holds the per-pixel channels the content detector diffs between
// consecutive frames. Hue, saturation and value are each scaled to 0-255 so
// the channel deltas share one numeric range; edges is a Sobel magnitude
// map over value, computed only when the edge weight is in play.
type planes struct {
	w, h          int
	hue, sat, lum []uint8
	edges         []uint8
}

func validFrame(frame *image.RGBA) error {
	if frame == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty bounds %v", ErrInvalidFrame, b)
	}
	if len(frame.Pix) < frame.PixOffset(b.Max.X-1, b.Max.Y-1)+4 {
		return fmt.Errorf("%w: pixel buffer too short for bounds %v", ErrInvalidFrame, b)
	}
	return nil
}

// analyze converts an RGBA frame into diffable channel planes.
func analyze(frame *image.RGBA, withEdges bool) (*planes, error) {
	if err := validFrame(frame); err != nil {
		return nil, err
	}

	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	p := &planes{
		w: w, h: h,
		hue: make([]uint8, w*h),
		sat: make([]uint8, w*h),
		lum: make([]uint8, w*h),
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := frame.Pix[frame.PixOffset(b.Min.X, y):]
		for x := 0; x < w; x++ {
			r := row[x*4]
			g := row[x*4+1]
			bl := row[x*4+2]
			p.hue[i], p.sat[i], p.lum[i] = rgbToHSV(r, g, bl)
			i++
		}
	}

	if withEdges {
		p.edges = sobel(p.lum, w, h)
	}
	return p, nil
}

// rgbToHSV converts one pixel to hue/saturation/value, all scaled to 0-255.
func rgbToHSV(r, g, b uint8) (uint8, uint8, uint8) {
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}
	min := r
	if g < min {
		min = g
	}
	if b < min {
		min = b
	}

	v := max
	delta := int(max) - int(min)
	if delta == 0 {
		return 0, 0, v
	}

	s := uint8(delta * 255 / int(max))

	var hue int
	switch max {
	case r:
		hue = (int(g) - int(b)) * 60 / delta
	case g:
		hue = 120 + (int(b)-int(r))*60/delta
	default:
		hue = 240 + (int(r)-int(g))*60/delta
	}
	if hue < 0 {
		hue += 360
	}
	return uint8(hue * 255 / 360), s, v
}

// sobel returns the gradient magnitude of a value plane, clamped to 0-255.
func sobel(lum []uint8, w, h int) []uint8 {
	out := make([]uint8, w*h)
	if w < 3 || h < 3 {
		return out
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx := -int(lum[i-w-1]) + int(lum[i-w+1]) +
				-2*int(lum[i-1]) + 2*int(lum[i+1]) +
				-int(lum[i+w-1]) + int(lum[i+w+1])
			gy := -int(lum[i-w-1]) - 2*int(lum[i-w]) - int(lum[i-w+1]) +
				int(lum[i+w-1]) + 2*int(lum[i+w]) + int(lum[i+w+1])
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			m := gx + gy
			if m > 255 {
				m = 255
			}
			out[i] = uint8(m)
		}
	}
	return out
}

// meanAbsDiff returns the average absolute pixel difference of two planes,
// in the 0-255 range.
func meanAbsDiff(a, b []uint8) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum int64
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += int64(d)
	}
	return float64(sum) / float64(len(a))
}

// meanBrightness returns the average pixel intensity (mean of R, G and B
// over all pixels), in the 0-255 range.
func meanBrightness(frame *image.RGBA) (float64, error) {
	if err := validFrame(frame); err != nil {
		return 0, err
	}
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	var sum int64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := frame.Pix[frame.PixOffset(b.Min.X, y):]
		for x := 0; x < w; x++ {
			sum += int64(row[x*4]) + int64(row[x*4+1]) + int64(row[x*4+2])
		}
	}
	return float64(sum) / float64(w*h*3), nil
}
