// Package score computes sharpness scores for encoded frames.
//
// The metric is the mean absolute deviation of a discrete Laplacian
// response around its own mean. Compared to the raw Laplacian variance
// it is less sensitive to sensor noise, which otherwise inflates the
// apparent sharpness of dark or grainy frames.
package score

import (
	"errors"
	"fmt"
	"image"
	"time"

	"framepick/internal/media"
	"framepick/internal/metrics"

	"github.com/disintegration/imaging"
)

const (
	// maxWidth bounds the working image purely for throughput. Relative
	// ranking between frames is unaffected by the downscale.
	maxWidth = 600

	// scale maps the raw deviation metric onto the 0-100 range.
	scale = 5.0

	// decodeTimeout caps how long one corrupt input may stall a batch.
	decodeTimeout = 5 * time.Second
)

// ErrDecodeTimeout is returned when image decoding exceeds the
// per-frame wall-clock budget. It is a normal failure, not a crash;
// callers typically leave the frame unscored.
var ErrDecodeTimeout = errors.New("image decode timed out")

// Score computes the sharpness of an encoded image in [0, 100].
// Higher is sharper. Scoring the same bytes twice yields the same
// value.
func Score(data []byte) (float64, error) {
	start := time.Now()

	img, err := decodeWithTimeout(data)
	if err != nil {
		metrics.ScoringTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	gray := intensity(img)
	s := clamp(laplacianDeviation(gray)*scale, 0, 100)

	metrics.ScoringTotal.WithLabelValues("success").Inc()
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	return s, nil
}

// decodeWithTimeout decodes data, giving up after decodeTimeout. The
// decode itself cannot be interrupted, but the caller is released so
// the rest of the batch keeps moving.
func decodeWithTimeout(data []byte) (image.Image, error) {
	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)

	go func() {
		img, err := media.Decode(data)
		ch <- result{img, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("scoring decode failed: %w", r.err)
		}
		return r.img, nil
	case <-time.After(decodeTimeout):
		return nil, ErrDecodeTimeout
	}
}

// grayImage is a minimal single-channel float raster.
type grayImage struct {
	w, h int
	pix  []float64
}

// intensity converts an image to single-channel luminance.
func intensity(img image.Image) *grayImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := &grayImage{w: w, h: h, pix: make([]float64, w*h)}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// ITU-R BT.601 luma, 16-bit channels scaled to 0-255.
			g.pix[y*w+x] = (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(bl)) / 257.0
		}
	}
	return g
}

// laplacianDeviation applies a 4-neighbour Laplacian to the interior
// pixels and returns the mean absolute deviation of the response
// around its mean.
func laplacianDeviation(g *grayImage) float64 {
	if g.w < 3 || g.h < 3 {
		return 0
	}

	n := (g.w - 2) * (g.h - 2)
	resp := make([]float64, 0, n)

	var sum float64
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			i := y*g.w + x
			v := 4*g.pix[i] - g.pix[i-1] - g.pix[i+1] - g.pix[i-g.w] - g.pix[i+g.w]
			resp = append(resp, v)
			sum += v
		}
	}

	mean := sum / float64(n)
	var dev float64
	for _, v := range resp {
		d := v - mean
		if d < 0 {
			d = -d
		}
		dev += d
	}
	return dev / float64(n)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
