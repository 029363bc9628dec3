package media

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"framepick/internal/frame"
)

// TestDetectImageType tests magic-byte sniffing.
func TestDetectImageType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "jpeg", data: []byte{0xFF, 0xD8, 0xFF, 0xE0}, want: "jpeg"},
		{name: "png", data: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, want: "png"},
		{name: "gif", data: []byte("GIF89a"), want: "gif"},
		{name: "webp", data: []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'E', 'B', 'P'}, want: "webp"},
		{name: "bmp", data: []byte{'B', 'M', 0, 0}, want: "bmp"},
		{name: "tiff little endian", data: []byte{0x49, 0x49, 0x2A, 0x00}, want: "tiff"},
		{name: "tiff big endian", data: []byte{0x4D, 0x4D, 0x00, 0x2A}, want: "tiff"},
		{name: "text", data: []byte("hello world"), want: "unknown"},
		{name: "empty", data: nil, want: "unknown"},
		{name: "truncated jpeg", data: []byte{0xFF, 0xD8}, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DetectImageType(tt.data); got != tt.want {
				t.Errorf("DetectImageType = %q, want %q", got, tt.want)
			}
			if got := IsImage(tt.data); got != (tt.want != "unknown") {
				t.Errorf("IsImage = %v for %q", got, tt.want)
			}
		})
	}
}

// TestEncodeDecodeRoundTrip tests both output encodings survive decode.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for i := range src.Pix {
		src.Pix[i] = uint8(i % 251)
	}

	for _, f := range []frame.Format{frame.FormatJPEG, frame.FormatPNG} {
		data, err := Encode(src, f)
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", f, err)
		}
		if DetectImageType(data) != string(f) {
			t.Errorf("encoded %v sniffs as %q", f, DetectImageType(data))
		}

		img, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%v) failed: %v", f, err)
		}
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
			t.Errorf("%v round trip bounds = %v", f, b)
		}
	}
}

// TestDecodeInvalid tests undecodable input fails.
func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}

// TestThumbnailFitsBounds tests that thumbnails respect the size cap
// and come out as JPEG.
func TestThumbnailFitsBounds(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1280, 720))); err != nil {
		t.Fatalf("failed to encode source: %v", err)
	}

	thumb, err := Thumbnail(buf.Bytes())
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if DetectImageType(thumb) != "jpeg" {
		t.Errorf("thumbnail sniffs as %q, want jpeg", DetectImageType(thumb))
	}

	img, err := Decode(thumb)
	if err != nil {
		t.Fatalf("thumbnail undecodable: %v", err)
	}
	if b := img.Bounds(); b.Dx() > ThumbnailMaxWidth || b.Dy() > ThumbnailMaxHeight {
		t.Errorf("thumbnail %dx%d exceeds %dx%d", b.Dx(), b.Dy(), ThumbnailMaxWidth, ThumbnailMaxHeight)
	}
}

// TestParseFrameRate tests ffprobe rate string handling.
func TestParseFrameRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "ntsc", input: "30000/1001", want: 29.97},
		{name: "whole", input: "25/1", want: 25},
		{name: "bare number", input: "24", want: 24},
		{name: "zero over zero", input: "0/0", want: 0},
		{name: "zero denominator", input: "30/0", want: 0},
		{name: "empty", input: "", want: 0},
		{name: "garbage", input: "abc/def", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseFrameRate(tt.input)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("parseFrameRate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
