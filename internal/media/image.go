package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"framepick/internal/frame"
	"framepick/internal/logging"

	// Image format decoders
	_ "image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// ThumbnailMaxWidth and ThumbnailMaxHeight bound generated thumbnails.
	ThumbnailMaxWidth  = 320
	ThumbnailMaxHeight = 320

	// ThumbnailQuality is the JPEG quality used for thumbnails.
	ThumbnailQuality = 80

	// FrameQuality is the JPEG quality used for full extracted frames.
	FrameQuality = 90
)

// Decode decodes an encoded image payload.
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	logging.Debug("Decoded %s image (%d bytes)", format, len(data))
	return img, nil
}

// Encode serializes an image in the requested frame format.
func Encode(img image.Image, f frame.Format) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case frame.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: FrameQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Thumbnail produces a small JPEG rendition of an encoded frame. It
// prefers the libvips fast path and falls back to pure-Go decode and
// Lanczos resampling when vips is unavailable or rejects the input.
func Thumbnail(data []byte) ([]byte, error) {
	if out, err := ThumbnailWithVips(data, ThumbnailMaxWidth, ThumbnailMaxHeight, ThumbnailQuality); err == nil {
		return out, nil
	} else if IsVipsAvailable() {
		logging.Debug("vips thumbnail failed, falling back to imaging: %v", err)
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, ThumbnailMaxWidth, ThumbnailMaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
