// Package imaging decodes embedded PDF images, normalizes their pixel mode,
// bounds their size and re-encodes them as JPEG or PNG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxSize is the resize bound used when resizing is enabled without one.
	DefaultMaxSize = 512
	// JPEGQuality is the quality used for every JPEG re-encode.
	JPEGQuality = 85
)

// MaxPixels caps the declared width*height of an image before it is decoded.
const MaxPixels = 2 * 89478485

var (
	// ErrEmptyImage is returned for images that decode to zero width or height.
	ErrEmptyImage = errors.New("image has no pixels")
	// ErrImageTooLarge is returned when the header declares more than MaxPixels.
	ErrImageTooLarge = errors.New("image exceeds pixel limit")
)

// Resize bounds the longer side of an image.
type Resize struct {
	Enabled bool
	// MaxSize is the bound in pixels; <= 0 means DefaultMaxSize.
	MaxSize int
}

// Bound returns the effective bound, or 0 when resizing is disabled.
func (r Resize) Bound() int {
	if !r.Enabled {
		return 0
	}
	if r.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return r.MaxSize
}

// Result is a re-encoded image.
type Result struct {
	Data      []byte
	MediaType string
	Ext       string
	Width     int
	Height    int
	Mode      Mode
}

// Process decodes data, normalizes it, applies the resize bound and encodes
// it: JPEG when the declared source format is JPEG, PNG otherwise.
func Process(data []byte, format string, r Resize) (*Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy())
	}

	img, mode := Normalize(img)
	if bound := r.Bound(); bound > 0 && (b.Dx() > bound || b.Dy() > bound) {
		w, h := ScaledSize(b.Dx(), b.Dy(), bound)
		img, mode = Normalize(scale(img, mode, w, h))
	}

	var buf bytes.Buffer
	res := &Result{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if IsJPEG(format) {
		if mode == ModeRGBA {
			img, mode = dropAlpha(img.(*image.NRGBA)), ModeRGB
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		res.MediaType, res.Ext = "image/jpeg", "jpg"
	} else {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		res.MediaType, res.Ext = "image/png", "png"
	}
	res.Data = buf.Bytes()
	res.Mode = mode
	return res, nil
}

// IsJPEG reports whether a declared format extension belongs to the JPEG family.
func IsJPEG(format string) bool {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "jpg", "jpeg", "jpe", "jfif", "pjpeg":
		return true
	}
	return false
}

// ScaledSize returns the size with the longer side set to bound and the
// shorter side scaled proportionally, floored to at least one pixel.
func ScaledSize(w, h, bound int) (int, int) {
	if w >= h {
		return bound, max(1, h*bound/w)
	}
	return max(1, w*bound/h), bound
}

func scale(src image.Image, mode Mode, w, h int) image.Image {
	rect := image.Rect(0, 0, w, h)
	var dst xdraw.Image
	switch mode {
	case ModeGray:
		dst = image.NewGray(rect)
	case ModeRGB:
		dst = image.NewRGBA(rect)
	default:
		dst = image.NewNRGBA(rect)
	}
	xdraw.BiLinear.Scale(dst, rect, src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// dropAlpha keeps the color channels and discards transparency.
func dropAlpha(src *image.NRGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	w := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		copy(row, src.Pix[y*src.Stride:y*src.Stride+w])
		for i := 3; i < w; i += 4 {
			row[i] = 0xff
		}
	}
	return dst
}
