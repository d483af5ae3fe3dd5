package imaging

import (
	"image"
	"image/color"
	"image/draw"
)

// Mode is the pixel family an image is normalized to.
type Mode int

const (
	ModeGray Mode = iota // 8-bit gray
	ModeRGB              // opaque color, *image.RGBA
	ModeRGBA             // color with alpha, *image.NRGBA
)

func (m Mode) String() string {
	switch m {
	case ModeGray:
		return "gray"
	case ModeRGB:
		return "rgb"
	case ModeRGBA:
		return "rgba"
	}
	return "unknown"
}

// Normalize converts any decoded image into one of the three families so
// resizing and encoding only deal with known layouts. Palette, CMYK, YCbCr
// and 16-bit images are converted; images already in a family are returned
// as is.
func Normalize(img image.Image) (image.Image, Mode) {
	switch m := img.(type) {
	case *image.Gray:
		return m, ModeGray
	case *image.RGBA:
		if m.Opaque() {
			return m, ModeRGB
		}
	case *image.NRGBA:
		if !m.Opaque() {
			return m, ModeRGBA
		}
	}

	b := img.Bounds()
	if cm := img.ColorModel(); cm == color.GrayModel || cm == color.Gray16Model {
		dst := image.NewGray(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst, ModeGray
	}
	if opaque(img) {
		dst := image.NewRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst, ModeRGB
	}
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst, ModeRGBA
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
