package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MIMEJPEG is the only format produced by Normalize.
const MIMEJPEG = "image/jpeg"

// MaxInputBytes bounds the raw payload accepted by Normalize.
const MaxInputBytes = 20 * 1024 * 1024

// MaxInputPixels bounds the declared width x height of an input image. The
// header is checked before the full raster is allocated.
const MaxInputPixels = 50_000_000

var (
	// ErrImageDecode indicates the payload is not a decodable raster image.
	ErrImageDecode = errors.New("image decode failed")
	// ErrImageTooLarge indicates the raw payload exceeds MaxInputBytes.
	ErrImageTooLarge = fmt.Errorf("%w: payload too large", ErrImageDecode)
	// ErrImageDimensions indicates the declared size exceeds MaxInputPixels.
	ErrImageDimensions = fmt.Errorf("%w: dimensions too large", ErrImageDecode)
)

// NormalizedImage is a re-encoded JPEG within the requested bounds.
type NormalizedImage struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Normalize decodes raw, flattens it to opaque RGB, scales it down so that
// neither side exceeds maxDimension and encodes it as JPEG at jpegQuality.
// Images already within bounds keep their dimensions.
func Normalize(raw []byte, maxDimension int, jpegQuality int) (NormalizedImage, error) {
	if len(raw) == 0 {
		return NormalizedImage{}, fmt.Errorf("%w: empty payload", ErrImageDecode)
	}
	if len(raw) > MaxInputBytes {
		return NormalizedImage{}, ErrImageTooLarge
	}
	detected := mimetype.Detect(raw)
	if !strings.HasPrefix(detected.String(), "image/") {
		return NormalizedImage{}, fmt.Errorf("%w: unsupported content type %s", ErrImageDecode, detected.String())
	}
	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if !withinPixelBudget(header.Width, header.Height) {
		return NormalizedImage{}, fmt.Errorf("%w: %dx%d", ErrImageDimensions, header.Width, header.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return NormalizedImage{}, fmt.Errorf("%w: empty image", ErrImageDecode)
	}

	width, height := FitWithin(bounds.Dx(), bounds.Dy(), maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// White backdrop so transparent regions do not turn black in JPEG.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: clampQuality(jpegQuality)}); err != nil {
		return NormalizedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return NormalizedImage{
		Data:     buf.Bytes(),
		MIMEType: MIMEJPEG,
		Width:    width,
		Height:   height,
	}, nil
}

func withinPixelBudget(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	return int64(w)*int64(h) <= MaxInputPixels
}

// FitWithin returns the largest size with the aspect ratio of w x h whose
// sides do not exceed maxDimension. It never upsamples; a non-positive
// maxDimension leaves the size unchanged.
func FitWithin(w, h, maxDimension int) (int, int) {
	if maxDimension <= 0 || (w <= maxDimension && h <= maxDimension) {
		return w, h
	}
	if w >= h {
		nh := h * maxDimension / w
		if nh < 1 {
			nh = 1
		}
		return maxDimension, nh
	}
	nw := w * maxDimension / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDimension
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return jpeg.DefaultQuality
	case q > 100:
		return 100
	default:
		return q
	}
}
