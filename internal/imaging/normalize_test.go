package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: uint8((x + y) % 256)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestNormalizeDownsamplesPreservingAspect(t *testing.T) {
	t.Parallel()

	out, err := Normalize(encodePNG(t, 400, 100), 200, 80)
	require.NoError(t, err)
	assert.Equal(t, MIMEJPEG, out.MIMEType)
	assert.Equal(t, 200, out.Width)
	assert.Equal(t, 50, out.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestNormalizePortrait(t *testing.T) {
	t.Parallel()

	out, err := Normalize(encodePNG(t, 90, 300), 150, 80)
	require.NoError(t, err)
	assert.Equal(t, 45, out.Width)
	assert.Equal(t, 150, out.Height)
}

func TestNormalizeNeverUpsamples(t *testing.T) {
	t.Parallel()

	out, err := Normalize(encodePNG(t, 40, 30), 1600, 85)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Width)
	assert.Equal(t, 30, out.Height)
}

func TestNormalizeIdempotentOnInBoundsJPEG(t *testing.T) {
	t.Parallel()

	first, err := Normalize(encodeJPEG(t, 120, 80), 200, 85)
	require.NoError(t, err)
	second, err := Normalize(first.Data, 200, 85)
	require.NoError(t, err)

	assert.Equal(t, first.Width, second.Width)
	assert.Equal(t, first.Height, second.Height)
	_, err = jpeg.Decode(bytes.NewReader(second.Data))
	require.NoError(t, err)
}

func TestNormalizePalettedGIF(t *testing.T) {
	t.Parallel()

	img := image.NewPaletted(image.Rect(0, 0, 64, 32), palette.Plan9)
	img.SetColorIndex(3, 3, 10)
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))

	out, err := Normalize(buf.Bytes(), 32, 70)
	require.NoError(t, err)
	assert.Equal(t, 32, out.Width)
	assert.Equal(t, 16, out.Height)

	decoded, _, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	_, isPaletted := decoded.(*image.Paletted)
	assert.False(t, isPaletted)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"empty":     nil,
		"text":      []byte("What is Newton's second law?"),
		"truncated": encodePNG(t, 20, 20)[:40],
	}
	for name, raw := range cases {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize(raw, 100, 80)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrImageDecode), "got %v", err)
		})
	}
}

func TestNormalizeRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	_, err := Normalize(make([]byte, MaxInputBytes+1), 100, 80)
	require.ErrorIs(t, err, ErrImageTooLarge)
	require.ErrorIs(t, err, ErrImageDecode)
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h 8-bit
// grayscale image with no pixel data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestNormalizeRejectsHugeDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		w, h uint32
	}{
		{name: "square", w: 16000, h: 16000},
		{name: "tall strip", w: 1, h: MaxInputPixels + 1},
		{name: "terapixel", w: 1 << 20, h: 1 << 20},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize(pngHeader(tt.w, tt.h), 1600, 85)
			require.ErrorIs(t, err, ErrImageDimensions)
			require.ErrorIs(t, err, ErrImageDecode)
		})
	}
}

func TestWithinPixelBudget(t *testing.T) {
	t.Parallel()

	assert.True(t, withinPixelBudget(5000, 10000))
	assert.False(t, withinPixelBudget(5000, 10001))
	assert.False(t, withinPixelBudget(0, 10))
	assert.False(t, withinPixelBudget(1<<31-1, 1<<31-1))
}

func TestFitWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{w: 100, h: 50, max: 200, wantW: 100, wantH: 50},
		{w: 400, h: 200, max: 200, wantW: 200, wantH: 100},
		{w: 200, h: 400, max: 200, wantW: 100, wantH: 200},
		{w: 1000, h: 1, max: 10, wantW: 10, wantH: 1},
		{w: 500, h: 500, max: 0, wantW: 500, wantH: 500},
	}
	for _, tt := range tests {
		gotW, gotH := FitWithin(tt.w, tt.h, tt.max)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Fatalf("FitWithin(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}
