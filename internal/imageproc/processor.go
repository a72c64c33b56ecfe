package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	// imaging registers jpeg, png, gif, bmp and tiff; webp is added here.
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// Codec is the decode/encode capability the compressor depends on.
type Codec interface {
	// Decode reads a raster image from r.
	Decode(r io.Reader) (image.Image, error)

	// EncodeJPEG encodes img as JPEG at quality 1-100.
	EncodeJPEG(img image.Image, quality int) ([]byte, error)
}

// Compile-time check that StdCodec implements Codec.
var _ Codec = StdCodec{}

// StdCodec is the default Codec backed by the standard library encoders and imaging.
type StdCodec struct{}

// Decode decodes JPEG, PNG, GIF, BMP, TIFF and WebP, applying EXIF orientation.
func (StdCodec) Decode(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

// EncodeJPEG encodes img as baseline JPEG.
func (StdCodec) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DetectFormat inspects the raw bytes and returns the image format:
// "jpeg", "png", "gif", "webp", "bmp", or "" if unknown.
func DetectFormat(data []byte) string {
	// JPEG: starts with FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg"
	}
	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "png"
	}
	// GIF: starts with GIF87a or GIF89a
	if len(data) >= 6 && bytes.HasPrefix(data, []byte("GIF8")) {
		return "gif"
	}
	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "webp"
	}
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return "bmp"
	}
	return ""
}

// IsSVG checks whether the data appears to be SVG content by looking for
// an <svg element near the beginning of the file.
func IsSVG(data []byte) bool {
	limit := 512
	if len(data) < limit {
		limit = len(data)
	}
	return bytes.Contains(data[:limit], []byte("<svg"))
}

// targetSize scales w x h down so the larger side equals maxDim, preserving
// the aspect ratio. The smaller side is truncated, never below 1.
func targetSize(w, h, maxDim int) (int, int) {
	switch {
	case w > h && w > maxDim:
		h = int(float64(h) * float64(maxDim) / float64(w))
		w = maxDim
	case h > maxDim:
		w = int(float64(w) * float64(maxDim) / float64(h))
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// render draws img into a fresh opaque w x h buffer. Transparent pixels end up white.
func render(img image.Image, w, h int) *image.NRGBA {
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	return imaging.Overlay(imaging.New(w, h, color.White), img, image.Pt(0, 0), 1.0)
}
