// Package phash derives 64-bit perceptual fingerprints from raster images.
//
// The transform is the DCT perceptual hash: the image is scaled to 32x32,
// converted to luma, transformed with a 2-D DCT-II, and the 8x8 block of
// lowest frequencies is thresholded against its median.
package phash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// SampleSize is the edge length images are scaled to before the DCT.
	SampleSize = 32

	// BlockSize is the edge length of the retained low-frequency block.
	BlockSize = 8

	// DefaultMaxPixels bounds width*height of decodable images. Decoding
	// holds the full raster in memory, 4 bytes per pixel for RGBA, so the
	// default caps a single decode at about 160 MB.
	DefaultMaxPixels = 40_000_000
)

// Hasher computes perceptual fingerprints. The zero value is ready to use.
type Hasher struct {
	// MaxPixels rejects images whose width*height exceeds it.
	// If this is 0, DefaultMaxPixels is used.
	MaxPixels int
}

// DefaultHasher is used by Extract.
var DefaultHasher = &Hasher{}

// Extract computes the fingerprint of encoded image bytes with DefaultHasher.
func Extract(data []byte) (core.Fingerprint, error) {
	return DefaultHasher.Extract(data)
}

// Extract decodes data and returns its perceptual fingerprint. Any decoding
// failure is reported as an error wrapping core.ErrDecode.
func (h *Hasher) Extract(data []byte) (fp core.Fingerprint, err error) {
	defer func() {
		if r := recover(); r != nil {
			fp, err = 0, fmt.Errorf("%w: decoder panic: %v", core.ErrDecode, r)
		}
	}()

	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty input", core.ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, fmt.Errorf("%w: %s image has no pixels", core.ErrDecode, format)
	}
	if limit := h.maxPixels(); cfg.Width*cfg.Height > limit {
		return 0, fmt.Errorf("%w: %s image is %dx%d, limit is %d pixels",
			core.ErrDecode, format, cfg.Width, cfg.Height, limit)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrDecode, err)
	}
	return Hash(img), nil
}

// Hash computes the fingerprint of an already decoded image.
func Hash(img image.Image) core.Fingerprint {
	scaled := resize.Resize(SampleSize, SampleSize, img, resize.Bilinear)
	pixels := luma(scaled)
	coeffs := lowFrequencies(&pixels)
	return pack(&coeffs)
}

func (h *Hasher) maxPixels() int {
	if h == nil || h.MaxPixels == 0 {
		return DefaultMaxPixels
	}
	return h.MaxPixels
}

// luma converts img into a SampleSize x SampleSize matrix of BT.601 luma
// values in the 0..255 range.
func luma(img image.Image) [SampleSize][SampleSize]float64 {
	var out [SampleSize][SampleSize]float64
	b := img.Bounds()
	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			v := float64(0.299*float64(r)) + float64(0.587*float64(g)) + float64(0.114*float64(bl))
			out[y][x] = v / 257
		}
	}
	return out
}
