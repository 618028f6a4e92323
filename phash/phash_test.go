package phash

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"testing"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// pattern renders a deterministic image made of a few low-frequency waves.
func pattern(seed int64, w, h int) *image.RGBA {
	type wave struct{ fx, fy, phase, amp float64 }

	rng := rand.New(rand.NewSource(seed))
	waves := make([]wave, 6)
	for i := range waves {
		waves[i] = wave{
			fx:    rng.Float64() * 4,
			fy:    rng.Float64() * 4,
			phase: rng.Float64() * 2 * math.Pi,
			amp:   15 + rng.Float64()*25,
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 128.0
			for _, wv := range waves {
				v += wv.amp * math.Sin(2*math.Pi*(wv.fx*float64(x)/float64(w)+wv.fy*float64(y)/float64(h))+wv.phase)
			}
			img.Set(x, y, color.RGBA{R: clamp(v), G: clamp(v*0.9 + 10), B: clamp(255 - v), A: 255})
		}
	}
	return img
}

func clamp(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func TestExtractDeterministic(t *testing.T) {
	data := encodePNG(t, pattern(1, 200, 150))

	first, err := Extract(data)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Extract(data)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	fresh, err := (&Hasher{}).Extract(append([]byte(nil), data...))
	require.NoError(t, err)
	assert.Equal(t, first, fresh)
}

func TestExtractFormatIndependent(t *testing.T) {
	img := pattern(2, 120, 120)

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, img))

	fromPNG, err := Extract(encodePNG(t, img))
	require.NoError(t, err)
	fromBMP, err := Extract(bmpBuf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, fromPNG, fromBMP)
}

func TestExtractNearDuplicates(t *testing.T) {
	orig := pattern(3, 256, 256)
	base, err := Extract(encodePNG(t, orig))
	require.NoError(t, err)

	t.Run("recompressed", func(t *testing.T) {
		fp, err := Extract(encodeJPEG(t, orig, 90))
		require.NoError(t, err)
		assert.LessOrEqual(t, Distance(base, fp), 6)
	})

	t.Run("scaled", func(t *testing.T) {
		small := resize.Resize(128, 128, orig, resize.Bilinear)
		fp, err := Extract(encodePNG(t, small))
		require.NoError(t, err)
		assert.LessOrEqual(t, Distance(base, fp), 6)
	})
}

func TestExtractDissimilar(t *testing.T) {
	a, err := Extract(encodePNG(t, pattern(10, 160, 160)))
	require.NoError(t, err)
	b, err := Extract(encodePNG(t, pattern(11, 160, 160)))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, Distance(a, b), 12)
}

func TestHashSetsHalfTheBits(t *testing.T) {
	fp := Hash(pattern(4, 64, 64))
	// distance to zero counts the set bits
	assert.Equal(t, 32, Distance(fp, 0))
}

func TestExtractGolden(t *testing.T) {
	fp, err := Extract(encodePNG(t, pattern(1, 200, 150)))
	require.NoError(t, err)
	assert.Equal(t, "9da21d3fe85af042", fp.String())
}

func TestPackRowMajorFromHighBit(t *testing.T) {
	var asc, desc [BlockSize][BlockSize]float64
	for v := 0; v < BlockSize; v++ {
		for u := 0; u < BlockSize; u++ {
			asc[v][u] = float64(v*BlockSize + u)
			desc[v][u] = -asc[v][u]
		}
	}
	assert.Equal(t, core.Fingerprint(0x00000000ffffffff), pack(&asc))
	assert.Equal(t, core.Fingerprint(0xffffffff00000000), pack(&desc))

	var dc [BlockSize][BlockSize]float64
	dc[0][0] = 1000
	dc[1][0] = -1
	assert.Equal(t, core.Fingerprint(1<<63), pack(&dc))
}

func TestHashDCIsHighBit(t *testing.T) {
	for seed := int64(1); seed <= 4; seed++ {
		fp := Hash(pattern(seed, 96, 64))
		assert.NotZero(t, fp&(1<<63), "seed %d", seed)
	}
}

func TestHashTransposeSwapsBitPositions(t *testing.T) {
	// 32x32 input skips resampling, so transposing the image transposes
	// the coefficient block exactly.
	img := pattern(7, SampleSize, SampleSize)
	tr := image.NewRGBA(img.Bounds())
	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			tr.SetRGBA(x, y, img.RGBAAt(y, x))
		}
	}

	transposed := func(fp core.Fingerprint) core.Fingerprint {
		var out core.Fingerprint
		for v := 0; v < BlockSize; v++ {
			for u := 0; u < BlockSize; u++ {
				if fp&(1<<(63-(v*BlockSize+u))) != 0 {
					out |= 1 << (63 - (u*BlockSize + v))
				}
			}
		}
		return out
	}

	fp := Hash(img)
	assert.Equal(t, "80577f2a7460fcc9", fp.String())
	assert.Equal(t, transposed(fp), Hash(tr))
}

func TestExtractMinorCrop(t *testing.T) {
	// 2% trimmed from every edge. Cropping alone stays within 8 bits;
	// combined with q75 recompression it reaches 12, above the default
	// threshold of 10. Larger crops (5%) are not expected to match.
	for seed := int64(1); seed <= 8; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			orig := pattern(seed, 400, 300)
			base, err := Extract(encodePNG(t, orig))
			require.NoError(t, err)

			cropped := orig.SubImage(image.Rect(8, 6, 392, 294))
			fp, err := Extract(encodePNG(t, cropped))
			require.NoError(t, err)
			assert.LessOrEqual(t, Distance(base, fp), 8)

			fp, err = Extract(encodeJPEG(t, cropped, 75))
			require.NoError(t, err)
			assert.LessOrEqual(t, Distance(base, fp), 12)
		})
	}
}

func TestExtractRejectsNonImages(t *testing.T) {
	inputs := map[string][]byte{
		"empty": nil,
		"text":  []byte("%PDF-1.4 not really an image"),
		"zeros": make([]byte, 4096),
	}
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 7, 64, 1000, 65536} {
		b := make([]byte, n)
		rng.Read(b)
		inputs[fmt.Sprintf("random-%d", n)] = b
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(data)
			assert.ErrorIs(t, err, core.ErrDecode)
		})
	}
}

func TestExtractTruncatedNeverPanics(t *testing.T) {
	img := pattern(5, 64, 64)
	for name, data := range map[string][]byte{
		"png":  encodePNG(t, img),
		"jpeg": encodeJPEG(t, img, 80),
	} {
		t.Run(name, func(t *testing.T) {
			for cut := 0; cut < len(data); cut += 1 + len(data)/97 {
				assert.NotPanics(t, func() {
					_, err := Extract(data[:cut])
					if err != nil {
						assert.ErrorIs(t, err, core.ErrDecode)
					}
				})
			}

			_, err := Extract(data[:len(data)/2])
			assert.ErrorIs(t, err, core.ErrDecode)
		})
	}
}

func TestExtractMaxPixels(t *testing.T) {
	data := encodePNG(t, pattern(6, 64, 64))

	_, err := (&Hasher{MaxPixels: 100}).Extract(data)
	assert.ErrorIs(t, err, core.ErrDecode)

	_, err = (&Hasher{MaxPixels: 64 * 64}).Extract(data)
	assert.NoError(t, err)
}

// withDimensions rewrites the IHDR of a PNG so it claims w x h pixels.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:], w)
	binary.BigEndian.PutUint32(out[20:], h)
	binary.BigEndian.PutUint32(out[29:], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestExtractDefaultPixelLimit(t *testing.T) {
	data := encodePNG(t, pattern(6, 16, 16))

	_, err := Extract(withDimensions(t, data, 8000, 5001))
	require.ErrorIs(t, err, core.ErrDecode)
	assert.ErrorContains(t, err, "8000x5001, limit is 40000000 pixels")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(42, 42))
	assert.Equal(t, 0.0, Similarity(0, core.Fingerprint(math.MaxUint64)))
	assert.Equal(t, 0.5, Similarity(0, 0xffffffff))
}
