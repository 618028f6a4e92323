package phash

import (
	"math"
	"sort"

	"github.com/hubenschmidt/go-dupimg/core"
)

// cosines[u][x] holds the orthonormal DCT-II basis alpha(u)*cos((2x+1)u*pi/2N).
var cosines = func() (t [BlockSize][SampleSize]float64) {
	for u := 0; u < BlockSize; u++ {
		alpha := math.Sqrt(2.0 / SampleSize)
		if u == 0 {
			alpha = math.Sqrt(1.0 / SampleSize)
		}
		for x := 0; x < SampleSize; x++ {
			t[u][x] = alpha * math.Cos(float64(2*x+1)*float64(u)*math.Pi/(2*SampleSize))
		}
	}
	return t
}()

// lowFrequencies returns the BlockSize x BlockSize lowest-frequency DCT-II
// coefficients of p, indexed [vertical][horizontal].
//
// Every product is converted explicitly so the compiler cannot fuse it
// into a multiply-add; results are bit-identical across architectures.
func lowFrequencies(p *[SampleSize][SampleSize]float64) [BlockSize][BlockSize]float64 {
	var rows [SampleSize][BlockSize]float64
	for y := 0; y < SampleSize; y++ {
		for u := 0; u < BlockSize; u++ {
			var sum float64
			for x := 0; x < SampleSize; x++ {
				sum += float64(cosines[u][x] * p[y][x])
			}
			rows[y][u] = sum
		}
	}

	var out [BlockSize][BlockSize]float64
	for v := 0; v < BlockSize; v++ {
		for u := 0; u < BlockSize; u++ {
			var sum float64
			for y := 0; y < SampleSize; y++ {
				sum += float64(cosines[v][y] * rows[y][u])
			}
			out[v][u] = sum
		}
	}
	return out
}

// pack sets bit 63-i for every coefficient i (row-major) above the median.
func pack(c *[BlockSize][BlockSize]float64) core.Fingerprint {
	sorted := make([]float64, 0, BlockSize*BlockSize)
	for v := range c {
		sorted = append(sorted, c[v][:]...)
	}
	sort.Float64s(sorted)
	median := (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2

	var fp core.Fingerprint
	for v := 0; v < BlockSize; v++ {
		for u := 0; u < BlockSize; u++ {
			if c[v][u] > median {
				fp |= 1 << (63 - (v*BlockSize + u))
			}
		}
	}
	return fp
}
