package phash

import "github.com/hubenschmidt/go-dupimg/core"

// Distance returns the Hamming distance between two fingerprints, 0..64.
func Distance(a, b core.Fingerprint) int {
	return a.Distance(b)
}

// Similarity maps the Hamming distance onto 0..1, where 1 means the
// fingerprints are identical.
func Similarity(a, b core.Fingerprint) float64 {
	return 1 - float64(Distance(a, b))/core.MaxDistance
}
