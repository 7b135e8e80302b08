// Package patcher finds the automation marker strings that chromedriver embeds
// in its binary and overwrites them with random letters of the same length.
package patcher

import (
	"bytes"
	"math/rand/v2"
)

const (
	// Marker is the prefix of every injected automation variable (cdc_...).
	Marker = "cdc_"
	// MarkerLen is the number of bytes compared at each offset.
	MarkerLen = len(Marker)
	// WindowLen is the number of bytes overwritten per occurrence, marker included.
	WindowLen = 22
	// Alphabet is the set of replacement bytes.
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Rand is the randomness source used for replacement bytes.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the math/rand/v2 global generator.
var DefaultRand Rand = globalRand{}

// Signature is a marker plus the width of the window that must be rewritten
// wherever it occurs.
type Signature struct {
	Marker []byte
	Window int
}

// DriverSignature is the chromedriver cdc_ marker.
var DriverSignature = Signature{Marker: []byte(Marker), Window: WindowLen}

// Scan returns every offset at which s.Marker starts in buf, in ascending
// order. Overlapping hits are reported as found by a sequential scan. A buffer
// without markers yields an empty result.
func (s Signature) Scan(buf []byte) []int {
	var offsets []int
	n := len(s.Marker)
	if n == 0 {
		return offsets
	}
	for i := 0; i+n <= len(buf); i++ {
		if buf[i] == s.Marker[0] && bytes.Equal(buf[i:i+n], s.Marker) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// Patch returns a copy of buf in which the s.Window bytes starting at each
// offset are replaced by letters drawn from Alphabet, and the number of
// windows rewritten. buf is never modified and the result has the same length.
// A window running past the end of buf is clipped.
func (s Signature) Patch(buf []byte, offsets []int, rng Rand) ([]byte, int) {
	if rng == nil {
		rng = DefaultRand
	}
	out := make([]byte, len(buf))
	copy(out, buf)

	count := 0
	for _, off := range offsets {
		if off < 0 || off >= len(out) {
			continue
		}
		end := min(off+s.Window, len(out))
		for i := off; i < end; i++ {
			out[i] = Alphabet[rng.IntN(len(Alphabet))]
		}
		count++
	}
	return out, count
}

// Scan runs DriverSignature.Scan.
func Scan(buf []byte) []int {
	return DriverSignature.Scan(buf)
}

// Patch runs DriverSignature.Patch.
func Patch(buf []byte, offsets []int, rng Rand) ([]byte, int) {
	return DriverSignature.Patch(buf, offsets, rng)
}
