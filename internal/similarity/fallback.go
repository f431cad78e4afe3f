/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package similarity

import (
	"math"
	"math/rand/v2"
)

// Fallback score shape: overlapWeight*overlap + floor + jitterWeight*u, with
// overlap and u in [0,1). Non-identical words therefore land in [0.3, 0.9).
const (
	overlapWeight = 0.3
	fallbackFloor = 0.3
	jitterWeight  = 0.3
)

// Fallback scores word pairs locally when the remote service is unusable.
// Identical words score 1.0; anything else stays below 0.9.
type Fallback struct {
	jitter func() float64
}

// NewFallback returns a fallback scorer drawing its perturbation from jitter,
// which should return values in [0,1). A nil jitter uses math/rand/v2.
func NewFallback(jitter func() float64) *Fallback {
	if jitter == nil {
		jitter = rand.Float64
	}
	return &Fallback{jitter: jitter}
}

// Score returns the local similarity of a and b.
func (f *Fallback) Score(a, b string) float64 {
	if a == b {
		return 1.0
	}

	u := f.jitter()
	switch {
	case math.IsNaN(u) || u < 0:
		u = 0
	case u >= 1:
		u = math.Nextafter(1, 0)
	}

	return overlapWeight*positionalOverlap(a, b) + fallbackFloor + jitterWeight*u
}

// positionalOverlap is the share of positions holding the same rune in both
// words, relative to the longer word. It is 1 only for identical words.
func positionalOverlap(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)

	longer := max(len(ra), len(rb))
	if longer == 0 {
		return 0
	}

	matches := 0
	for i := range min(len(ra), len(rb)) {
		if ra[i] == rb[i] {
			matches++
		}
	}

	return float64(matches) / float64(longer)
}
