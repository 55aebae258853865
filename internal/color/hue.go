package color

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
)

// LegendHue returns a stable hue in [0, 360) for a legend ID, so a legend
// group keeps its colour across reloads.
func LegendHue(legendID string) float64 {
	return float64(Intn(360, legendID))
}

// LegendColor is the fully saturated group colour for a legend ID.
func LegendColor(legendID string) HSL {
	return HSL{LegendHue(legendID), 100, 50}
}

// Intn returns a deterministic integer in [0, n) derived from seed.
func Intn(n int, seed string) int {
	v := int(math.Floor(Seeded(seed) * float64(n)))
	if v >= n {
		v = n - 1
	}
	return v
}

// Seeded returns a deterministic number in [0, 1] derived from seed. The
// seed is hashed with SHA-256 and the hex digest with cyrb53; the 53-bit
// result is scaled down by the next power of ten.
func Seeded(seed string) float64 {
	sum := sha256.Sum256([]byte(seed))
	h := float64(cyrb53(hex.EncodeToString(sum[:]), 0))
	if h == 0 {
		return 0
	}
	return h / math.Pow(10, math.Ceil(math.Log10(h)))
}

// cyrb53 is a fast 53-bit string hash.
func cyrb53(s string, seed uint32) uint64 {
	h1 := uint32(0xdeadbeef) ^ seed
	h2 := uint32(0x41c6ce57) ^ seed
	for i := 0; i < len(s); i++ {
		ch := uint32(s[i])
		h1 = (h1 ^ ch) * 2654435761
		h2 = (h2 ^ ch) * 1597334677
	}
	h1 = (h1 ^ (h1 >> 16)) * 2246822507
	h1 ^= (h2 ^ (h2 >> 13)) * 3266489909
	h2 = (h2 ^ (h2 >> 16)) * 2246822507
	h2 ^= (h1 ^ (h1 >> 13)) * 3266489909

	return 4294967296*uint64(2097151&h2) + uint64(h1)
}
