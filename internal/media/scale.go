package media

import "math"

// NeedsCompression reports whether a width x height source exceeds the
// spec bounds and must be re-encoded.
func NeedsCompression(width, height int, spec CompressionSpec) bool {
	return width > spec.MaxWidth || height > spec.MaxHeight
}

// ScaleToFit returns output dimensions that fit within maxW x maxH while
// preserving the source aspect ratio. Both results are even, as required by
// 4:2:0 chroma subsampling, and never below 2. Sources already inside the
// bounds are only rounded to even.
func ScaleToFit(width, height, maxW, maxH int) (int, int) {
	if width <= 0 || height <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}

	boundW := evenFloor(maxW)
	boundH := evenFloor(maxH)

	ratio := math.Min(float64(maxW)/float64(width), float64(maxH)/float64(height))
	if ratio >= 1 {
		return min(evenRound(float64(width)), boundW), min(evenRound(float64(height)), boundH)
	}

	// The limiting side lands exactly on the bound; the other side is
	// derived from it so the aspect error stays within one pixel.
	if float64(maxW)/float64(width) <= float64(maxH)/float64(height) {
		outW := boundW
		outH := evenRound(float64(height) * float64(outW) / float64(width))
		return outW, min(outH, boundH)
	}

	outH := boundH
	outW := evenRound(float64(width) * float64(outH) / float64(height))
	return min(outW, boundW), outH
}

// evenRound rounds x to the nearest even integer, minimum 2.
func evenRound(x float64) int {
	v := int(2 * math.Round(x/2))
	if v < 2 {
		return 2
	}
	return v
}

// evenFloor rounds n down to an even integer, minimum 2.
func evenFloor(n int) int {
	v := n - n%2
	if v < 2 {
		return 2
	}
	return v
}
