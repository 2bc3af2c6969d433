// SPDX-License-Identifier: MIT
package audio

import "math"

// peakAmplitude returns the largest absolute sample value of the block.
// It runs once per block on the capture goroutine, so it is branch free
// and allocation free.
func peakAmplitude(block []int16) int32 {
	var maxAmplitude int32
	for _, s := range block {
		// Get absolute value without branching.
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask

		// Update max using math instead of branching.
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}

// peakLevel converts a peak amplitude to a 0.0-1.0 level where 1.0 is
// int16 full scale.
func peakLevel(peak int32) float64 {
	return math.Min(float64(peak)/float64(-math.MinInt16), 1)
}
