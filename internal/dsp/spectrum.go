// SPDX-License-Identifier: MIT
package dsp

import "math"

// Magnitude returns sqrt(real[i]^2 + imag[i]^2) for the first N/2 bins.
// The input of a real-valued signal is conjugate symmetric, so the upper
// half carries no extra information and is dropped.
func Magnitude(real, imag []float32) []float32 {
	n := min(len(real), len(imag))
	out := make([]float32, n/2)
	MagnitudeInto(out, real, imag)
	return out
}

// MagnitudeInto is Magnitude writing into dst. It fills
// min(len(dst), N/2) bins and returns the number written.
func MagnitudeInto(dst, real, imag []float32) int {
	n := min(len(real), len(imag)) / 2
	n = min(n, len(dst))
	for i := 0; i < n; i++ {
		r, im := real[i], imag[i]
		dst[i] = float32(math.Sqrt(float64(r*r + im*im)))
	}
	return n
}
