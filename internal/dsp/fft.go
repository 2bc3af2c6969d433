// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"

	"voicedsp/pkg/bitint"
)

// Transform computes the discrete Fourier transform of (real, imag) in
// place using recursive radix-2 decimation in time. The length must be a
// power of two; length 1 is the identity. Temporary even/odd halves are
// allocated at every level, use a Plan on hot paths.
func Transform(real, imag []float32) error {
	if err := checkTransform(real, imag); err != nil {
		return err
	}
	transform(real, imag)
	return nil
}

// Inverse computes the inverse transform in place as
// conj(Transform(conj(x))) / N.
func Inverse(real, imag []float32) error {
	if err := checkTransform(real, imag); err != nil {
		return err
	}
	conjugate(imag)
	transform(real, imag)
	conjugate(imag)
	scale(real, imag)
	return nil
}

func checkTransform(real, imag []float32) error {
	if len(real) != len(imag) {
		return fmt.Errorf("%w: real %d, imag %d", ErrLengthMismatch, len(real), len(imag))
	}
	if !bitint.IsPowerOfTwo(len(real)) {
		return fmt.Errorf("%w: got %d", ErrNotPowerOfTwo, len(real))
	}
	return nil
}

func transform(re, im []float32) {
	n := len(re)
	if n == 1 {
		return
	}
	h := n / 2

	evenRe := make([]float32, h)
	evenIm := make([]float32, h)
	oddRe := make([]float32, h)
	oddIm := make([]float32, h)
	split(re, im, evenRe, evenIm, oddRe, oddIm)

	transform(evenRe, evenIm)
	transform(oddRe, oddIm)

	combine(re, im, evenRe, evenIm, oddRe, oddIm)
}

func split(re, im, evenRe, evenIm, oddRe, oddIm []float32) {
	for i := range evenRe {
		evenRe[i] = re[2*i]
		evenIm[i] = im[2*i]
		oddRe[i] = re[2*i+1]
		oddIm[i] = im[2*i+1]
	}
}

// combine applies the butterflies for one level:
// X[k] = E[k] + W*O[k], X[k+N/2] = E[k] - W*O[k], W = exp(-2*pi*i*k/N).
func combine(re, im, evenRe, evenIm, oddRe, oddIm []float32) {
	n := len(re)
	h := n / 2
	for k := 0; k < h; k++ {
		angle := -2 * math.Pi * float64(k) / float64(n)
		wr := float32(math.Cos(angle))
		wi := float32(math.Sin(angle))

		tr := float32(wr*oddRe[k]) - float32(wi*oddIm[k])
		ti := float32(wi*oddRe[k]) + float32(wr*oddIm[k])

		re[k] = evenRe[k] + tr
		im[k] = evenIm[k] + ti
		re[k+h] = evenRe[k] - tr
		im[k+h] = evenIm[k] - ti
	}
}

func conjugate(imag []float32) {
	for i := range imag {
		imag[i] = -imag[i]
	}
}

func scale(real, imag []float32) {
	inv := 1 / float32(len(real))
	for i := range real {
		real[i] *= inv
		imag[i] *= inv
	}
}

// Plan runs the same recursive transform as Transform over a fixed length
// with preallocated scratch, so repeated calls do not allocate. A Plan is
// not safe for concurrent use.
type Plan struct {
	n         int
	scratchRe []float32
	scratchIm []float32
}

// NewPlan prepares a transform of length n.
func NewPlan(n int) (*Plan, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: got %d", ErrNotPowerOfTwo, n)
	}
	// Each level uses n slots for its halves and hands the rest down:
	// n + n/2 + ... + 2 < 2n.
	return &Plan{
		n:         n,
		scratchRe: make([]float32, 2*n),
		scratchIm: make([]float32, 2*n),
	}, nil
}

// Len returns the transform length.
func (p *Plan) Len() int { return p.n }

// Transform computes the forward transform of (real, imag) in place.
func (p *Plan) Transform(real, imag []float32) error {
	if err := p.check(real, imag); err != nil {
		return err
	}
	planTransform(real, imag, p.scratchRe, p.scratchIm)
	return nil
}

// Inverse computes the inverse transform of (real, imag) in place.
func (p *Plan) Inverse(real, imag []float32) error {
	if err := p.check(real, imag); err != nil {
		return err
	}
	conjugate(imag)
	planTransform(real, imag, p.scratchRe, p.scratchIm)
	conjugate(imag)
	scale(real, imag)
	return nil
}

func (p *Plan) check(real, imag []float32) error {
	if err := checkTransform(real, imag); err != nil {
		return err
	}
	if len(real) != p.n {
		return fmt.Errorf("%w: plan length %d, got %d", ErrLengthMismatch, p.n, len(real))
	}
	return nil
}

func planTransform(re, im, scratchRe, scratchIm []float32) {
	n := len(re)
	if n == 1 {
		return
	}
	h := n / 2

	evenRe, oddRe := scratchRe[:h:h], scratchRe[h:n:n]
	evenIm, oddIm := scratchIm[:h:h], scratchIm[h:n:n]
	split(re, im, evenRe, evenIm, oddRe, oddIm)

	// The even half finishes before the odd half starts, so both can share
	// the scratch below this level.
	planTransform(evenRe, evenIm, scratchRe[n:], scratchIm[n:])
	planTransform(oddRe, oddIm, scratchRe[n:], scratchIm[n:])

	combine(re, im, evenRe, evenIm, oddRe, oddIm)
}
