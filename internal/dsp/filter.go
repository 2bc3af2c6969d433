// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"
)

// BandPassOptions tunes how a BandPass treats block boundaries.
type BandPassOptions struct {
	// BlockReset clears both accumulators and the previous input sample at
	// the start of every Apply call. This reproduces filters whose state is
	// local to a single block, including the boundary discontinuity that
	// comes with it. The default carries everything across blocks.
	BlockReset bool
}

// FilterState is the running state of a BandPass.
type FilterState struct {
	LowPass  float32 // Low-pass running value.
	HighPass float32 // High-pass running value.
	Previous float32 // Last input sample, x[i-1] for the next sample.
}

// BandPass is a single-pole low-pass and single-pole high-pass pair whose
// difference forms the voice band. One instance belongs to exactly one
// producer; it is not safe for concurrent use.
type BandPass struct {
	lowCutoffHz  float32
	highCutoffHz float32
	sampleRateHz float32

	alphaLow  float32 // dt / (rcLow + dt), rcLow from the high cutoff.
	alphaHigh float32 // rcHigh / (rcHigh + dt), rcHigh from the low cutoff.

	opts  BandPassOptions
	state FilterState
}

// NewBandPass validates the cutoffs and sample rate and precomputes the
// smoothing coefficients. Any combination that cannot produce finite
// coefficients in (0, 1] is rejected with ErrDegenerateFilter.
func NewBandPass(lowCutoffHz, highCutoffHz, sampleRateHz float32, opts BandPassOptions) (*BandPass, error) {
	if !finitePositive(sampleRateHz) {
		return nil, fmt.Errorf("%w: sample rate %v Hz", ErrDegenerateFilter, sampleRateHz)
	}
	if !finitePositive(lowCutoffHz) || !finitePositive(highCutoffHz) {
		return nil, fmt.Errorf("%w: cutoffs %v Hz / %v Hz must be positive and finite",
			ErrDegenerateFilter, lowCutoffHz, highCutoffHz)
	}
	if lowCutoffHz >= highCutoffHz {
		return nil, fmt.Errorf("%w: low cutoff %v Hz is not below high cutoff %v Hz",
			ErrDegenerateFilter, lowCutoffHz, highCutoffHz)
	}

	// dt stays single precision before widening, as the coefficients were
	// originally derived.
	dt := float64(1 / sampleRateHz)

	rcLow := 1 / (2 * math.Pi * float64(highCutoffHz))
	alphaLow := float32(dt / (rcLow + dt))

	rcHigh := 1 / (2 * math.Pi * float64(lowCutoffHz))
	alphaHigh := float32(rcHigh / (rcHigh + dt))

	if !validAlpha(alphaLow) || !validAlpha(alphaHigh) {
		return nil, fmt.Errorf("%w: coefficients alphaLow=%v alphaHigh=%v",
			ErrDegenerateFilter, alphaLow, alphaHigh)
	}

	return &BandPass{
		lowCutoffHz:  lowCutoffHz,
		highCutoffHz: highCutoffHz,
		sampleRateHz: sampleRateHz,
		alphaLow:     alphaLow,
		alphaHigh:    alphaHigh,
		opts:         opts,
	}, nil
}

// Apply filters one block of signed 16-bit samples into dst and returns
// dst resized to len(block). dst is reallocated only when it is too small,
// so a caller that keeps the returned slice filters without allocating.
func (f *BandPass) Apply(block []int16, dst []float32) []float32 {
	if cap(dst) < len(block) {
		dst = make([]float32, len(block))
	}
	dst = dst[:len(block)]

	if f.opts.BlockReset {
		f.state = FilterState{}
	}

	for i, sample := range block {
		dst[i] = f.Step(float32(sample))
	}
	return dst
}

// Step advances the filter by one sample and returns highPass - lowPass.
func (f *BandPass) Step(x float32) float32 {
	s := &f.state
	// The explicit conversions keep each operation rounded to float32.
	s.LowPass += float32(f.alphaLow * (x - s.LowPass))
	s.HighPass = float32(f.alphaHigh * float32(float32(s.HighPass+x)-s.Previous))
	s.Previous = x
	return s.HighPass - s.LowPass
}

// Reset returns the filter to its freshly constructed state.
func (f *BandPass) Reset() {
	f.state = FilterState{}
}

// State returns a copy of the running state.
func (f *BandPass) State() FilterState {
	return f.state
}

// Coefficients returns the low-pass and high-pass smoothing factors.
func (f *BandPass) Coefficients() (alphaLow, alphaHigh float32) {
	return f.alphaLow, f.alphaHigh
}

// Cutoffs returns the configured low and high cutoff frequencies in Hz.
func (f *BandPass) Cutoffs() (lowHz, highHz float32) {
	return f.lowCutoffHz, f.highCutoffHz
}

// SampleRate returns the sample rate the coefficients were derived for.
func (f *BandPass) SampleRate() float32 {
	return f.sampleRateHz
}

func finitePositive(v float32) bool {
	f := float64(v)
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func validAlpha(a float32) bool {
	return finitePositive(a) && a <= 1
}
