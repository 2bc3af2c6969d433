// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the tapering function applied before the transform.
type WindowFunc int

// Available window functions. Hann is computed locally in its periodic
// form; the rest come from gonum.
const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Nuttall
	Lanczos
)

var windowNames = map[WindowFunc]string{
	Hann:            "hann",
	Hamming:         "hamming",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	BartlettHann:    "bartletthann",
	Nuttall:         "nuttall",
	Lanczos:         "lanczos",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("window(%d)", int(w))
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hann together with an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "nuttall":
		return Nuttall, nil
	case "lanczos":
		return Lanczos, nil
	default:
		return Hann, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// HannWindow returns a new buffer holding
// buffer[i] * 0.5 * (1 - cos(2*pi*i/N)), N = len(buffer).
// A single-sample buffer is windowed to zero.
func HannWindow(buffer []float32) []float32 {
	windowed := make([]float32, len(buffer))
	n := float64(len(buffer))
	for i, x := range buffer {
		windowed[i] = x * hannCoefficient(i, n)
	}
	return windowed
}

func hannCoefficient(i int, n float64) float32 {
	return float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/n)))
}

// Window holds precomputed coefficients for a fixed length.
type Window struct {
	kind   WindowFunc
	coeffs []float32
}

// NewWindow precomputes n coefficients of the given window.
func NewWindow(kind WindowFunc, n int) (*Window, error) {
	if n <= 0 {
		return nil, fmt.Errorf("window length must be positive, got %d", n)
	}
	if _, ok := windowNames[kind]; !ok {
		return nil, fmt.Errorf("unknown window function %d", int(kind))
	}

	coeffs := make([]float32, n)
	if kind == Hann {
		for i := range coeffs {
			coeffs[i] = hannCoefficient(i, float64(n))
		}
		return &Window{kind: kind, coeffs: coeffs}, nil
	}

	// gonum windows scale the sequence in place, so start from ones.
	seq := make([]float64, n)
	for i := range seq {
		seq[i] = 1
	}
	switch kind {
	case Hamming:
		window.Hamming(seq)
	case Blackman:
		window.Blackman(seq)
	case BlackmanNuttall:
		window.BlackmanNuttall(seq)
	case BartlettHann:
		window.BartlettHann(seq)
	case Nuttall:
		window.Nuttall(seq)
	case Lanczos:
		window.Lanczos(seq)
	}
	for i, v := range seq {
		coeffs[i] = float32(v)
	}
	return &Window{kind: kind, coeffs: coeffs}, nil
}

// Apply writes src[i]*w[i] into dst for i < Len(). Both slices must be at
// least Len() long.
func (w *Window) Apply(dst, src []float32) {
	for i, c := range w.coeffs {
		dst[i] = src[i] * c
	}
}

// Len returns the number of coefficients.
func (w *Window) Len() int { return len(w.coeffs) }

// Kind returns the window function.
func (w *Window) Kind() WindowFunc { return w.kind }

// Coefficients returns a copy of the coefficients.
func (w *Window) Coefficients() []float32 {
	out := make([]float32, len(w.coeffs))
	copy(out, w.coeffs)
	return out
}
