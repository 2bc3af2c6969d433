// SPDX-License-Identifier: MIT
//
// Package analysis condenses magnitude spectra into the few numbers a
// consumer displays: the dominant frequency, the energy below, inside and
// above the voice band, and whether the voice band dominates.
package analysis

import (
	"voicedsp/internal/transport"

	"gonum.org/v1/gonum/floats"
)

// Summary condenses one frame.
type Summary struct {
	Sequence  uint64
	PeakBin   int
	PeakHz    float64
	PeakValue float32
	Bands     []BandEnergy
	Voice     bool
}

// Analyzer summarises frames. It keeps scratch space between calls and is
// not safe for concurrent use.
type Analyzer struct {
	bands    []FrequencyBand
	detector *VoiceDetector
	power    []float64
}

// NewAnalyzer creates an analyzer for bands. detector may be nil.
func NewAnalyzer(bands []FrequencyBand, detector *VoiceDetector) *Analyzer {
	return &Analyzer{
		bands:    bands,
		detector: detector,
	}
}

// Summarize computes the summary of frame. The returned Bands slice is
// freshly allocated.
func (a *Analyzer) Summarize(frame transport.Frame) Summary {
	s := Summary{Sequence: frame.Sequence}
	n := len(frame.Magnitudes)
	if n == 0 {
		s.Bands = bandEnergies(nil, a.bands, nil, frame.FFTSize, frame.SampleRate)
		if a.detector != nil {
			s.Voice = a.detector.Process(s.Bands)
		}
		return s
	}

	if cap(a.power) < n {
		a.power = make([]float64, n)
	}
	a.power = a.power[:n]
	for i, m := range frame.Magnitudes {
		a.power[i] = float64(m)
	}

	s.PeakBin = floats.MaxIdx(a.power)
	s.PeakValue = frame.Magnitudes[s.PeakBin]
	s.PeakHz = frame.BinFrequency(s.PeakBin)

	floats.Mul(a.power, a.power)
	s.Bands = bandEnergies(make([]BandEnergy, 0, len(a.bands)), a.bands, a.power, frame.FFTSize, frame.SampleRate)
	if a.detector != nil {
		s.Voice = a.detector.Process(s.Bands)
	}
	return s
}

// Peak returns the bin, frequency and magnitude of the largest bin of
// frame. An empty frame reports bin 0 with zero magnitude.
func Peak(frame transport.Frame) (bin int, hz float64, value float32) {
	for i, m := range frame.Magnitudes {
		if m > value {
			bin, value = i, m
		}
	}
	return bin, frame.BinFrequency(bin), value
}
