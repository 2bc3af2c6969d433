// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FrequencyBand defines the name and frequency range for an energy band.
// The range is half open, [LowHz, HighHz).
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// Band names returned by VoiceBands.
const (
	BandBelow = "below"
	BandVoice = "voice"
	BandAbove = "above"
)

// VoiceBands splits the spectrum at the band-pass corners: everything the
// filter should reject below, the pass band, and everything above up to
// Nyquist.
func VoiceBands(lowHz, highHz, sampleRate float64) []FrequencyBand {
	return []FrequencyBand{
		{Name: BandBelow, LowHz: 0, HighHz: lowHz},
		{Name: BandVoice, LowHz: lowHz, HighHz: highHz},
		{Name: BandAbove, LowHz: highHz, HighHz: sampleRate / 2},
	}
}

// BandEnergy is the energy measured in one band of one spectrum.
type BandEnergy struct {
	FrequencyBand
	Energy float64 // Mean squared magnitude of the bins in the band.
	Share  float64 // Fraction of the whole spectrum's energy, 0 for silence.
}

// binRange returns the bins whose centre frequency lies in band.
func binRange(band FrequencyBand, bins, fftSize int, sampleRate float64) (lo, hi int) {
	if fftSize == 0 || sampleRate <= 0 {
		return 0, 0
	}
	binHz := sampleRate / float64(fftSize)
	lo = int(math.Ceil(band.LowHz / binHz))
	hi = int(math.Ceil(band.HighHz / binHz))
	lo = max(0, min(lo, bins))
	hi = max(lo, min(hi, bins))
	return lo, hi
}

// bandEnergies measures every band of power, the squared magnitudes of a
// spectrum. dst is reused when large enough.
func bandEnergies(dst []BandEnergy, bands []FrequencyBand, power []float64, fftSize int, sampleRate float64) []BandEnergy {
	dst = dst[:0]
	total := floats.Sum(power)
	for _, band := range bands {
		lo, hi := binRange(band, len(power), fftSize, sampleRate)
		e := BandEnergy{FrequencyBand: band}
		if hi > lo {
			sum := floats.Sum(power[lo:hi])
			e.Energy = sum / float64(hi-lo)
			if total > 0 {
				e.Share = sum / total
			}
		}
		dst = append(dst, e)
	}
	return dst
}
