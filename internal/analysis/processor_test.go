// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"voicedsp/internal/dsp"
	"voicedsp/internal/transport"
	"voicedsp/pkg/utils"
)

const (
	testSampleRate = 44100
	testFFTSize    = 1024
)

// spikeFrame is a spectrum with a single non-zero bin.
func spikeFrame(bin int, value float32) transport.Frame {
	mags := make([]float32, testFFTSize/2)
	mags[bin] = value
	return transport.Frame{
		Sequence:   9,
		SampleRate: testSampleRate,
		FFTSize:    testFFTSize,
		Magnitudes: mags,
	}
}

func bandByName(t *testing.T, bands []BandEnergy, name string) BandEnergy {
	t.Helper()
	for _, b := range bands {
		if b.Name == name {
			return b
		}
	}
	t.Fatalf("band %q missing from %+v", name, bands)
	return BandEnergy{}
}

func TestPeak(t *testing.T) {
	bin, hz, value := Peak(spikeFrame(23, 5))
	if bin != 23 || value != 5 {
		t.Errorf("Peak() = (%d, %f), want (23, 5)", bin, value)
	}
	if want := 23 * float64(testSampleRate) / testFFTSize; math.Abs(hz-want) > 1e-9 {
		t.Errorf("peak frequency %f, want %f", hz, want)
	}

	if bin, hz, value := Peak(transport.Frame{}); bin != 0 || hz != 0 || value != 0 {
		t.Errorf("Peak(empty) = (%d, %f, %f), want zeros", bin, hz, value)
	}
}

func TestVoiceBands(t *testing.T) {
	bands := VoiceBands(300, 3400, 44100)
	want := []FrequencyBand{
		{BandBelow, 0, 300},
		{BandVoice, 300, 3400},
		{BandAbove, 3400, 22050},
	}
	if len(bands) != len(want) {
		t.Fatalf("got %d bands, want %d", len(bands), len(want))
	}
	for i := range want {
		if bands[i] != want[i] {
			t.Errorf("band %d = %+v, want %+v", i, bands[i], want[i])
		}
	}
}

func TestBinRange(t *testing.T) {
	// 43.07 Hz per bin at 44.1kHz / 1024.
	tests := []struct {
		band   FrequencyBand
		lo, hi int
	}{
		{FrequencyBand{"all", 0, 22050}, 0, 512},
		{FrequencyBand{"below", 0, 300}, 0, 7},
		{FrequencyBand{"voice", 300, 3400}, 7, 79},
		{FrequencyBand{"beyond", 30000, 40000}, 512, 512},
		{FrequencyBand{"inverted", 3400, 300}, 79, 79},
	}
	for _, tt := range tests {
		t.Run(tt.band.Name, func(t *testing.T) {
			lo, hi := binRange(tt.band, 512, testFFTSize, testSampleRate)
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("binRange = [%d, %d), want [%d, %d)", lo, hi, tt.lo, tt.hi)
			}
		})
	}

	if lo, hi := binRange(FrequencyBand{HighHz: 100}, 512, 0, testSampleRate); lo != 0 || hi != 0 {
		t.Errorf("binRange with no FFT size = [%d, %d), want empty", lo, hi)
	}
}

func TestSummarizeSpike(t *testing.T) {
	a := NewAnalyzer(VoiceBands(300, 3400, testSampleRate), nil)
	s := a.Summarize(spikeFrame(23, 2))

	if s.Sequence != 9 || s.PeakBin != 23 || s.PeakValue != 2 {
		t.Errorf("summary = %+v, want peak bin 23 of frame 9", s)
	}
	voice := bandByName(t, s.Bands, BandVoice)
	if voice.Share != 1 {
		t.Errorf("voice share = %f, want 1", voice.Share)
	}
	if want := 4.0 / 72; math.Abs(voice.Energy-want) > 1e-12 {
		t.Errorf("voice energy = %g, want %g", voice.Energy, want)
	}
	if below := bandByName(t, s.Bands, BandBelow); below.Energy != 0 || below.Share != 0 {
		t.Errorf("below band = %+v, want empty", below)
	}
}

func TestSummarizeSilenceAndEmpty(t *testing.T) {
	detector := NewVoiceDetector(0, 0.5)
	a := NewAnalyzer(VoiceBands(300, 3400, testSampleRate), detector)

	s := a.Summarize(spikeFrame(0, 0))
	for _, b := range s.Bands {
		if b.Energy != 0 || b.Share != 0 {
			t.Errorf("silent band %+v, want zero", b)
		}
	}
	if s.Voice {
		t.Error("silence flagged as voice")
	}

	s = a.Summarize(transport.Frame{Sequence: 4})
	if s.Sequence != 4 || len(s.Bands) != 3 || s.Voice {
		t.Errorf("empty frame summary = %+v", s)
	}
}

func TestSummarizeDoesNotAliasBands(t *testing.T) {
	a := NewAnalyzer(VoiceBands(300, 3400, testSampleRate), nil)
	first := a.Summarize(spikeFrame(23, 1))
	_ = a.Summarize(spikeFrame(2, 1))

	if bandByName(t, first.Bands, BandVoice).Share != 1 {
		t.Error("second Summarize overwrote the first summary's bands")
	}
}

func TestVoiceDetector(t *testing.T) {
	tests := []struct {
		name   string
		energy float64
		share  float64
		want   bool
	}{
		{"dominant", 10, 0.9, true},
		{"too quiet", 0.5, 0.9, false},
		{"too spread", 10, 0.2, false},
		{"at share", 10, 0.6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vd := NewVoiceDetector(1, 0.6)
			bands := []BandEnergy{{FrequencyBand: FrequencyBand{Name: BandVoice}, Energy: tt.energy, Share: tt.share}}
			if got := vd.Process(bands); got != tt.want {
				t.Errorf("Process() = %v, want %v", got, tt.want)
			}
			if vd.Active() != tt.want {
				t.Errorf("Active() = %v after Process returned %v", vd.Active(), tt.want)
			}
		})
	}

	if NewVoiceDetector(0, 0).Process([]BandEnergy{{FrequencyBand: FrequencyBand{Name: "other"}, Energy: 5, Share: 1}}) {
		t.Error("detector fired without a voice band")
	}
}

func TestSummarizeProcessedTones(t *testing.T) {
	p, err := dsp.NewProcessor(dsp.ProcessorConfig{
		BlockSize:    testFFTSize,
		SampleRate:   testSampleRate,
		LowCutoffHz:  300,
		HighCutoffHz: 3400,
		Window:       dsp.Hann,
	})
	if err != nil {
		t.Fatal(err)
	}
	a := NewAnalyzer(VoiceBands(300, 3400, testSampleRate), NewVoiceDetector(0, 0.5))

	summarize := func(freq float64) Summary {
		p.Reset()
		var mags []float32
		// Let the filter settle over a few blocks.
		for block := 0; block < 4; block++ {
			samples := utils.GenerateSineWaveAt(block*testFFTSize, testFFTSize, testSampleRate, freq, 0.5)
			if mags, err = p.Process(samples); err != nil {
				t.Fatal(err)
			}
		}
		return a.Summarize(transport.Frame{SampleRate: testSampleRate, FFTSize: p.FFTSize(), Magnitudes: mags})
	}

	s := summarize(1000)
	if math.Abs(s.PeakHz-1000) > testSampleRate/testFFTSize {
		t.Errorf("1 kHz tone peaks at %.1f Hz", s.PeakHz)
	}
	if share := bandByName(t, s.Bands, BandVoice).Share; share < 0.9 {
		t.Errorf("1 kHz voice share = %.3f, want > 0.9", share)
	}
	if !s.Voice {
		t.Error("1 kHz tone not flagged as voice")
	}

	s = summarize(10000)
	if share := bandByName(t, s.Bands, BandAbove).Share; share < 0.5 {
		t.Errorf("10 kHz above-band share = %.3f, want > 0.5", share)
	}
	if s.Voice {
		t.Error("10 kHz tone flagged as voice")
	}
}

func BenchmarkSummarize(b *testing.B) {
	a := NewAnalyzer(VoiceBands(300, 3400, testSampleRate), NewVoiceDetector(0, 0.5))
	frame := spikeFrame(23, 1)
	b.ReportAllocs()
	for b.Loop() {
		_ = a.Summarize(frame)
	}
}
