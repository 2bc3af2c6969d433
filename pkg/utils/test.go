// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators and recording consumers shared by
// the tests of several packages.
package utils

import (
	"math"
	"sync"
	"time"

	"voicedsp/internal/transport"
)

// MockTransport implements transport.Transport for testing.
type MockTransport struct {
	mu       sync.Mutex
	LastData []float32
	Sends    int
	Closed   bool
}

// Send stores a copy of []float32 or transport.Frame payloads for later
// inspection instead of transmitting. Other payloads are only counted.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sends++
	var mags []float32
	switch v := data.(type) {
	case []float32:
		mags = v
	case transport.Frame:
		mags = v.Magnitudes
	default:
		return nil
	}
	if cap(m.LastData) < len(mags) {
		m.LastData = make([]float32, len(mags))
	}
	m.LastData = m.LastData[:len(mags)]
	copy(m.LastData, mags)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// RecordingSink collects every frame delivered to it.
type RecordingSink struct {
	mu     sync.Mutex
	frames []transport.Frame
	notify chan struct{}
	delay  time.Duration
}

// NewRecordingSink returns a sink that sleeps delay inside every delivery,
// which makes it a slow consumer when delay > 0.
func NewRecordingSink(delay time.Duration) *RecordingSink {
	return &RecordingSink{notify: make(chan struct{}, 1), delay: delay}
}

// OnSpectrumReady records a deep copy of frame.
func (r *RecordingSink) OnSpectrumReady(frame transport.Frame) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.frames = append(r.frames, frame.Clone())
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Frames returns the frames received so far.
func (r *RecordingSink) Frames() []transport.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transport.Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Len returns the number of frames received so far.
func (r *RecordingSink) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// WaitFor blocks until at least n frames arrived or timeout elapses and
// reports whether n was reached.
func (r *RecordingSink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if r.Len() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return r.Len() >= n
		}
	}
}

// GenerateComplexWave returns a 440Hz tone with its second and third
// harmonics at 90% of int16 full scale.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = int16(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency with peak amplitude given
// as a fraction of int16 full scale.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int16 {
	return GenerateSineWaveAt(0, size, sampleRate, frequency, amplitude)
}

// GenerateSineWaveAt is GenerateSineWave starting at sample index start,
// so consecutive blocks of one continuous tone can be generated.
func GenerateSineWaveAt(start, size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(start+i) / sampleRate
		buffer[i] = int16(math.Round(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * amplitude))
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin], clamped to the slice.
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

var (
	_ transport.Transport = (*MockTransport)(nil)
	_ transport.Sink      = (*RecordingSink)(nil)
)
